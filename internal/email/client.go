package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// ErrNotConnected is returned by mailbox operations before Connect
var ErrNotConnected = errors.New("not connected")

// RawEmail is an undecoded message fetched from IMAP
type RawEmail struct {
	UID uint32
	Raw []byte
}

// ClientConfig configuration for IMAP client
type ClientConfig struct {
	Email       string
	Password    string
	Server      string // host:port
	DialTimeout time.Duration
}

// Client IMAP client for a single mailbox
type Client struct {
	config    ClientConfig
	client    *client.Client
	logger    *slog.Logger
	mu        sync.Mutex
	connected bool
}

// NewClient creates a new IMAP client
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	return &Client{
		config: cfg,
		logger: logger.With("email", cfg.Email),
	}
}

// Connect connects to the IMAP server
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	c.logger.Info("connecting to IMAP server", "server", c.config.Server)

	// Connect with TLS and timeout
	timeout := c.config.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Server)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	imapClient, err := client.New(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create IMAP client: %w", err)
	}
	imapClient.Timeout = timeout

	if err := imapClient.Login(c.config.Email, c.config.Password); err != nil {
		imapClient.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	c.client = imapClient
	c.connected = true
	c.logger.Info("connected to IMAP server")

	return nil
}

// SelectINBOX selects the INBOX read-only
func (c *Client) SelectINBOX(ctx context.Context) (*imap.MailboxStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.client == nil {
		return nil, ErrNotConnected
	}

	mbox, err := c.client.Select("INBOX", true)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	return mbox, nil
}

// FetchSince fetches the full source of messages with UID > sinceUID.
// Messages are not marked as seen.
func (c *Client) FetchSince(ctx context.Context, sinceUID uint32) ([]*RawEmail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.client == nil {
		return nil, ErrNotConnected
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(sinceUID+1, 0) // 0 means *

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 100)
	done := make(chan error, 1)

	go func() {
		done <- c.client.UidFetch(seqSet, items, messages)
	}()

	var emails []*RawEmail
	for msg := range messages {
		// n:* always matches the last message, even below n
		if msg.Uid <= sinceUID {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			c.logger.Warn("server returned no body", "uid", msg.Uid)
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			c.logger.Warn("failed to read message", "uid", msg.Uid, "error", err)
			continue
		}
		emails = append(emails, &RawEmail{UID: msg.Uid, Raw: raw})
	}

	if err := <-done; err != nil {
		return emails, fmt.Errorf("failed to fetch: %w", err)
	}

	return emails, nil
}

// Close logs out, forcing the connection closed if logout stalls
func (c *Client) Close() {
	c.mu.Lock()
	imapClient := c.client
	c.client = nil
	c.connected = false
	c.mu.Unlock()

	if imapClient == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		imapClient.Logout()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		// Force close if logout takes too long
		imapClient.Terminate()
	}
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
