package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/mixelka/mailtriage/pkg/models"
)

// Part is a decoded leaf of a MIME tree
type Part struct {
	ContentType string // lower-cased media type, e.g. text/plain
	Attachment  bool   // Content-Disposition: attachment
	Filename    string
	Body        []byte
}

// RawMessage is a parsed email. It is read-only once returned.
type RawMessage struct {
	Subject   string
	From      string
	Date      time.Time
	MessageID string
	Multipart bool
	Parts     []Part   // leaves in declaration order, depth-first
	Warnings  []string // non-fatal decoding problems
}

// Parts is the text content pulled out of a message
type Parts struct {
	Subject  string
	From     string
	BodyText string
}

// ParseEmail decodes an RFC 5322 message
func ParseEmail(r io.Reader) (*RawMessage, error) {
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Err: ErrEmptyMessage}
		}
		return nil, &ParseError{Err: err}
	}

	msg := &RawMessage{}

	mr, err := mail.CreateReader(br)
	if err != nil {
		if !message.IsUnknownCharset(err) || mr == nil {
			return nil, &ParseError{Err: err}
		}
		msg.Warnings = append(msg.Warnings, err.Error())
	}
	defer mr.Close()

	readHeader(msg, &mr.Header)

	for idx := 0; ; idx++ {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !message.IsUnknownCharset(err) || p == nil {
				return nil, &ParseError{Err: fmt.Errorf("part %d: %w", idx, err)}
			}
			msg.Warnings = append(msg.Warnings, fmt.Sprintf("part %d: %v", idx, err))
		}

		part := Part{}
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			part.ContentType = mediaType(&h.Header)
			part.Filename = inlineFilename(&h.Header)
		case *mail.AttachmentHeader:
			part.ContentType = mediaType(&h.Header)
			part.Attachment = true
			part.Filename, _ = h.Filename()
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, &ParseError{Err: fmt.Errorf("read part %d: %w", idx, err)}
		}
		part.Body = body
		msg.Parts = append(msg.Parts, part)
	}

	return msg, nil
}

func readHeader(msg *RawMessage, h *mail.Header) {
	if subject, err := h.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	} else {
		msg.Subject = strings.TrimSpace(h.Get("Subject"))
	}

	if from, err := h.Text("From"); err == nil {
		msg.From = strings.TrimSpace(from)
	} else {
		msg.From = strings.TrimSpace(h.Get("From"))
	}

	if date, err := h.Date(); err == nil {
		msg.Date = date
	}
	if id, err := h.MessageID(); err == nil {
		msg.MessageID = id
	}

	ct, _, _ := h.ContentType()
	msg.Multipart = strings.HasPrefix(strings.ToLower(ct), "multipart/")
}

func mediaType(h *message.Header) string {
	ct, _, err := h.ContentType()
	if err != nil || ct == "" {
		// RFC 2045 default
		return "text/plain"
	}
	return strings.ToLower(ct)
}

func inlineFilename(h *message.Header) string {
	if _, params, err := h.ContentDisposition(); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if _, params, err := h.ContentType(); err == nil {
		return params["name"]
	}
	return ""
}

// ExtractParts returns subject, sender and body text. A single-part message
// supplies its payload whatever its type, with HTML converted to text. In a
// multipart message the first text/plain leaf wins, then the first text/html
// leaf converted to text, and attachments never provide the body.
func ExtractParts(msg *RawMessage, html *HTMLParser) (Parts, error) {
	parts := Parts{
		Subject: msg.Subject,
		From:    msg.From,
	}

	if !msg.Multipart && len(msg.Parts) == 1 {
		p := msg.Parts[0]
		body := string(p.Body)
		if p.ContentType == "text/html" {
			text, err := html.Parse(body)
			if err != nil {
				return parts, &ParseError{Err: fmt.Errorf("html body: %w", err)}
			}
			body = text
		}
		parts.BodyText = strings.TrimSpace(body)
		return parts, nil
	}

	var htmlPart *Part
	for i := range msg.Parts {
		p := &msg.Parts[i]
		if p.Attachment {
			continue
		}
		if p.ContentType == "text/plain" {
			parts.BodyText = strings.TrimSpace(string(p.Body))
			return parts, nil
		}
		if p.ContentType == "text/html" && htmlPart == nil {
			htmlPart = p
		}
	}

	if htmlPart != nil {
		text, err := html.Parse(string(htmlPart.Body))
		if err != nil {
			return parts, &ParseError{Err: fmt.Errorf("html body: %w", err)}
		}
		parts.BodyText = strings.TrimSpace(text)
	}

	return parts, nil
}

// Attachments lists attachment-like parts: attachment disposition or a
// filename on an inline part
func (m *RawMessage) Attachments() []models.Attachment {
	attachments := []models.Attachment{}
	for _, p := range m.Parts {
		if !p.Attachment && p.Filename == "" {
			continue
		}
		name := p.Filename
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", len(attachments)+1)
		}
		attachments = append(attachments, models.Attachment{
			Filename:    name,
			ContentType: p.ContentType,
			Size:        int64(len(p.Body)),
		})
	}
	return attachments
}
