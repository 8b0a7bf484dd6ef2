package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// IMAP servers of common mail hosts, by address domain
var knownIMAPServers = map[string]string{
	"gmail.com":      "imap.gmail.com:993",
	"googlemail.com": "imap.gmail.com:993",
	"outlook.com":    "outlook.office365.com:993",
	"hotmail.com":    "outlook.office365.com:993",
	"live.com":       "outlook.office365.com:993",
	"yahoo.com":      "imap.mail.yahoo.com:993",
	"icloud.com":     "imap.mail.me.com:993",
	"me.com":         "imap.mail.me.com:993",
	"fastmail.com":   "imap.fastmail.com:993",
	"zoho.com":       "imap.zoho.com:993",
	"gmx.com":        "imap.gmx.com:993",
	"proton.me":      "127.0.0.1:1143", // Proton Mail Bridge
}

// Hosted mail suites, by MX host suffix. Campus domains are usually on
// one of these.
var hostedMXServers = map[string]string{
	".google.com":                   "imap.gmail.com:993",
	".googlemail.com":               "imap.gmail.com:993",
	".mail.protection.outlook.com":  "outlook.office365.com:993",
	".mail.protection.office365.us": "outlook.office365.us:993",
	".messagingengine.com":          "imap.fastmail.com:993",
	".zoho.com":                     "imap.zoho.com:993",
}

// Resolver determines the IMAP server for an address
type Resolver struct {
	LookupMX func(ctx context.Context, domain string) ([]*net.MX, error)
	Probe    func(ctx context.Context, address string) bool
}

// NewResolver creates a resolver using DNS and TCP probes
func NewResolver() *Resolver {
	return &Resolver{
		LookupMX: net.DefaultResolver.LookupMX,
		Probe:    probeTCP,
	}
}

// Resolve returns host:port of the IMAP server for email
func (r *Resolver) Resolve(ctx context.Context, email string) (string, error) {
	domain := DomainOf(email)
	if domain == "" {
		return "", fmt.Errorf("invalid email address %q", email)
	}

	if server, ok := knownIMAPServers[domain]; ok {
		return server, nil
	}

	if mx, err := r.LookupMX(ctx, domain); err == nil && len(mx) > 0 {
		host := strings.ToLower(strings.TrimSuffix(mx[0].Host, "."))
		for suffix, server := range hostedMXServers {
			if strings.HasSuffix(host, suffix) {
				return server, nil
			}
		}

		// mx.example.edu -> imap.example.edu
		if _, base, ok := strings.Cut(host, "."); ok {
			for _, candidate := range []string{"imap." + base + ":993", "mail." + base + ":993"} {
				if r.Probe(ctx, candidate) {
					return candidate, nil
				}
			}
		}
	}

	for _, candidate := range []string{"imap." + domain + ":993", "mail." + domain + ":993"} {
		if r.Probe(ctx, candidate) {
			return candidate, nil
		}
	}

	return "imap." + domain + ":993", nil
}

// DomainOf extracts the lower-cased domain of an address
func DomainOf(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return ""
	}
	return strings.ToLower(domain)
}

func probeTCP(ctx context.Context, address string) bool {
	d := net.Dialer{Timeout: 3 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
