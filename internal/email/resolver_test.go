package email

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeResolver(mx map[string]string, reachable ...string) *Resolver {
	open := make(map[string]bool)
	for _, a := range reachable {
		open[a] = true
	}
	return &Resolver{
		LookupMX: func(ctx context.Context, domain string) ([]*net.MX, error) {
			host, ok := mx[domain]
			if !ok {
				return nil, errors.New("no such host")
			}
			return []*net.MX{{Host: host, Pref: 10}}, nil
		},
		Probe: func(ctx context.Context, address string) bool {
			return open[address]
		},
	}
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		mx        map[string]string
		reachable []string
		want      string
	}{
		{
			name:  "known provider",
			email: "soc@Gmail.com",
			want:  "imap.gmail.com:993",
		},
		{
			name:  "microsoft 365 tenant",
			email: "soc@uni.example.edu",
			mx:    map[string]string{"uni.example.edu": "uni-example-edu.mail.protection.outlook.com."},
			want:  "outlook.office365.com:993",
		},
		{
			name:  "google workspace tenant",
			email: "soc@college.example.edu",
			mx:    map[string]string{"college.example.edu": "ASPMX.L.GOOGLE.COM."},
			want:  "imap.gmail.com:993",
		},
		{
			name:      "derived from mx",
			email:     "soc@example.org",
			mx:        map[string]string{"example.org": "mx1.mailhost.example.net."},
			reachable: []string{"mail.mailhost.example.net:993"},
			want:      "mail.mailhost.example.net:993",
		},
		{
			name:      "domain probe",
			email:     "soc@example.org",
			reachable: []string{"mail.example.org:993"},
			want:      "mail.example.org:993",
		},
		{
			name:  "fallback",
			email: "soc@example.org",
			want:  "imap.example.org:993",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fakeResolver(tt.mx, tt.reachable...)
			got, err := r.Resolve(context.Background(), tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_InvalidAddress(t *testing.T) {
	r := fakeResolver(nil)
	for _, email := range []string{"", "nobody", "@example.org", "a@", "a@b@c"} {
		_, err := r.Resolve(context.Background(), email)
		assert.Error(t, err, email)
	}
}
