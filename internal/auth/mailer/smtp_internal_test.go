package mailer

import (
	"bytes"
	"testing"

	mail "github.com/go-mail/mail"
	"github.com/stretchr/testify/require"
)

func TestMessageHeaders(t *testing.T) {
	t.Parallel()
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "no-reply@example.com"}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = s.message("ada@example.com", "Your sign-in code", "Your sign-in code is: 123456").WriteTo(&buf)
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "From: no-reply@example.com")
	require.Contains(t, out, "To: ada@example.com")
	require.Contains(t, out, "Subject: Your sign-in code")
	require.Contains(t, out, "text/plain")
	require.Contains(t, out, "123456")
}

func TestDialerTLSModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode   string
		ssl    bool
		policy mail.StartTLSPolicy
	}{
		{"", false, mail.OpportunisticStartTLS},
		{TLSModeStartTLS, false, mail.MandatoryStartTLS},
		{TLSModeSSL, true, mail.OpportunisticStartTLS},
		{TLSModeNone, false, mail.NoStartTLS},
	}
	for _, tt := range tests {
		t.Run("mode "+tt.mode, func(t *testing.T) {
			s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "a@example.com", TLSMode: tt.mode}, nil)
			require.NoError(t, err)

			d := s.dialer()
			require.Equal(t, 587, d.Port)
			require.Equal(t, tt.ssl, d.SSL)
			if !tt.ssl {
				require.Equal(t, tt.policy, d.StartTLSPolicy)
			}
			require.Equal(t, DefaultSMTPTimeout, d.Timeout)
			require.Equal(t, "smtp.example.com", d.TLSConfig.ServerName)
		})
	}
}
