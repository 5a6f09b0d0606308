package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/ngmtien/velora-backend/pkg/logger"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewOTPMessage renders the one-time-code email for the given flow.
func NewOTPMessage(to, flow, code string, ttl time.Duration) Message {
	subject := "Your Velora verification code"
	intro := "Use this code to finish creating your Velora account."
	if flow == FlowPasswordReset {
		subject = "Your Velora password reset code"
		intro = "Use this code to reset your Velora password."
	}
	body := fmt.Sprintf(
		"%s\n\nCode: %s\n\nThe code expires in %d minutes. If you did not request it, ignore this email.\n",
		intro, code, int(ttl.Minutes()),
	)
	return Message{To: to, Subject: subject, Body: body}
}

// OTP flow names; they also namespace the Redis keys holding the codes.
const (
	FlowRegister      = "register"
	FlowPasswordReset = "password_reset"
)

// logSender writes messages to the log instead of delivering them. Used
// in dev when no SMTP host is configured.
type logSender struct {
	logg *logger.Logger
}

// NewLogSender returns a Sender that only logs.
func NewLogSender(logg *logger.Logger) (Sender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &logSender{logg: logg}, nil
}

func (s *logSender) Send(ctx context.Context, msg Message) error {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"to":      msg.To,
		"subject": msg.Subject,
	})
	s.logg.Info(ctx, "email delivery skipped (no smtp host configured)")
	return nil
}
