package notifications

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/ngmtien/velora-backend/pkg/config"
)

func TestNewSMTPSenderValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  config.SMTPConfig
	}{
		{name: "missing host", cfg: config.SMTPConfig{Port: 587, SenderMail: "no-reply@velora.test"}},
		{name: "bad port", cfg: config.SMTPConfig{Host: "smtp.velora.test", SenderMail: "no-reply@velora.test"}},
		{name: "missing sender", cfg: config.SMTPConfig{Host: "smtp.velora.test", Port: 587}},
	}
	for _, tc := range cases {
		if _, err := NewSMTPSender(tc.cfg); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestSMTPSenderEncodesMessage(t *testing.T) {
	t.Parallel()

	sender, err := NewSMTPSender(config.SMTPConfig{
		Host:       "smtp.velora.test",
		Port:       587,
		Username:   "mailer",
		Password:   "secret",
		SenderName: "Velora",
		SenderMail: "no-reply@velora.test",
	})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	var gotAddr, gotFrom string
	var gotTo []string
	var gotPayload []byte
	sender.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotPayload = addr, from, to, msg
		return nil
	}

	msg := NewOTPMessage("lan@velora.test", FlowRegister, "482913", 5*time.Minute)
	if err := sender.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	if gotAddr != "smtp.velora.test:587" {
		t.Fatalf("addr = %q", gotAddr)
	}
	if gotFrom != "no-reply@velora.test" {
		t.Fatalf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "lan@velora.test" {
		t.Fatalf("to = %v", gotTo)
	}
	payload := string(gotPayload)
	for _, want := range []string{
		"From: Velora <no-reply@velora.test>",
		"To: lan@velora.test",
		"Subject: Your Velora verification code",
		"Code: 482913",
		"expires in 5 minutes",
	} {
		if !strings.Contains(payload, want) {
			t.Fatalf("payload missing %q:\n%s", want, payload)
		}
	}
}

func TestSMTPSenderRespectsCanceledContext(t *testing.T) {
	t.Parallel()

	sender, err := NewSMTPSender(config.SMTPConfig{
		Host:       "smtp.velora.test",
		Port:       587,
		SenderMail: "no-reply@velora.test",
	})
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}
	sender.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called with a canceled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.Send(ctx, Message{To: "lan@velora.test"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestPasswordResetMessageSubject(t *testing.T) {
	t.Parallel()

	msg := NewOTPMessage("lan@velora.test", FlowPasswordReset, "001122", 10*time.Minute)
	if msg.Subject != "Your Velora password reset code" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "001122") {
		t.Fatalf("body missing code: %s", msg.Body)
	}
}
