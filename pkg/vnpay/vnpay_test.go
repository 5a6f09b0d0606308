package vnpay

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ngmtien/velora-backend/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(config.VNPayConfig{
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		TmnCode:    "VELORA01",
		HashSecret: "test-hash-secret",
		ReturnURL:  "https://shop.example.com/payment/return",
		Locale:     "vn",
		Currency:   "VND",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestBuildPaymentURLIsSigned(t *testing.T) {
	client := newTestClient(t)
	orderID := uuid.New()

	raw, err := client.BuildPaymentURL(PaymentRequest{
		OrderID:     orderID,
		AmountCents: 2590000,
		IPAddr:      "203.0.113.9",
		CreatedAt:   time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build url: %v", err)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse built url: %v", err)
	}
	query := parsed.Query()

	if query.Get("vnp_TxnRef") != orderID.String() {
		t.Fatalf("txn ref should carry the order id, got %q", query.Get("vnp_TxnRef"))
	}
	if query.Get("vnp_Amount") != "2590000" {
		t.Fatalf("unexpected amount %q", query.Get("vnp_Amount"))
	}
	if query.Get("vnp_CreateDate") != "20250601103000" {
		t.Fatalf("unexpected create date %q", query.Get("vnp_CreateDate"))
	}
	if query.Get(paramSecureHash) == "" {
		t.Fatalf("built url is missing the secure hash")
	}

	// A signed redirect round-trips through verification.
	result, err := client.VerifyCallback(query)
	if err != nil {
		t.Fatalf("verify own signature: %v", err)
	}
	if result.OrderID != orderID {
		t.Fatalf("expected order id %s, got %s", orderID, result.OrderID)
	}
}

func TestVerifyCallbackRejectsTampering(t *testing.T) {
	client := newTestClient(t)

	raw, err := client.BuildPaymentURL(PaymentRequest{
		OrderID:     uuid.New(),
		AmountCents: 100000,
	})
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	parsed, _ := url.Parse(raw)
	query := parsed.Query()

	query.Set("vnp_Amount", "1")
	if _, err := client.VerifyCallback(query); err == nil {
		t.Fatal("expected signature mismatch after tampering")
	}
}

func TestVerifyCallbackMissingHash(t *testing.T) {
	client := newTestClient(t)
	query := url.Values{}
	query.Set("vnp_TxnRef", uuid.NewString())
	if _, err := client.VerifyCallback(query); err == nil {
		t.Fatal("expected error for missing secure hash")
	}
}

func TestVerifyCallbackIsCaseInsensitiveOnHash(t *testing.T) {
	client := newTestClient(t)

	raw, err := client.BuildPaymentURL(PaymentRequest{
		OrderID:     uuid.New(),
		AmountCents: 55000,
	})
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	parsed, _ := url.Parse(raw)
	query := parsed.Query()
	query.Set(paramSecureHash, strings.ToUpper(query.Get(paramSecureHash)))

	if _, err := client.VerifyCallback(query); err != nil {
		t.Fatalf("uppercase hash should still verify: %v", err)
	}
}

func TestCallbackResultSuccess(t *testing.T) {
	if !(CallbackResult{ResponseCode: ResponseCodeSuccess}).Success() {
		t.Fatal("code 00 should be success")
	}
	if (CallbackResult{ResponseCode: "24"}).Success() {
		t.Fatal("non-00 codes are failures")
	}
}
