package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ngmtien/velora-backend/pkg/config"
)

const (
	apiVersion = "2.1.0"
	commandPay = "pay"
	orderType  = "other"
	dateLayout = "20060102150405"

	// ResponseCodeSuccess is the gateway's code for a settled payment.
	ResponseCodeSuccess = "00"

	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"
)

// Client signs outgoing payment URLs and verifies callback signatures
// against the shared merchant secret.
type Client struct {
	cfg config.VNPayConfig
}

// PaymentRequest carries everything needed to build a hosted-payment URL.
type PaymentRequest struct {
	OrderID uuid.UUID
	// AmountCents is the order total in minor units, which is exactly
	// the x100 scaling the gateway expects for whole-unit currencies.
	AmountCents int
	OrderInfo   string
	IPAddr      string
	CreatedAt   time.Time
}

// CallbackResult is the parsed, signature-verified gateway callback.
type CallbackResult struct {
	OrderID       uuid.UUID
	ResponseCode  string
	TransactionNo string
	AmountCents   int
}

// Success reports whether the gateway settled the payment.
func (r CallbackResult) Success() bool {
	return r.ResponseCode == ResponseCodeSuccess
}

func New(cfg config.VNPayConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vnpay base url is required")
	}
	if cfg.TmnCode == "" {
		return nil, fmt.Errorf("vnpay tmn code is required")
	}
	if cfg.HashSecret == "" {
		return nil, fmt.Errorf("vnpay hash secret is required")
	}
	if cfg.ReturnURL == "" {
		return nil, fmt.Errorf("vnpay return url is required")
	}
	return &Client{cfg: cfg}, nil
}

// BuildPaymentURL assembles the signed redirect URL for the hosted
// payment page. The signature covers every vnp_ parameter, sorted by
// name and URL-encoded, and is appended as vnp_SecureHash.
func (c *Client) BuildPaymentURL(req PaymentRequest) (string, error) {
	if req.OrderID == uuid.Nil {
		return "", fmt.Errorf("order id is required")
	}
	if req.AmountCents <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	info := req.OrderInfo
	if info == "" {
		info = fmt.Sprintf("Payment for order %s", req.OrderID)
	}
	ip := req.IPAddr
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := map[string]string{
		"vnp_Version":    apiVersion,
		"vnp_Command":    commandPay,
		"vnp_TmnCode":    c.cfg.TmnCode,
		"vnp_Amount":     strconv.Itoa(req.AmountCents),
		"vnp_CreateDate": createdAt.Format(dateLayout),
		"vnp_CurrCode":   c.cfg.Currency,
		"vnp_IpAddr":     ip,
		"vnp_Locale":     c.cfg.Locale,
		"vnp_OrderInfo":  info,
		"vnp_OrderType":  orderType,
		"vnp_ReturnUrl":  c.cfg.ReturnURL,
		"vnp_TxnRef":     req.OrderID.String(),
	}

	signData := canonicalQuery(params)
	signature := c.sign(signData)

	return fmt.Sprintf("%s?%s&%s=%s", c.cfg.BaseURL, signData, paramSecureHash, signature), nil
}

// VerifyCallback checks the HMAC signature of the gateway's return/IPN
// parameters and extracts the typed result. A missing or mismatched
// signature fails verification; nothing else is interpreted first.
func (c *Client) VerifyCallback(query url.Values) (CallbackResult, error) {
	received := query.Get(paramSecureHash)
	if received == "" {
		return CallbackResult{}, fmt.Errorf("missing %s parameter", paramSecureHash)
	}

	params := make(map[string]string, len(query))
	for key := range query {
		if key == paramSecureHash || key == paramSecureHashType {
			continue
		}
		if !strings.HasPrefix(key, "vnp_") {
			continue
		}
		params[key] = query.Get(key)
	}

	expected := c.sign(canonicalQuery(params))
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return CallbackResult{}, fmt.Errorf("secure hash mismatch")
	}

	orderID, err := uuid.Parse(query.Get("vnp_TxnRef"))
	if err != nil {
		return CallbackResult{}, fmt.Errorf("invalid vnp_TxnRef: %w", err)
	}

	amount, _ := strconv.Atoi(query.Get("vnp_Amount"))

	return CallbackResult{
		OrderID:       orderID,
		ResponseCode:  query.Get("vnp_ResponseCode"),
		TransactionNo: query.Get("vnp_TransactionNo"),
		AmountCents:   amount,
	}, nil
}

// canonicalQuery renders params as sorted, URL-encoded key=value pairs
// joined with ampersands. The same form is used for signing and for the
// redirect query string.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(key))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(params[key]))
	}
	return sb.String()
}

func (c *Client) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(c.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
