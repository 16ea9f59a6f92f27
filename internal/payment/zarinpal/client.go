package zarinpal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	SandboxBaseURL    = "https://sandbox.zarinpal.com"
	ProductionBaseURL = "https://payment.zarinpal.com"

	requestPath    = "/pg/v4/payment/request.json"
	verifyPath     = "/pg/v4/payment/verify.json"
	unverifiedPath = "/pg/v4/payment/unVerified.json"
	inquiryPath    = "/pg/v4/payment/inquiry.json"
	startPayPath   = "/pg/StartPay/"

	codeSuccess  = 100
	codeVerified = 101

	paymentDescription = "Register workshops or talks"
)

const (
	InquiryPaid     = "paid"
	InquiryVerified = "verified"
	InquiryInBank   = "in_bank"
	InquiryFailed   = "failed"
	InquiryReversed = "reversed"
)

var ErrTransport = errors.New("payment gateway unreachable")

// GatewayError is a rejection reported by the gateway itself.
type GatewayError struct {
	Code    int
	Message string
}

func (e *GatewayError) Error() string {
	return e.Message
}

type Config struct {
	MerchantID  string
	CallbackURL string
	Sandbox     bool
	// BaseURL overrides the sandbox/production switch.
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	base string
	http *http.Client
}

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = ProductionBaseURL
		if cfg.Sandbox {
			base = SandboxBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{cfg: cfg, base: strings.TrimRight(base, "/"), http: &http.Client{Timeout: timeout}}
}

func (c *Client) CallbackConfigured() bool {
	return c.cfg.CallbackURL != ""
}

// StartPayURL is where the user is redirected to pay.
func (c *Client) StartPayURL(authority string) string {
	return c.base + startPayPath + authority
}

type PaymentRequest struct {
	// Amount is in Toman. The gateway is sent Rial.
	Amount  int64
	Mobile  string
	Email   string
	OrderID string
}

type PaymentLink struct {
	Authority string
	URL       string
}

type Receipt struct {
	RefID   string
	CardPan string
	Code    int
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
	// Message appears on some transport-level rejections.
	Message string `json:"message"`
}

type dataBlock struct {
	Code        int             `json:"code"`
	Message     string          `json:"message"`
	Authority   string          `json:"authority"`
	RefID       json.Number     `json:"ref_id"`
	CardPan     string          `json:"card_pan"`
	Status      string          `json:"status"`
	Authorities json.RawMessage `json:"authorities"`
}

func (c *Client) post(ctx context.Context, path string, body any) (*envelope, *dataBlock, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, nil, fmt.Errorf("%w: bad response (HTTP %d): %v", ErrTransport, resp.StatusCode, err)
	}
	var data dataBlock
	// the gateway sends "data": [] on errors
	if len(env.Data) > 0 && env.Data[0] == '{' {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, nil, fmt.Errorf("%w: bad data block: %v", ErrTransport, err)
		}
	}
	return &env, &data, nil
}

// RequestPayment opens a payment and returns its authority and StartPay link.
func (c *Client) RequestPayment(ctx context.Context, pr PaymentRequest) (*PaymentLink, error) {
	metadata := map[string]string{}
	if pr.Mobile != "" {
		metadata["mobile"] = pr.Mobile
	}
	if pr.Email != "" {
		metadata["email"] = pr.Email
	}
	if pr.OrderID != "" {
		metadata["order_id"] = pr.OrderID
	}
	env, data, err := c.post(ctx, requestPath, map[string]any{
		"merchant_id":  c.cfg.MerchantID,
		"amount":       pr.Amount * 10,
		"callback_url": c.cfg.CallbackURL,
		"description":  paymentDescription,
		"metadata":     metadata,
	})
	if err != nil {
		return nil, err
	}
	if data.Code == codeSuccess && data.Authority != "" {
		return &PaymentLink{Authority: data.Authority, URL: c.StartPayURL(data.Authority)}, nil
	}
	return nil, rejection(env, data, "Payment request failed.")
}

// Verify settles a payment. Codes 100 and 101 (already verified) both succeed.
func (c *Client) Verify(ctx context.Context, authority string, amount int64) (*Receipt, error) {
	env, data, err := c.post(ctx, verifyPath, map[string]any{
		"merchant_id": c.cfg.MerchantID,
		"amount":      amount * 10,
		"authority":   authority,
	})
	if err != nil {
		return nil, err
	}
	if data.Code == codeSuccess || data.Code == codeVerified {
		return &Receipt{RefID: data.RefID.String(), CardPan: data.CardPan, Code: data.Code}, nil
	}
	return nil, rejection(env, data, "Payment verification failed.")
}

// Unverified lists authorities paid by users but not yet verified by the merchant.
func (c *Client) Unverified(ctx context.Context) ([]string, error) {
	env, data, err := c.post(ctx, unverifiedPath, map[string]any{"merchant_id": c.cfg.MerchantID})
	if err != nil {
		return nil, err
	}
	if data.Code != codeSuccess {
		return nil, rejection(env, data, "Unverified list request failed.")
	}

	var items []json.RawMessage
	if len(data.Authorities) > 0 {
		if err := json.Unmarshal(data.Authorities, &items); err != nil {
			return nil, fmt.Errorf("%w: bad authorities list: %v", ErrTransport, err)
		}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		var s string
		if json.Unmarshal(it, &s) == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Authority string `json:"authority"`
		}
		if json.Unmarshal(it, &obj) == nil && obj.Authority != "" {
			out = append(out, obj.Authority)
		}
	}
	return out, nil
}

// Inquiry reports the gateway-side state of an authority, lower-cased.
func (c *Client) Inquiry(ctx context.Context, authority string) (string, error) {
	env, data, err := c.post(ctx, inquiryPath, map[string]any{
		"merchant_id": c.cfg.MerchantID,
		"authority":   authority,
	})
	if err != nil {
		return "", err
	}
	if data.Code != codeSuccess {
		return "", rejection(env, data, "Payment inquiry failed.")
	}
	return strings.ToLower(data.Status), nil
}

// rejection builds a GatewayError from whatever shape the errors block has.
func rejection(env *envelope, data *dataBlock, fallback string) *GatewayError {
	ge := &GatewayError{Code: data.Code}
	msg := ""

	var obj map[string]json.RawMessage
	var list []json.RawMessage
	switch {
	case json.Unmarshal(env.Errors, &obj) == nil && len(obj) > 0:
		var m string
		_ = json.Unmarshal(obj["message"], &m)
		var code int
		if json.Unmarshal(obj["code"], &code) == nil && code != 0 {
			ge.Code = code
		}
		if m != "" {
			msg = m
			if code != 0 {
				msg = strconv.Itoa(code) + ": " + m
			}
			break
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+flatten(obj[k]))
		}
		msg = strings.Join(parts, " | ")
	case json.Unmarshal(env.Errors, &list) == nil && len(list) > 0:
		parts := make([]string, 0, len(list))
		for _, e := range list {
			var em struct {
				Message *string `json:"message"`
			}
			if json.Unmarshal(e, &em) == nil && em.Message != nil {
				parts = append(parts, *em.Message)
			} else {
				parts = append(parts, flatten(e))
			}
		}
		msg = strings.Join(parts, " | ")
	}

	switch {
	case msg != "":
	case env.Message != "":
		msg = env.Message
	case data.Message != "":
		msg = data.Message
	default:
		msg = fallback
	}
	ge.Message = msg
	return ge
}

func flatten(raw json.RawMessage) string {
	var vals []any
	if json.Unmarshal(raw, &vals) == nil {
		parts := make([]string, 0, len(vals))
		for _, v := range vals {
			parts = append(parts, fmt.Sprint(v))
		}
		return strings.Join(parts, " | ")
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}
