package zarinpal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateway(t *testing.T, routes map[string]func(body map[string]any) string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(body)))
	}))
	t.Cleanup(srv.Close)

	c := New(Config{MerchantID: "merchant-1", CallbackURL: "https://api.example.com/v1/payment/callback", BaseURL: srv.URL})
	return c, srv
}

func TestRequestPaymentSuccess(t *testing.T) {
	var got map[string]any
	c, srv := gateway(t, map[string]func(map[string]any) string{
		requestPath: func(body map[string]any) string {
			got = body
			return `{"data":{"code":100,"message":"Success","authority":"A0000001"},"errors":[]}`
		},
	})

	link, err := c.RequestPayment(context.Background(), PaymentRequest{
		Amount: 1500, Mobile: "09120000000", Email: "u@example.com", OrderID: "ord-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "A0000001", link.Authority)
	assert.Equal(t, srv.URL+"/pg/StartPay/A0000001", link.URL)

	assert.Equal(t, float64(15000), got["amount"])
	assert.Equal(t, "merchant-1", got["merchant_id"])
	assert.Equal(t, paymentDescription, got["description"])
	meta := got["metadata"].(map[string]any)
	assert.Equal(t, "ord-1", meta["order_id"])
	assert.Equal(t, "09120000000", meta["mobile"])
}

func TestRequestPaymentRejections(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"message and code", `{"data":[],"errors":{"code":-9,"message":"The input params invalid."}}`, "-9: The input params invalid."},
		{"field lists", `{"data":[],"errors":{"amount":["too small","not int"],"email":["invalid"]}}`, "amount: too small | not int | email: invalid"},
		{"list of messages", `{"data":[],"errors":[{"message":"first"},"second"]}`, "first | second"},
		{"nothing useful", `{"data":{"code":-1},"errors":[]}`, "Payment request failed."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gateway(t, map[string]func(map[string]any) string{
				requestPath: func(map[string]any) string { return tc.payload },
			})
			_, err := c.RequestPayment(context.Background(), PaymentRequest{Amount: 100})
			var ge *GatewayError
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tc.want, ge.Message)
		})
	}
}

func TestVerify(t *testing.T) {
	c, _ := gateway(t, map[string]func(map[string]any) string{
		verifyPath: func(body map[string]any) string {
			if body["authority"] == "A-ok" {
				return `{"data":{"code":101,"ref_id":201,"card_pan":"502229******5995"},"errors":[]}`
			}
			return `{"data":[],"errors":{"code":-51,"message":"Session is not valid."}}`
		},
	})

	rc, err := c.Verify(context.Background(), "A-ok", 1000)
	require.NoError(t, err)
	assert.Equal(t, "201", rc.RefID)
	assert.Equal(t, "502229******5995", rc.CardPan)

	_, err = c.Verify(context.Background(), "A-bad", 1000)
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, -51, ge.Code)
}

func TestUnverifiedAndInquiry(t *testing.T) {
	c, _ := gateway(t, map[string]func(map[string]any) string{
		unverifiedPath: func(map[string]any) string {
			return `{"data":{"code":100,"authorities":[{"authority":"A1","amount":1000},"A2"]},"errors":[]}`
		},
		inquiryPath: func(map[string]any) string {
			return `{"data":{"code":100,"status":"IN_BANK"},"errors":[]}`
		},
	})

	auths, err := c.Unverified(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, auths)

	status, err := c.Inquiry(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, InquiryInBank, status)
}

func TestTransportError(t *testing.T) {
	c := New(Config{MerchantID: "m", BaseURL: "http://127.0.0.1:1"})
	_, err := c.RequestPayment(context.Background(), PaymentRequest{Amount: 10})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestBaseURLSelection(t *testing.T) {
	assert.Equal(t, SandboxBaseURL+"/pg/StartPay/X", New(Config{Sandbox: true}).StartPayURL("X"))
	assert.Equal(t, ProductionBaseURL+"/pg/StartPay/X", New(Config{}).StartPayURL("X"))
}
