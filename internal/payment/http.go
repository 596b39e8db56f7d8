package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// HTTPProcessor confirms intents against a card processor's REST API using
// the publishable key, the same call a browser SDK makes.
type HTTPProcessor struct {
	baseURL        string
	publishableKey string
	client         *http.Client
	log            *zap.Logger
}

func NewHTTPProcessor(baseURL, publishableKey string, timeout time.Duration, log *zap.Logger) *HTTPProcessor {
	return &HTTPProcessor{
		baseURL:        strings.TrimRight(baseURL, "/"),
		publishableKey: publishableKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
}

type intentResponse struct {
	ID               string        `json:"id"`
	Status           string        `json:"status"`
	LastPaymentError *processorErr `json:"last_payment_error"`
}

type processorErr struct {
	Message     string `json:"message"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
}

func (e *processorErr) declined() *DeclinedError {
	code := e.DeclineCode
	if code == "" {
		code = e.Code
	}
	return &DeclinedError{Refusal: refusalFromCode(code), Reason: e.Message}
}

// intentID extracts "pi_123" from "pi_123_secret_abc".
func intentID(clientSecret string) (string, error) {
	i := strings.Index(clientSecret, "_secret_")
	if i <= 0 {
		return "", fmt.Errorf("malformed client secret")
	}
	return clientSecret[:i], nil
}

func (p *HTTPProcessor) Confirm(ctx context.Context, req ConfirmRequest) (Confirmation, error) {
	id, err := intentID(req.ClientSecret)
	if err != nil {
		return Confirmation{}, err
	}

	form := url.Values{}
	form.Set("client_secret", req.ClientSecret)
	form.Set("key", p.publishableKey)
	form.Set("payment_method", req.Method.Token)
	if req.Billing.Name != "" {
		form.Set("payment_method_data[billing_details][name]", req.Billing.Name)
	}
	if req.Billing.Email != "" {
		form.Set("payment_method_data[billing_details][email]", req.Billing.Email)
	}

	endpoint := p.baseURL + "/v1/payment_intents/" + url.PathEscape(id) + "/confirm"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Confirmation{}, fmt.Errorf("build confirm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Confirmation{}, fmt.Errorf("confirm payment: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Confirmation{}, fmt.Errorf("read confirm response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var body struct {
			Error *processorErr `json:"error"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Error != nil {
			return Confirmation{}, body.Error.declined()
		}
		return Confirmation{}, fmt.Errorf("confirm payment: processor returned %d", resp.StatusCode)
	}

	var intent intentResponse
	if err := json.Unmarshal(raw, &intent); err != nil {
		return Confirmation{}, fmt.Errorf("decode confirm response: %w", err)
	}
	if intent.Status != "succeeded" {
		if intent.LastPaymentError != nil {
			return Confirmation{}, intent.LastPaymentError.declined()
		}
		return Confirmation{}, &DeclinedError{Reason: "intent status " + intent.Status}
	}
	if intent.ID == "" {
		return Confirmation{}, ErrMissingPaymentID
	}

	p.log.Debug("payment confirmed", zap.String("payment_id", intent.ID))
	return Confirmation{PaymentID: intent.ID, Status: intent.Status}, nil
}
