package coupon

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// RemoteValidator asks a discount-validation endpoint about a code. The
// endpoint answers with the service's usual envelope around a Result.
type RemoteValidator struct {
	client *resty.Client
}

type remoteEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    Result `json:"data"`
}

func NewRemoteValidator(baseURL string, timeout time.Duration, transport http.RoundTripper) *RemoteValidator {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if transport != nil {
		client.SetTransport(transport)
	}
	return &RemoteValidator{client: client}
}

func (v *RemoteValidator) Validate(ctx context.Context, code string) (Result, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Result{}, ErrEmptyCode
	}

	var body remoteEnvelope
	resp, err := v.client.R().
		SetContext(ctx).
		SetPathParam("code", code).
		SetResult(&body).
		Get("/{code}")
	if err != nil {
		return Result{}, fmt.Errorf("failed to call coupon validation endpoint: %w", err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return Result{Code: code, Valid: false}, nil
	}
	if resp.IsError() {
		return Result{}, fmt.Errorf("coupon validation endpoint returned %s", resp.Status())
	}

	result := body.Data
	result.Code = code
	if !result.Valid || result.DiscountPerUnit.IsNegative() {
		result.DiscountPerUnit = decimal.Zero
	}
	return result, nil
}
