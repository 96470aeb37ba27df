package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/2beens/fitcoach/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// SecretHeader carries the shared secret in both directions: on requests to the
// gateway, and on the gateway's confirm/fail callbacks.
const SecretHeader = "X-Gateway-Secret"

var (
	ErrNotConfigured = errors.New("transfer gateway not configured")
	// ErrRejected is a definite refusal (4xx), the gateway did not execute the request.
	// Any other error leaves the outcome unknown.
	ErrRejected = errors.New("rejected by transfer gateway")
)

type SubmitTransferRequest struct {
	Reference string `json:"reference"`
	Address   string `json:"address"`
	Amount    int64  `json:"amount"`
}

type TrustLineRequest struct {
	UserID  int64  `json:"userId"`
	Address string `json:"address"`
}

// Client submits VII-FT transfers and trust line setups to the external token gateway.
// The gateway works asynchronously and reports outcomes back through the callback endpoints.
// Transfers are keyed by reference on the gateway side, so the same transfer can be submitted again.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func NewClient(baseURL, secret string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		secret:     secret,
		httpClient: httpClient,
	}
}

func (c *Client) SubmitTransfer(ctx context.Context, reference, address string, amount int64) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "transfer.submit")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("transfer.reference", reference),
		attribute.Int64("transfer.amount", amount),
	)

	return c.post(ctx, "/transfers", SubmitTransferRequest{
		Reference: reference,
		Address:   address,
		Amount:    amount,
	})
}

func (c *Client) RequestTrustLine(ctx context.Context, userID int64, address string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "transfer.trustline")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int64("user.id", userID))

	return c.post(ctx, "/trustlines", TrustLineRequest{
		UserID:  userID,
		Address: address,
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		log.Debugf("transfer gateway %s: accepted", path)
		return nil
	}

	// keep the error message short, gateway errors end up in transaction failure reasons
	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	message := strings.TrimSpace(string(respBytes))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%w: %s responded %d: %s", ErrRejected, path, resp.StatusCode, message)
	}
	return fmt.Errorf("gateway %s responded %d: %s", path, resp.StatusCode, message)
}
