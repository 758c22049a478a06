package paygateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"topgun/internal/shared/config"

	"github.com/google/uuid"
)

const (
	pathReady   = "/online/v1/payment/ready"
	pathApprove = "/online/v1/payment/approve"
	pathCancel  = "/online/v1/payment/cancel"
	pathOrder   = "/online/v1/payment/order"

	maxResponseBytes = 1 << 20
)

// Gateway is the four-operation contract the payment flow depends on
type Gateway interface {
	Ready(ctx context.Context, req ReadyRequest) (*ReadyResponse, error)
	Approve(ctx context.Context, req ApproveRequest) (*ApproveResponse, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResponse, error)
	Order(ctx context.Context, req OrderRequest) (*OrderResponse, error)
}

// Client talks to the pay provider over HTTPS. Calls are never retried.
type Client struct {
	baseURL    string
	secretKey  string
	authScheme string
	cid        string
	httpClient *http.Client
}

func NewClient(cfg config.PayGatewayConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		authScheme: cfg.AuthScheme,
		cid:        cfg.CID,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewPartnerOrderID mints a fresh order id; every ready call gets its own
func NewPartnerOrderID() string {
	return uuid.NewString()
}

func (c *Client) Ready(ctx context.Context, req ReadyRequest) (*ReadyResponse, error) {
	if req.PartnerOrderID == "" {
		req.PartnerOrderID = NewPartnerOrderID()
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	var resp ReadyResponse
	if err := c.post(ctx, "ready", pathReady, withCID{c.cid, req}, &resp); err != nil {
		return nil, err
	}
	resp.PartnerOrderID = req.PartnerOrderID
	resp.PartnerUserID = req.PartnerUserID
	return &resp, nil
}

func (c *Client) Approve(ctx context.Context, req ApproveRequest) (*ApproveResponse, error) {
	var resp ApproveResponse
	if err := c.post(ctx, "approve", pathApprove, withCID{c.cid, req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Cancel(ctx context.Context, req CancelRequest) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.post(ctx, "cancel", pathCancel, withCID{c.cid, req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Order(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	var resp OrderResponse
	if err := c.post(ctx, "order", pathOrder, withCID{c.cid, req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// withCID flattens the merchant cid into every request body
type withCID struct {
	cid  string
	body interface{}
}

func (w withCID) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(w.body)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	cid, _ := json.Marshal(w.cid)
	fields["cid"] = cid
	return json.Marshal(fields)
}

func (c *Client) post(ctx context.Context, operation, path string, body interface{}, out interface{}) error {
	if c.secretKey == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	httpReq.Header.Set("Authorization", c.authScheme+" "+c.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("pay gateway %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := &GatewayError{Operation: operation, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && (eb.ErrorCode != 0 || eb.ErrorMessage != "") {
			gwErr.Code = eb.ErrorCode
			gwErr.Message = eb.ErrorMessage
			gwErr.Extras = eb.Extras
		} else {
			gwErr.Message = strings.TrimSpace(string(respBody))
		}
		return gwErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}
