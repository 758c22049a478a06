package paygateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"topgun/internal/shared/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.PayGatewayConfig{
		BaseURL:    srv.URL + "/",
		SecretKey:  "DEV-KEY",
		AuthScheme: "SECRET_KEY",
		CID:        "TC0ONETIME",
		Timeout:    2 * time.Second,
	})
}

func decodeBody(t *testing.T, r *http.Request) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("decode request: %v", err)
	}
	return body
}

func TestReady(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pathReady || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "SECRET_KEY DEV-KEY" {
			t.Errorf("Authorization = %q", auth)
		}
		got = decodeBody(t, r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tid":"T123","next_redirect_pc_url":"https://pay/redirect","created_at":"2024-05-01T10:00:00Z"}`))
	})

	resp, err := c.Ready(context.Background(), ReadyRequest{
		PartnerUserID: "alice",
		ItemName:      "A1 외 1건",
		TotalAmount:   25000,
		ApprovalURL:   "http://localhost:3000/success",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.TID != "T123" || resp.NextRedirectPcURL != "https://pay/redirect" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.PartnerOrderID == "" || resp.PartnerUserID != "alice" {
		t.Errorf("partner ids not echoed: %+v", resp)
	}
	if got["cid"] != "TC0ONETIME" || got["item_name"] != "A1 외 1건" || got["total_amount"] != float64(25000) {
		t.Errorf("request body = %v", got)
	}
	if got["partner_order_id"] != resp.PartnerOrderID || got["quantity"] != float64(1) {
		t.Errorf("request body = %v", got)
	}
}

func TestReadyMintsFreshOrderIDs(t *testing.T) {
	seen := map[string]bool{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		id, _ := body["partner_order_id"].(string)
		seen[id] = true
		_, _ = w.Write([]byte(`{"tid":"T"}`))
	})
	for i := 0; i < 5; i++ {
		if _, err := c.Ready(context.Background(), ReadyRequest{PartnerUserID: "u", TotalAmount: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct order ids, got %d", len(seen))
	}
}

func TestApproveAndCancel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		switch r.URL.Path {
		case pathApprove:
			if body["pg_token"] != "pg" || body["tid"] != "T1" {
				t.Errorf("approve body = %v", body)
			}
			_, _ = w.Write([]byte(`{"tid":"T1","item_name":"A1 외 1건","amount":{"total":25000,"vat":2273}}`))
		case pathCancel:
			if body["cancel_amount"] != float64(10000) || body["cancel_tax_free_amount"] != float64(0) {
				t.Errorf("cancel body = %v", body)
			}
			_, _ = w.Write([]byte(`{"tid":"T1","status":"PART_CANCEL_PAYMENT","canceled_amount":{"total":10000},"cancel_available_amount":{"total":15000}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	ap, err := c.Approve(context.Background(), ApproveRequest{TID: "T1", PartnerOrderID: "o", PartnerUserID: "alice", PgToken: "pg"})
	if err != nil {
		t.Fatal(err)
	}
	if ap.Amount.Total != 25000 || ap.Amount.Vat != 2273 {
		t.Errorf("amount = %+v", ap.Amount)
	}

	cr, err := c.Cancel(context.Background(), CancelRequest{TID: "T1", CancelAmount: 10000})
	if err != nil {
		t.Fatal(err)
	}
	if cr.CanceledAmount.Total != 10000 || cr.CancelAvailableAmount.Total != 15000 {
		t.Errorf("cancel resp = %+v", cr)
	}
}

func TestOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tid":"T1","status":"SUCCESS_PAYMENT","payment_action_details":[{"aid":"A1","amount":25000,"payment_action_type":"PAYMENT","approved_at":"2024-05-01T10:00:00Z"}]}`))
	})
	resp, err := c.Order(context.Background(), OrderRequest{TID: "T1"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "SUCCESS_PAYMENT" || len(resp.PaymentActionDetails) != 1 || resp.PaymentActionDetails[0].Amount != 25000 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGatewayErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "provider error body",
			status:   http.StatusBadRequest,
			body:     `{"error_code":-780,"error_message":"approval failure!","extras":{"method_result_code":"USER_LOCKED"}}`,
			wantCode: -780,
			wantMsg:  "approval failure!",
		},
		{
			name:    "opaque body",
			status:  http.StatusBadGateway,
			body:    "upstream down",
			wantMsg: "upstream down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Cancel(context.Background(), CancelRequest{TID: "T1", CancelAmount: 1})
			gwErr, ok := AsGatewayError(err)
			if !ok {
				t.Fatalf("expected *GatewayError, got %T %v", err, err)
			}
			if gwErr.StatusCode != tt.status || gwErr.Code != tt.wantCode || gwErr.Message != tt.wantMsg || gwErr.Operation != "cancel" {
				t.Errorf("gwErr = %+v", gwErr)
			}
		})
	}
}

func TestNotConfigured(t *testing.T) {
	c := NewClient(config.PayGatewayConfig{BaseURL: "http://127.0.0.1:1"})
	if _, err := c.Order(context.Background(), OrderRequest{TID: "T"}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
