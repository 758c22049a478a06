package payments

import (
	"topgun/internal/paygateway"
)

// ReadyResult is the gateway ready response plus what we computed for it
type ReadyResult struct {
	paygateway.ReadyResponse
	ItemName    string `json:"item_name"`
	TotalAmount int64  `json:"total_amount"`
}

type ApproveResult struct {
	paygateway.ApproveResponse
	PaymentNo int64 `json:"payment_no"`
}

// PaymentInfo is the combined detail view: ledger rows and the provider's snapshot
type PaymentInfo struct {
	Payment *PaymentHeader            `json:"paymentDto"`
	Details []PaymentDetail           `json:"paymentDetailList"`
	Order   *paygateway.OrderResponse `json:"responseVO"`
}
