package notifications

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type PaymentEventType string

const (
	PaymentEventApproved      PaymentEventType = "payment.approved"
	PaymentEventCancelled     PaymentEventType = "payment.cancelled"
	PaymentEventItemCancelled PaymentEventType = "payment.item_cancelled"
)

// PaymentEvent is published after a payment transition is committed locally
type PaymentEvent struct {
	ID         uuid.UUID        `json:"id"`
	Type       PaymentEventType `json:"type"`
	PaymentNo  int64            `json:"payment_no"`
	DetailNo   *int64           `json:"detail_no,omitempty"`
	UserID     string           `json:"user_id"`
	TID        string           `json:"tid"`
	Amount     int64            `json:"amount"`
	Remaining  int64            `json:"remaining"`
	OccurredAt time.Time        `json:"occurred_at"`
}

func NewPaymentEvent(eventType PaymentEventType, paymentNo int64, userID, tid string, amount, remaining int64) *PaymentEvent {
	return &PaymentEvent{
		ID:         uuid.New(),
		Type:       eventType,
		PaymentNo:  paymentNo,
		UserID:     userID,
		TID:        tid,
		Amount:     amount,
		Remaining:  remaining,
		OccurredAt: time.Now().UTC(),
	}
}

// WithDetail tags the event with the cancelled line
func (e *PaymentEvent) WithDetail(detailNo int64) *PaymentEvent {
	e.DetailNo = &detailNo
	return e
}

// GetPartitionKey keeps every event of one payment on one partition
func (e *PaymentEvent) GetPartitionKey() string {
	return strconv.FormatInt(e.PaymentNo, 10)
}

func (e *PaymentEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
