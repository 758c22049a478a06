package payments

import (
	"strconv"
	"time"
)

// PaymentHeader summarizes one checkout. Never deleted; only cancellations mutate it.
type PaymentHeader struct {
	PaymentNo     int64     `gorm:"column:payment_no;primaryKey;autoIncrement:false" json:"paymentNo"`
	PaymentTid    string    `gorm:"column:payment_tid;type:varchar(64);uniqueIndex;not null" json:"paymentTid"`
	PaymentName   string    `gorm:"column:payment_name;type:varchar(200);not null" json:"paymentName"`
	PaymentTotal  int64     `gorm:"column:payment_total;not null" json:"paymentTotal"`
	PaymentRemain int64     `gorm:"column:payment_remain;not null" json:"paymentRemain"`
	UserID        string    `gorm:"column:user_id;type:varchar(50);not null;index" json:"userId"`
	Status        Status    `gorm:"column:payment_status;type:varchar(30);not null;default:'APPROVED'" json:"paymentStatus"`
	Version       int64     `gorm:"column:version;not null;default:1" json:"-"`
	PaymentTime   time.Time `gorm:"column:payment_time;not null" json:"paymentTime"`
}

func (PaymentHeader) TableName() string {
	return "payments"
}

func (h *PaymentHeader) OwnedBy(userID string) bool {
	return userID != "" && h.UserID == userID
}

// FullyCancelled reports whether nothing is left to refund
func (h *PaymentHeader) FullyCancelled() bool {
	return h.PaymentRemain == 0 || h.Status.IsTerminal()
}

// PaymentDetail is one purchased seat line
type PaymentDetail struct {
	PaymentDetailNo      int64        `gorm:"column:payment_detail_no;primaryKey;autoIncrement:false" json:"paymentDetailNo"`
	PaymentDetailOrigin  int64        `gorm:"column:payment_detail_origin;not null" json:"paymentDetailOrigin"`
	PaymentDetailSeatsNo int64        `gorm:"column:payment_detail_seats_no;not null" json:"paymentDetailSeatsNo"`
	PaymentDetailPrice   int64        `gorm:"column:payment_detail_price;not null" json:"paymentDetailPrice"`
	PaymentDetailQty     int          `gorm:"column:payment_detail_qty;not null" json:"paymentDetailQty"`
	PaymentDetailName    string       `gorm:"column:payment_detail_name;type:varchar(100);not null" json:"paymentDetailName"`
	PaymentDetailStatus  DetailStatus `gorm:"column:payment_detail_status;type:varchar(20);not null;default:'APPROVED'" json:"paymentDetailStatus"`

	// Passenger info, filled in after purchase
	PassengerName        string `gorm:"column:passenger_name;type:varchar(50)" json:"passengerName"`
	PassengerEnglishName string `gorm:"column:passenger_english_name;type:varchar(100)" json:"passengerEnglishName"`
	PassportNumber       string `gorm:"column:passport_number;type:varchar(20)" json:"passportNumber"`
	PassengerBirth       string `gorm:"column:passenger_birth;type:varchar(10)" json:"passengerBirth"`
	PassengerGender      string `gorm:"column:passenger_gender;type:varchar(10)" json:"passengerGender"`
	PassengerNationality string `gorm:"column:passenger_nationality;type:varchar(50)" json:"passengerNationality"`
}

func (PaymentDetail) TableName() string {
	return "payment_details"
}

// Amount is the line total, price × qty
func (d *PaymentDetail) Amount() int64 {
	return d.PaymentDetailPrice * int64(d.PaymentDetailQty)
}

func (d *PaymentDetail) IsCancelled() bool {
	return d.PaymentDetailStatus == DetailStatusCancelled
}

// PaymentCancellation records a cancel the gateway has confirmed.
// Applied flips once the local ledger reflects it.
type PaymentCancellation struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PaymentNo       int64      `gorm:"column:payment_no;not null;index" json:"paymentNo"`
	PaymentDetailNo *int64     `gorm:"column:payment_detail_no" json:"paymentDetailNo,omitempty"`
	TID             string     `gorm:"column:tid;type:varchar(64);not null" json:"tid"`
	Amount          int64      `gorm:"column:amount;not null" json:"amount"`
	IdempotencyKey  string     `gorm:"column:idempotency_key;type:varchar(120);uniqueIndex;not null" json:"idempotencyKey"`
	Applied         bool       `gorm:"column:applied;not null;default:false" json:"applied"`
	CreatedAt       time.Time  `gorm:"column:created_at" json:"createdAt"`
	AppliedAt       *time.Time `gorm:"column:applied_at" json:"appliedAt,omitempty"`
}

func (PaymentCancellation) TableName() string {
	return "payment_cancellations"
}

func (c *PaymentCancellation) IsItem() bool {
	return c.PaymentDetailNo != nil
}

// CancellationKey identifies one cancellation: tid, target line (or "all") and amount
func CancellationKey(tid string, detailNo *int64, amount int64) string {
	target := "all"
	if detailNo != nil {
		target = "d" + strconv.FormatInt(*detailNo, 10)
	}
	return tid + ":" + target + ":" + strconv.FormatInt(amount, 10)
}

// PaymentTotal is a header with its lines
type PaymentTotal struct {
	Payment PaymentHeader   `json:"paymentDto"`
	Details []PaymentDetail `json:"paymentDetailList"`
}
