package payments

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SeatQty is one purchased line as the client sends it
type SeatQty struct {
	SeatsNo int64 `json:"seatsNo" validate:"required,gt=0"`
	Qty     int   `json:"qty" validate:"required,gt=0,lte=9"`
}

type PurchaseRequest struct {
	SeatsList   []SeatQty `json:"seatsList" validate:"required,min=1,dive"`
	ApprovalURL string    `json:"approvalUrl" validate:"required,url"`
	CancelURL   string    `json:"cancelUrl" validate:"required,url"`
	FailURL     string    `json:"failUrl" validate:"required,url"`
}

// ApproveRequest resupplies the seat list; nothing from ready is kept server-side
type ApproveRequest struct {
	PartnerOrderID string    `json:"partnerOrderId" validate:"required"`
	TID            string    `json:"tid" validate:"required"`
	PgToken        string    `json:"pgToken" validate:"required"`
	SeatsList      []SeatQty `json:"seatsList" validate:"required,min=1,dive"`
}

// DetailUpdateRequest carries the passenger fields; nil leaves a field unchanged
type DetailUpdateRequest struct {
	PassengerName        *string `json:"passengerName" validate:"omitempty,max=50"`
	PassengerEnglishName *string `json:"passengerEnglishName" validate:"omitempty,max=100"`
	PassportNumber       *string `json:"passportNumber" validate:"omitempty,alphanum,max=20"`
	PassengerBirth       *string `json:"passengerBirth" validate:"omitempty,datetime=2006-01-02"`
	PassengerGender      *string `json:"passengerGender" validate:"omitempty,oneof=M F"`
	PassengerNationality *string `json:"passengerNationality" validate:"omitempty,max=50"`
}

// FieldError is one failed validation rule in a 400 response
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Validate runs the struct rules and flattens any failures
func Validate(req interface{}) []FieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "body", Rule: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Namespace(), Rule: fe.Tag()})
	}
	return out
}

func (r DetailUpdateRequest) apply(d *PaymentDetail) {
	if r.PassengerName != nil {
		d.PassengerName = *r.PassengerName
	}
	if r.PassengerEnglishName != nil {
		d.PassengerEnglishName = *r.PassengerEnglishName
	}
	if r.PassportNumber != nil {
		d.PassportNumber = *r.PassportNumber
	}
	if r.PassengerBirth != nil {
		d.PassengerBirth = *r.PassengerBirth
	}
	if r.PassengerGender != nil {
		d.PassengerGender = *r.PassengerGender
	}
	if r.PassengerNationality != nil {
		d.PassengerNationality = *r.PassengerNationality
	}
}
