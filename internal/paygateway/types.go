package paygateway

import "time"

// Amount is the provider's amount breakdown
type Amount struct {
	Total        int64 `json:"total"`
	TaxFree      int64 `json:"tax_free"`
	Vat          int64 `json:"vat"`
	Point        int64 `json:"point"`
	Discount     int64 `json:"discount"`
	GreenDeposit int64 `json:"green_deposit"`
}

type ReadyRequest struct {
	PartnerOrderID string `json:"partner_order_id"`
	PartnerUserID  string `json:"partner_user_id"`
	ItemName       string `json:"item_name"`
	Quantity       int    `json:"quantity"`
	TotalAmount    int64  `json:"total_amount"`
	TaxFreeAmount  int64  `json:"tax_free_amount"`
	ApprovalURL    string `json:"approval_url"`
	CancelURL      string `json:"cancel_url"`
	FailURL        string `json:"fail_url"`
}

type ReadyResponse struct {
	TID                   string    `json:"tid"`
	NextRedirectAppURL    string    `json:"next_redirect_app_url,omitempty"`
	NextRedirectMobileURL string    `json:"next_redirect_mobile_url,omitempty"`
	NextRedirectPcURL     string    `json:"next_redirect_pc_url,omitempty"`
	AndroidAppScheme      string    `json:"android_app_scheme,omitempty"`
	IosAppScheme          string    `json:"ios_app_scheme,omitempty"`
	CreatedAt             time.Time `json:"created_at"`

	// Echoed back so the caller can resend them at approve time
	PartnerOrderID string `json:"partner_order_id"`
	PartnerUserID  string `json:"partner_user_id"`
}

type ApproveRequest struct {
	TID            string `json:"tid"`
	PartnerOrderID string `json:"partner_order_id"`
	PartnerUserID  string `json:"partner_user_id"`
	PgToken        string `json:"pg_token"`
}

type CardInfo struct {
	KakaopayPurchaseCorp     string `json:"kakaopay_purchase_corp,omitempty"`
	KakaopayPurchaseCorpCode string `json:"kakaopay_purchase_corp_code,omitempty"`
	KakaopayIssuerCorp       string `json:"kakaopay_issuer_corp,omitempty"`
	KakaopayIssuerCorpCode   string `json:"kakaopay_issuer_corp_code,omitempty"`
	Bin                      string `json:"bin,omitempty"`
	CardType                 string `json:"card_type,omitempty"`
	InstallMonth             string `json:"install_month,omitempty"`
	ApprovedID               string `json:"approved_id,omitempty"`
	InterestFreeInstall      string `json:"interest_free_install,omitempty"`
}

type ApproveResponse struct {
	AID               string     `json:"aid"`
	TID               string     `json:"tid"`
	CID               string     `json:"cid"`
	PartnerOrderID    string     `json:"partner_order_id"`
	PartnerUserID     string     `json:"partner_user_id"`
	PaymentMethodType string     `json:"payment_method_type"`
	Amount            Amount     `json:"amount"`
	CardInfo          *CardInfo  `json:"card_info,omitempty"`
	ItemName          string     `json:"item_name"`
	ItemCode          string     `json:"item_code,omitempty"`
	Quantity          int        `json:"quantity"`
	CreatedAt         time.Time  `json:"created_at"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	Payload           string     `json:"payload,omitempty"`
}

type CancelRequest struct {
	TID                   string `json:"tid"`
	CancelAmount          int64  `json:"cancel_amount"`
	CancelTaxFreeAmount   int64  `json:"cancel_tax_free_amount"`
	CancelVatAmount       int64  `json:"cancel_vat_amount,omitempty"`
	CancelAvailableAmount int64  `json:"cancel_available_amount,omitempty"`
	Payload               string `json:"payload,omitempty"`
}

type CancelResponse struct {
	AID                   string     `json:"aid"`
	TID                   string     `json:"tid"`
	CID                   string     `json:"cid"`
	Status                string     `json:"status"`
	PartnerOrderID        string     `json:"partner_order_id"`
	PartnerUserID         string     `json:"partner_user_id"`
	PaymentMethodType     string     `json:"payment_method_type"`
	Amount                Amount     `json:"amount"`
	ApprovedCancelAmount  Amount     `json:"approved_cancel_amount"`
	CanceledAmount        Amount     `json:"canceled_amount"`
	CancelAvailableAmount Amount     `json:"cancel_available_amount"`
	ItemName              string     `json:"item_name"`
	ItemCode              string     `json:"item_code,omitempty"`
	Quantity              int        `json:"quantity"`
	CreatedAt             time.Time  `json:"created_at"`
	ApprovedAt            *time.Time `json:"approved_at,omitempty"`
	CanceledAt            *time.Time `json:"canceled_at,omitempty"`
	Payload               string     `json:"payload,omitempty"`
}

type OrderRequest struct {
	TID string `json:"tid"`
}

type PaymentActionDetail struct {
	AID               string    `json:"aid"`
	ApprovedAt        time.Time `json:"approved_at"`
	Amount            int64     `json:"amount"`
	PointAmount       int64     `json:"point_amount"`
	DiscountAmount    int64     `json:"discount_amount"`
	GreenDeposit      int64     `json:"green_deposit"`
	PaymentActionType string    `json:"payment_action_type"`
	Payload           string    `json:"payload,omitempty"`
}

type OrderResponse struct {
	TID                   string                `json:"tid"`
	CID                   string                `json:"cid"`
	Status                string                `json:"status"`
	PartnerOrderID        string                `json:"partner_order_id"`
	PartnerUserID         string                `json:"partner_user_id"`
	PaymentMethodType     string                `json:"payment_method_type"`
	Amount                Amount                `json:"amount"`
	CanceledAmount        Amount                `json:"canceled_amount"`
	CancelAvailableAmount Amount                `json:"cancel_available_amount"`
	ItemName              string                `json:"item_name"`
	ItemCode              string                `json:"item_code,omitempty"`
	Quantity              int                   `json:"quantity"`
	CreatedAt             time.Time             `json:"created_at"`
	ApprovedAt            *time.Time            `json:"approved_at,omitempty"`
	CanceledAt            *time.Time            `json:"canceled_at,omitempty"`
	SelectedCardInfo      *CardInfo             `json:"selected_card_info,omitempty"`
	PaymentActionDetails  []PaymentActionDetail `json:"payment_action_details"`
}
