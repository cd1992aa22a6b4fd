package domain

import "github.com/shopspring/decimal"

type SaleType string

const (
	SaleTypeCustomer SaleType = "customer"
	SaleTypeEmployee SaleType = "employee"
)

// Valid reports whether t is a known sale type.
func (t SaleType) Valid() bool {
	return t == SaleTypeCustomer || t == SaleTypeEmployee
}

// PaymentStatus is the sale-level payment tag. Only Open and Paid touch installments.
type PaymentStatus string

const (
	PaymentOpen    PaymentStatus = "open"
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentOpen, PaymentPaid, PaymentPartial:
		return true
	}
	return false
}

// MaxInstallments bounds the number of installments a sale may be split into.
const MaxInstallments = 12

// LineItem is a cart line. It only lives in memory until a sale is recorded.
type LineItem struct {
	ProductID  int64           `json:"product_id"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type Sale struct {
	ID               int64           `db:"id" json:"id"`
	Date             string          `db:"date" json:"date"`
	EmployeeID       int64           `db:"employee_id" json:"employee_id"`
	ProductID        int64           `db:"product_id" json:"product_id"`
	Quantity         int64           `db:"quantity" json:"quantity"`
	TotalValue       decimal.Decimal `db:"total_value" json:"total_value"`
	SaleType         SaleType        `db:"sale_type" json:"sale_type"`
	PaymentMethod    string          `db:"payment_method" json:"payment_method"`
	NumInstallments  int             `db:"num_installments" json:"num_installments"`
	FirstPaymentDate string          `db:"first_payment_date" json:"first_payment_date"`
	PaymentStatus    PaymentStatus   `db:"payment_status" json:"payment_status"`
}

// SaleSummary is a sale joined with the names shown in listings.
type SaleSummary struct {
	Sale
	EmployeeName string `db:"employee_name" json:"employee_name"`
	ProductName  string `db:"product_name" json:"product_name"`
}

// Installment is one scheduled payment row of a sale.
type Installment struct {
	ID               int64           `db:"id" json:"id"`
	SaleID           int64           `db:"sale_id" json:"sale_id"`
	InstallmentIndex int             `db:"installment_index" json:"installment_index"`
	DueDate          string          `db:"due_date" json:"due_date"`
	Amount           decimal.Decimal `db:"amount" json:"amount"`
	Paid             bool            `db:"paid" json:"paid"`
	PaidDate         string          `db:"paid_date" json:"paid_date"`
	PaymentMethod    string          `db:"payment_method" json:"payment_method"`
}

// InstallmentDraft is a planned installment that has not been persisted yet.
type InstallmentDraft struct {
	Index   int             `json:"index"`
	DueDate string          `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
}

// SaleDetail is a sale with its installments.
type SaleDetail struct {
	SaleSummary
	Installments []Installment `json:"installments"`
}
