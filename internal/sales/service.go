// Package sales records sales with their installment schedules and manages
// installment payment status.
package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storepos/m/domain"
	"storepos/m/internal/activity"
	"storepos/m/internal/apperr"
	"storepos/m/internal/installments"
	"storepos/m/internal/pricing"
	"storepos/m/internal/store"
)

// Messages surfaced to callers.
const (
	MsgInvalidQuantity   = "invalid quantity"
	MsgProductNotFound   = "product not found"
	MsgSaleNotFound      = "sale not found"
	MsgInstallmentAbsent = "installment not found"
	MsgEmptyCart         = "cart is empty"
	MsgInvalidDiscount   = "invalid discount"
	MsgInvalidPrice      = "invalid unit price"
	MsgInvalidSaleType   = "invalid sale type"
	MsgInvalidStatus     = "invalid payment status"
	MsgInstallmentSum    = "installment amounts do not add up to the sale total"
	MsgNegativeLine      = "discount leaves a cart line with a negative total"
)

// Service records sales and their installments.
type Service struct {
	store    *store.Store
	activity activity.Recorder
	logger   zerolog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(s *store.Store, rec activity.Recorder, logger zerolog.Logger) *Service {
	return &Service{store: s, activity: rec, logger: logger, now: time.Now}
}

// SaleRequest describes a single-product sale. UnitPrice overrides the catalog
// price when set.
type SaleRequest struct {
	OperatorID      int64
	ProductID       int64
	Quantity        int64
	UnitPrice       *decimal.Decimal
	PaymentMethod   string
	Date            string
	SaleType        domain.SaleType
	NumInstallments int
	DueDates        []string
}

// CartItem is one line of a checkout request.
type CartItem struct {
	ProductID int64
	Quantity  int64
	UnitPrice *decimal.Decimal
}

// CheckoutRequest records a whole cart with a discount spread over its lines.
type CheckoutRequest struct {
	OperatorID      int64
	Items           []CartItem
	Discount        decimal.Decimal
	PaymentMethod   string
	Date            string
	SaleType        domain.SaleType
	NumInstallments int
	DueDates        []string
}

// CheckoutResult lists the sale created for each cart line, in cart order.
type CheckoutResult struct {
	SaleIDs    []int64            `json:"sale_ids"`
	Allocation pricing.Allocation `json:"allocation"`
}

// terms are the validated, normalised parameters shared by every line of a sale.
type terms struct {
	operatorID int64
	date       string
	saleType   domain.SaleType
	method     string
	count      int
	dueDates   []string
}

// line is one row to insert into sales.
type line struct {
	productID int64
	quantity  int64
	total     decimal.Decimal
}

func (s *Service) validateTerms(operatorID int64, date string, saleType domain.SaleType, method string, count int, dueDates []string) (terms, error) {
	if saleType == "" {
		saleType = domain.SaleTypeCustomer
	}
	if !saleType.Valid() {
		return terms{}, apperr.Validation(MsgInvalidSaleType)
	}
	if count == 0 {
		count = 1
	}
	dates, err := installments.ValidateDates(count, dueDates)
	if err != nil {
		return terms{}, err
	}
	saleDate, err := installments.ParseSaleDate(date, s.now())
	if err != nil {
		return terms{}, err
	}
	return terms{
		operatorID: operatorID,
		date:       saleDate,
		saleType:   saleType,
		method:     strings.TrimSpace(method),
		count:      count,
		dueDates:   dates,
	}, nil
}

// RecordSale validates and persists one sale and, when it is split, its
// installments. Nothing is written unless every row can be written.
func (s *Service) RecordSale(ctx context.Context, req SaleRequest) (int64, error) {
	id, product, total, err := s.recordSale(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Int64("operator_id", req.OperatorID).Int64("product_id", req.ProductID).Msg("record sale failed")
		s.activity.Record(ctx, req.OperatorID, activity.SaleRecordFailed,
			fmt.Sprintf("product %d x%d: %s", req.ProductID, req.Quantity, apperr.MessageOf(err)))
		return 0, err
	}

	s.logger.Info().Int64("sale_id", id).Str("total", total.StringFixed(2)).Int("installments", max(req.NumInstallments, 1)).Msg("sale recorded")
	s.activity.Record(ctx, req.OperatorID, activity.SaleRecorded,
		fmt.Sprintf("Sale %d: %dx %s - %s", id, req.Quantity, product.Name, total.StringFixed(2)))
	return id, nil
}

func (s *Service) recordSale(ctx context.Context, req SaleRequest) (int64, domain.Product, decimal.Decimal, error) {
	if req.Quantity <= 0 {
		return 0, domain.Product{}, decimal.Zero, apperr.Validation(MsgInvalidQuantity)
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return 0, domain.Product{}, decimal.Zero, apperr.Validation(MsgInvalidPrice)
	}
	t, err := s.validateTerms(req.OperatorID, req.Date, req.SaleType, req.PaymentMethod, req.NumInstallments, req.DueDates)
	if err != nil {
		return 0, domain.Product{}, decimal.Zero, err
	}

	var (
		id      int64
		product domain.Product
		total   decimal.Decimal
	)
	err = s.store.Write(ctx, func(tx *sqlx.Tx) error {
		p, err := loadProduct(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}
		product = p

		unit := p.Price
		if req.UnitPrice != nil {
			unit = *req.UnitPrice
		}
		total = unit.Mul(decimal.NewFromInt(req.Quantity)).Round(2)

		id, err = insertSale(ctx, tx, t, line{productID: p.ID, quantity: req.Quantity, total: total})
		return err
	})
	if err != nil {
		return 0, domain.Product{}, decimal.Zero, err
	}
	return id, product, total, nil
}

// Checkout applies the discount to the cart and records one sale per line in
// a single transaction.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	result, err := s.checkout(ctx, req)
	if err != nil {
		s.logger.Warn().Err(err).Int64("operator_id", req.OperatorID).Int("items", len(req.Items)).Msg("checkout failed")
		s.activity.Record(ctx, req.OperatorID, activity.CheckoutFailed,
			fmt.Sprintf("%d items: %s", len(req.Items), apperr.MessageOf(err)))
		return CheckoutResult{}, err
	}

	s.logger.Info().Ints64("sale_ids", result.SaleIDs).Str("total", result.Allocation.FinalTotal.StringFixed(2)).Msg("checkout recorded")
	s.activity.Record(ctx, req.OperatorID, activity.CheckoutRecorded,
		fmt.Sprintf("%d items, discount %s - total %s", len(result.SaleIDs),
			result.Allocation.Discount.StringFixed(2), result.Allocation.FinalTotal.StringFixed(2)))
	return result, nil
}

func (s *Service) checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	if len(req.Items) == 0 {
		return CheckoutResult{}, apperr.Validation(MsgEmptyCart)
	}
	if req.Discount.IsNegative() {
		return CheckoutResult{}, apperr.Validation(MsgInvalidDiscount)
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return CheckoutResult{}, apperr.Validation(MsgInvalidQuantity)
		}
		if item.UnitPrice != nil && item.UnitPrice.IsNegative() {
			return CheckoutResult{}, apperr.Validation(MsgInvalidPrice)
		}
	}
	t, err := s.validateTerms(req.OperatorID, req.Date, req.SaleType, req.PaymentMethod, req.NumInstallments, req.DueDates)
	if err != nil {
		return CheckoutResult{}, err
	}

	var result CheckoutResult
	err = s.store.Write(ctx, func(tx *sqlx.Tx) error {
		cart := make([]domain.LineItem, len(req.Items))
		for i, item := range req.Items {
			p, err := loadProduct(ctx, tx, item.ProductID)
			if err != nil {
				return err
			}
			unit := p.Price
			if item.UnitPrice != nil {
				unit = *item.UnitPrice
			}
			cart[i] = pricing.LineItemFor(p.ID, item.Quantity, unit)
		}

		alloc := pricing.Allocate(cart, req.Discount)
		for _, item := range alloc.Items {
			if item.TotalPrice.IsNegative() {
				return apperr.Validation(MsgNegativeLine)
			}
		}
		ids := make([]int64, 0, len(alloc.Items))
		for _, item := range alloc.Items {
			id, err := insertSale(ctx, tx, t, line{productID: item.ProductID, quantity: item.Quantity, total: item.TotalPrice})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		result = CheckoutResult{SaleIDs: ids, Allocation: alloc}
		return nil
	})
	if err != nil {
		return CheckoutResult{}, err
	}
	return result, nil
}

func loadProduct(ctx context.Context, tx *sqlx.Tx, id int64) (domain.Product, error) {
	var p domain.Product
	err := tx.GetContext(ctx, &p, `SELECT id, name, price, category FROM products WHERE id = ?`, id)
	if err != nil {
		return domain.Product{}, store.NotFound(err, MsgProductNotFound)
	}
	return p, nil
}

// insertSale writes the sale row and, for split sales, every installment row.
func insertSale(ctx context.Context, tx *sqlx.Tx, t terms, l line) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO sales (date, employee_id, product_id, quantity, total_value, sale_type, payment_method, num_installments, first_payment_date, payment_status)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.date, t.operatorID, l.productID, l.quantity, l.total, t.saleType, t.method, t.count, t.dueDates[0], domain.PaymentOpen)
	if err != nil {
		return 0, apperr.Persistence("unable to save sale", err)
	}
	saleID, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Persistence("unable to save sale", err)
	}
	if t.count <= 1 {
		return saleID, nil
	}

	drafts, err := installments.Plan(l.total, t.count, t.dueDates)
	if err != nil {
		return 0, err
	}
	sum := decimal.Zero
	for _, d := range drafts {
		sum = sum.Add(d.Amount)
	}
	if !sum.Equal(l.total) {
		return 0, apperr.Validation(MsgInstallmentSum)
	}
	for _, d := range drafts {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sale_payments (sale_id, installment_index, due_date, amount) VALUES (?, ?, ?, ?)`,
			saleID, d.Index, d.DueDate, d.Amount); err != nil {
			return 0, apperr.Persistence("unable to save installments", err)
		}
	}
	return saleID, nil
}
