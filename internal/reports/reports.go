// Package reports aggregates recorded sales for the back office.
package reports

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"storepos/m/domain"
	"storepos/m/internal/apperr"
	"storepos/m/internal/store"
)

const MsgInvalidRange = "dates must be in YYYY-MM-DD format"

type Service struct {
	store *store.Store
}

func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// PeriodEntry is a sale in a period report together with its installments.
type PeriodEntry struct {
	domain.SaleSummary
	Installments []domain.Installment `json:"installments"`
}

type ProductSummary struct {
	ProductID        int64           `db:"product_id" json:"product_id"`
	ProductName      string          `db:"product_name" json:"product_name"`
	Sales            int64           `db:"sales" json:"sales"`
	Quantity         int64           `db:"quantity" json:"quantity"`
	Total            decimal.Decimal `db:"total" json:"total"`
	AverageUnitPrice decimal.Decimal `db:"-" json:"average_unit_price"`
}

type MethodSummary struct {
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Sales         int64           `db:"sales" json:"sales"`
	Total         decimal.Decimal `db:"total" json:"total"`
}

type InstallmentSummary struct {
	NumInstallments int             `db:"num_installments" json:"num_installments"`
	Sales           int64           `db:"sales" json:"sales"`
	Total           decimal.Decimal `db:"total" json:"total"`
	Average         decimal.Decimal `db:"-" json:"average"`
}

type Dashboard struct {
	Products    int64           `db:"products" json:"products"`
	Users       int64           `db:"users" json:"users"`
	Sales       int64           `db:"sales" json:"sales"`
	Revenue     decimal.Decimal `db:"revenue" json:"revenue"`
	OpenBalance decimal.Decimal `db:"open_balance" json:"open_balance"`
}

// SalesByPeriod lists sales whose date falls within [start, end], newest first.
// Either bound may be empty.
func (s *Service) SalesByPeriod(ctx context.Context, start, end string) ([]PeriodEntry, error) {
	for _, d := range []string{start, end} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, apperr.Validation(MsgInvalidRange)
		}
	}

	query := `SELECT s.id, s.date, s.employee_id, s.product_id, s.quantity, s.total_value, s.sale_type,
                s.payment_method, s.num_installments, s.first_payment_date, s.payment_status,
                COALESCE(u.name, '') AS employee_name, COALESCE(p.name, '') AS product_name
        FROM sales s
        LEFT JOIN users u ON u.id = s.employee_id
        LEFT JOIN products p ON p.id = s.product_id
        WHERE 1 = 1`
	var args []interface{}
	if start != "" {
		query += ` AND DATE(s.date) >= ?`
		args = append(args, start)
	}
	if end != "" {
		query += ` AND DATE(s.date) <= ?`
		args = append(args, end)
	}
	query += ` ORDER BY s.date DESC, s.id DESC`

	report := []PeriodEntry{}
	err := s.store.Read(ctx, func(q store.Querier) error {
		var sales []domain.SaleSummary
		if err := q.SelectContext(ctx, &sales, query, args...); err != nil {
			return err
		}
		if len(sales) == 0 {
			return nil
		}

		ids := make([]int64, len(sales))
		for i, sale := range sales {
			ids[i] = sale.ID
		}
		inQuery, inArgs, err := sqlx.In(`SELECT id, sale_id, installment_index, due_date, amount, paid, paid_date, payment_method
                FROM sale_payments WHERE sale_id IN (?) ORDER BY sale_id, installment_index`, ids)
		if err != nil {
			return err
		}
		var rows []domain.Installment
		if err := q.SelectContext(ctx, &rows, inQuery, inArgs...); err != nil {
			return err
		}
		bySale := make(map[int64][]domain.Installment)
		for _, row := range rows {
			bySale[row.SaleID] = append(bySale[row.SaleID], row)
		}

		report = make([]PeriodEntry, len(sales))
		for i, sale := range sales {
			list := bySale[sale.ID]
			if list == nil {
				list = []domain.Installment{}
			}
			report[i] = PeriodEntry{SaleSummary: sale, Installments: list}
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Persistence("unable to load sales report", err)
	}
	return report, nil
}

func (s *Service) ByProduct(ctx context.Context) ([]ProductSummary, error) {
	list := []ProductSummary{}
	err := s.store.Read(ctx, func(q store.Querier) error {
		return q.SelectContext(ctx, &list, `SELECT s.product_id, COALESCE(p.name, '') AS product_name, COUNT(*) AS sales,
                COALESCE(SUM(s.quantity), 0) AS quantity, COALESCE(SUM(s.total_value), 0) AS total
        FROM sales s
        LEFT JOIN products p ON p.id = s.product_id
        GROUP BY s.product_id
        ORDER BY total DESC, s.product_id`)
	})
	if err != nil {
		return nil, apperr.Persistence("unable to load product report", err)
	}
	for i := range list {
		list[i].Total = list[i].Total.Round(2)
		if list[i].Quantity > 0 {
			list[i].AverageUnitPrice = list[i].Total.Div(decimal.NewFromInt(list[i].Quantity)).Round(2)
		}
	}
	return list, nil
}

func (s *Service) ByPaymentMethod(ctx context.Context) ([]MethodSummary, error) {
	list := []MethodSummary{}
	err := s.store.Read(ctx, func(q store.Querier) error {
		return q.SelectContext(ctx, &list, `SELECT payment_method, COUNT(*) AS sales, COALESCE(SUM(total_value), 0) AS total
        FROM sales
        WHERE payment_method <> ''
        GROUP BY payment_method
        ORDER BY total DESC, payment_method`)
	})
	if err != nil {
		return nil, apperr.Persistence("unable to load payment method report", err)
	}
	for i := range list {
		list[i].Total = list[i].Total.Round(2)
	}
	return list, nil
}

func (s *Service) ByInstallmentCount(ctx context.Context) ([]InstallmentSummary, error) {
	list := []InstallmentSummary{}
	err := s.store.Read(ctx, func(q store.Querier) error {
		return q.SelectContext(ctx, &list, `SELECT num_installments, COUNT(*) AS sales, COALESCE(SUM(total_value), 0) AS total
        FROM sales
        WHERE num_installments > 1
        GROUP BY num_installments
        ORDER BY num_installments`)
	})
	if err != nil {
		return nil, apperr.Persistence("unable to load installment report", err)
	}
	for i := range list {
		list[i].Total = list[i].Total.Round(2)
		if list[i].Sales > 0 {
			list[i].Average = list[i].Total.Div(decimal.NewFromInt(list[i].Sales)).Round(2)
		}
	}
	return list, nil
}

// Dashboard returns headline counts. OpenBalance is the sum of unpaid
// installments.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := s.store.Read(ctx, func(q store.Querier) error {
		return q.GetContext(ctx, &d, `SELECT
                (SELECT COUNT(*) FROM products) AS products,
                (SELECT COUNT(*) FROM users) AS users,
                (SELECT COUNT(*) FROM sales) AS sales,
                (SELECT COALESCE(SUM(total_value), 0) FROM sales) AS revenue,
                (SELECT COALESCE(SUM(amount), 0) FROM sale_payments WHERE paid = 0) AS open_balance`)
	})
	if err != nil {
		return Dashboard{}, apperr.Persistence("unable to load dashboard", err)
	}
	d.Revenue = d.Revenue.Round(2)
	d.OpenBalance = d.OpenBalance.Round(2)
	return d, nil
}
