package sales

import (
	"context"

	"storepos/m/domain"
	"storepos/m/internal/apperr"
	"storepos/m/internal/store"
)

const summarySelect = `SELECT s.id, s.date, s.employee_id, s.product_id, s.quantity, s.total_value, s.sale_type,
                s.payment_method, s.num_installments, s.first_payment_date, s.payment_status,
                COALESCE(u.name, '') AS employee_name, COALESCE(p.name, '') AS product_name
        FROM sales s
        LEFT JOIN users u ON u.id = s.employee_id
        LEFT JOIN products p ON p.id = s.product_id`

// ListFilter narrows ListSales. Zero values match everything.
type ListFilter struct {
	From       string
	To         string
	EmployeeID int64
}

// ListSales returns sales newest first.
func (s *Service) ListSales(ctx context.Context, f ListFilter) ([]domain.SaleSummary, error) {
	query := summarySelect + ` WHERE 1 = 1`
	var args []interface{}
	if f.From != "" {
		query += ` AND s.date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		// Inclusive of the whole end day.
		query += ` AND s.date < date(?, '+1 day')`
		args = append(args, f.To)
	}
	if f.EmployeeID > 0 {
		query += ` AND s.employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	query += ` ORDER BY s.date DESC, s.id DESC`

	list := []domain.SaleSummary{}
	err := s.store.Read(ctx, func(q store.Querier) error {
		return q.SelectContext(ctx, &list, query, args...)
	})
	if err != nil {
		return nil, apperr.Persistence("unable to load sales", err)
	}
	return list, nil
}

// GetSale returns one sale with its installments in index order.
func (s *Service) GetSale(ctx context.Context, id int64) (domain.SaleDetail, error) {
	var detail domain.SaleDetail
	err := s.store.Read(ctx, func(q store.Querier) error {
		if err := q.GetContext(ctx, &detail.SaleSummary, summarySelect+` WHERE s.id = ?`, id); err != nil {
			return store.NotFound(err, MsgSaleNotFound)
		}
		list, err := listInstallments(ctx, q, id)
		if err != nil {
			return err
		}
		detail.Installments = list
		return nil
	})
	if err != nil {
		return domain.SaleDetail{}, err
	}
	return detail, nil
}

// ListInstallments returns the installments of a sale in index order. A sale
// paid in one installment has none.
func (s *Service) ListInstallments(ctx context.Context, saleID int64) ([]domain.Installment, error) {
	var list []domain.Installment
	err := s.store.Read(ctx, func(q store.Querier) error {
		var err error
		list, err = listInstallments(ctx, q, saleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func listInstallments(ctx context.Context, q store.Querier, saleID int64) ([]domain.Installment, error) {
	list := []domain.Installment{}
	err := q.SelectContext(ctx, &list, `SELECT id, sale_id, installment_index, due_date, amount, paid, paid_date, payment_method
                FROM sale_payments WHERE sale_id = ? ORDER BY installment_index`, saleID)
	if err != nil {
		return nil, apperr.Persistence("unable to load installments", err)
	}
	return list, nil
}
