package sales

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"storepos/m/domain"
	"storepos/m/internal/activity"
	"storepos/m/internal/apperr"
	"storepos/m/internal/installments"
	"storepos/m/internal/store"
)

// SetInstallmentPaid marks one installment paid or reopens it. Marking an
// already paid installment again keeps its original paid date and method.
func (s *Service) SetInstallmentPaid(ctx context.Context, actorID, installmentID int64, paid bool, method string) (domain.Installment, error) {
	method = strings.TrimSpace(method)
	paidDate := installments.Timestamp(s.now())

	var inst domain.Installment
	err := s.store.Write(ctx, func(tx *sqlx.Tx) error {
		if paid {
			res, err := tx.ExecContext(ctx, `UPDATE sale_payments SET paid = 1, paid_date = ?, payment_method = ? WHERE id = ? AND paid = 0`,
				paidDate, method, installmentID)
			if err != nil {
				return apperr.Persistence("unable to update installment", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return apperr.Persistence("unable to update installment", err)
			}
			// Zero rows means already paid or missing; the load tells them apart.
			if n == 0 {
				return loadInstallment(ctx, tx, installmentID, &inst)
			}
		} else {
			res, err := tx.ExecContext(ctx, `UPDATE sale_payments SET paid = 0, paid_date = '', payment_method = '' WHERE id = ?`, installmentID)
			if err != nil {
				return apperr.Persistence("unable to update installment", err)
			}
			if err := store.RequireAffected(res, MsgInstallmentAbsent); err != nil {
				return err
			}
		}
		return loadInstallment(ctx, tx, installmentID, &inst)
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("installment_id", installmentID).Bool("paid", paid).Msg("installment update failed")
		s.activity.Record(ctx, actorID, activity.InstallmentUpdateFailed,
			fmt.Sprintf("installment %d: %s", installmentID, apperr.MessageOf(err)))
		return domain.Installment{}, err
	}

	action := activity.InstallmentReopened
	if paid {
		action = activity.InstallmentPaid
	}
	s.activity.Record(ctx, actorID, action,
		fmt.Sprintf("Sale %d installment %d (%s)", inst.SaleID, inst.InstallmentIndex, inst.Amount.StringFixed(2)))
	return inst, nil
}

// SetSalePaidStatus tags a sale. Paid settles every open installment and Open
// reopens all of them; Partial only changes the tag.
func (s *Service) SetSalePaidStatus(ctx context.Context, actorID, saleID int64, status domain.PaymentStatus, method string) error {
	err := s.setSalePaidStatus(ctx, saleID, status, strings.TrimSpace(method))
	if err != nil {
		s.logger.Warn().Err(err).Int64("sale_id", saleID).Str("status", string(status)).Msg("sale status update failed")
		s.activity.Record(ctx, actorID, activity.SaleStatusFailed,
			fmt.Sprintf("sale %d: %s", saleID, apperr.MessageOf(err)))
		return err
	}
	s.activity.Record(ctx, actorID, activity.SaleStatusUpdated, fmt.Sprintf("Sale %d marked %s", saleID, status))
	return nil
}

func (s *Service) setSalePaidStatus(ctx context.Context, saleID int64, status domain.PaymentStatus, method string) error {
	if !status.Valid() {
		return apperr.Validation(MsgInvalidStatus)
	}
	paidDate := installments.Timestamp(s.now())

	return s.store.Write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE sales SET payment_status = ? WHERE id = ?`, status, saleID)
		if err != nil {
			return apperr.Persistence("unable to update sale", err)
		}
		if err := store.RequireAffected(res, MsgSaleNotFound); err != nil {
			return err
		}

		switch status {
		case domain.PaymentPaid:
			_, err = tx.ExecContext(ctx, `UPDATE sale_payments SET paid = 1, paid_date = ?, payment_method = ? WHERE sale_id = ? AND paid = 0`,
				paidDate, method, saleID)
		case domain.PaymentOpen:
			_, err = tx.ExecContext(ctx, `UPDATE sale_payments SET paid = 0, paid_date = '', payment_method = '' WHERE sale_id = ?`, saleID)
		}
		if err != nil {
			return apperr.Persistence("unable to update installments", err)
		}
		return nil
	})
}

// DeleteSale removes a sale together with all of its installments.
func (s *Service) DeleteSale(ctx context.Context, actorID, saleID int64) error {
	err := s.store.Write(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sale_payments WHERE sale_id = ?`, saleID); err != nil {
			return apperr.Persistence("unable to delete installments", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, saleID)
		if err != nil {
			return apperr.Persistence("unable to delete sale", err)
		}
		return store.RequireAffected(res, MsgSaleNotFound)
	})
	if err != nil {
		s.logger.Warn().Err(err).Int64("sale_id", saleID).Msg("delete sale failed")
		s.activity.Record(ctx, actorID, activity.SaleDeleteFailed, fmt.Sprintf("sale %d: %s", saleID, apperr.MessageOf(err)))
		return err
	}
	s.logger.Info().Int64("sale_id", saleID).Msg("sale deleted")
	s.activity.Record(ctx, actorID, activity.SaleDeleted, fmt.Sprintf("Sale %d deleted", saleID))
	return nil
}

func loadInstallment(ctx context.Context, q store.Querier, id int64, dest *domain.Installment) error {
	err := q.GetContext(ctx, dest, `SELECT id, sale_id, installment_index, due_date, amount, paid, paid_date, payment_method
                FROM sale_payments WHERE id = ?`, id)
	return store.NotFound(err, MsgInstallmentAbsent)
}
