package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepos/m/domain"
	"storepos/m/internal/activity"
	"storepos/m/internal/apperr"
	"storepos/m/internal/testutil"
)

func recordSplitSale(t *testing.T, f fixture, n int) int64 {
	t.Helper()
	pid := testutil.InsertProduct(t, f.store, "TV", "300.00")
	dates := make([]string, n)
	for i := range dates {
		dates[i] = time.Date(2025, time.Month(4+i), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	id, err := f.svc.RecordSale(context.Background(), SaleRequest{
		OperatorID:      f.operator,
		ProductID:       pid,
		Quantity:        1,
		NumInstallments: n,
		DueDates:        dates,
	})
	require.NoError(t, err)
	return id
}

func TestSetInstallmentPaidIsIdempotent(t *testing.T) {
	f := newFixture(t)
	saleID := recordSplitSale(t, f, 3)
	ctx := context.Background()

	list, err := f.svc.ListInstallments(ctx, saleID)
	require.NoError(t, err)
	target := list[1].ID

	inst, err := f.svc.SetInstallmentPaid(ctx, f.operator, target, true, "pix")
	require.NoError(t, err)
	assert.True(t, inst.Paid)
	assert.Equal(t, "2025-03-10 14:30:00", inst.PaidDate)
	assert.Equal(t, "pix", inst.PaymentMethod)

	f.svc.now = func() time.Time { return time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC) }
	again, err := f.svc.SetInstallmentPaid(ctx, f.operator, target, true, "cash")
	require.NoError(t, err)
	assert.True(t, again.Paid)
	assert.Equal(t, "2025-03-10 14:30:00", again.PaidDate)
	assert.Equal(t, "pix", again.PaymentMethod)

	list, err = f.svc.ListInstallments(ctx, saleID)
	require.NoError(t, err)
	assert.False(t, list[0].Paid)
	assert.True(t, list[1].Paid)
	assert.False(t, list[2].Paid)
}

func TestSetInstallmentReopen(t *testing.T) {
	f := newFixture(t)
	saleID := recordSplitSale(t, f, 2)
	ctx := context.Background()

	list, err := f.svc.ListInstallments(ctx, saleID)
	require.NoError(t, err)
	_, err = f.svc.SetInstallmentPaid(ctx, f.operator, list[0].ID, true, "cash")
	require.NoError(t, err)

	inst, err := f.svc.SetInstallmentPaid(ctx, f.operator, list[0].ID, false, "")
	require.NoError(t, err)
	assert.False(t, inst.Paid)
	assert.Empty(t, inst.PaidDate)
	assert.Empty(t, inst.PaymentMethod)
	assert.Contains(t, f.rec.actions(), activity.InstallmentReopened)
}

func TestSetInstallmentPaidUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, paid := range []bool{true, false} {
		_, err := f.svc.SetInstallmentPaid(ctx, f.operator, 404, paid, "")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
		assert.Equal(t, MsgInstallmentAbsent, apperr.MessageOf(err))
	}
	assert.Equal(t, []string{activity.InstallmentUpdateFailed, activity.InstallmentUpdateFailed}, f.rec.actions())
}

func TestSetSalePaidStatus(t *testing.T) {
	f := newFixture(t)
	saleID := recordSplitSale(t, f, 3)
	ctx := context.Background()

	list, err := f.svc.ListInstallments(ctx, saleID)
	require.NoError(t, err)
	_, err = f.svc.SetInstallmentPaid(ctx, f.operator, list[0].ID, true, "pix")
	require.NoError(t, err)

	require.NoError(t, f.svc.SetSalePaidStatus(ctx, f.operator, saleID, domain.PaymentPartial, ""))
	detail, err := f.svc.GetSale(ctx, saleID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPartial, detail.PaymentStatus)
	assert.True(t, detail.Installments[0].Paid)
	assert.False(t, detail.Installments[1].Paid)

	require.NoError(t, f.svc.SetSalePaidStatus(ctx, f.operator, saleID, domain.PaymentPaid, "card"))
	detail, err = f.svc.GetSale(ctx, saleID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, detail.PaymentStatus)
	for _, inst := range detail.Installments {
		assert.True(t, inst.Paid)
	}
	assert.Equal(t, "pix", detail.Installments[0].PaymentMethod)
	assert.Equal(t, "card", detail.Installments[2].PaymentMethod)

	require.NoError(t, f.svc.SetSalePaidStatus(ctx, f.operator, saleID, domain.PaymentOpen, ""))
	detail, err = f.svc.GetSale(ctx, saleID)
	require.NoError(t, err)
	for _, inst := range detail.Installments {
		assert.False(t, inst.Paid)
	}
}

func TestSetSalePaidStatusErrors(t *testing.T) {
	f := newFixture(t)
	saleID := recordSplitSale(t, f, 2)
	ctx := context.Background()

	err := f.svc.SetSalePaidStatus(ctx, f.operator, saleID, "settled", "")
	assert.Equal(t, MsgInvalidStatus, apperr.MessageOf(err))

	err = f.svc.SetSalePaidStatus(ctx, f.operator, saleID+1, domain.PaymentPaid, "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestDeleteSaleCascades(t *testing.T) {
	f := newFixture(t)
	keep := recordSplitSale(t, f, 2)
	drop := recordSplitSale(t, f, 3)
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteSale(ctx, f.operator, drop))

	_, err := f.svc.GetSale(ctx, drop)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, 2, testutil.Count(t, f.store, "sale_payments"))

	list, err := f.svc.ListInstallments(ctx, keep)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	err = f.svc.DeleteSale(ctx, f.operator, drop)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Equal(t, 2, testutil.Count(t, f.store, "sale_payments"))
	assert.Contains(t, f.rec.actions(), activity.SaleDeleteFailed)
}

func TestListSalesFilters(t *testing.T) {
	f := newFixture(t)
	pid := testutil.InsertProduct(t, f.store, "Tea", "3.00")
	other := testutil.InsertUser(t, f.store, "lia", domain.RoleEmployee)
	ctx := context.Background()

	for _, r := range []struct {
		op   int64
		date string
	}{
		{f.operator, "2025-01-15 10:00:00"},
		{f.operator, "2025-02-28 23:59:00"},
		{other, "2025-03-01 08:00:00"},
	} {
		_, err := f.svc.RecordSale(ctx, SaleRequest{OperatorID: r.op, ProductID: pid, Quantity: 1, Date: r.date})
		require.NoError(t, err)
	}

	all, err := f.svc.ListSales(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2025-03-01 08:00:00", all[0].Date)

	feb, err := f.svc.ListSales(ctx, ListFilter{From: "2025-02-01", To: "2025-02-28"})
	require.NoError(t, err)
	require.Len(t, feb, 1)
	assert.Equal(t, "Tea", feb[0].ProductName)

	mine, err := f.svc.ListSales(ctx, ListFilter{EmployeeID: other})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "lia", mine[0].EmployeeName)
}
