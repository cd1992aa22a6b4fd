package reports

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storepos/m/internal/activity"
	"storepos/m/internal/apperr"
	"storepos/m/internal/sales"
	"storepos/m/internal/store"
	"storepos/m/internal/testutil"
)

type seeded struct {
	reports *Service
	sales   *sales.Service
	store   *store.Store
	op      int64
	pen     int64
	book    int64
}

func seed(t *testing.T) seeded {
	t.Helper()
	s := testutil.NewStore(t)
	salesSvc := sales.NewService(s, activity.New(s, zerolog.Nop()), zerolog.Nop())
	d := seeded{
		reports: NewService(s),
		sales:   salesSvc,
		store:   s,
		op:      testutil.InsertUser(t, s, "op", "employee"),
		pen:     testutil.InsertProduct(t, s, "Pen", "1.10"),
		book:    testutil.InsertProduct(t, s, "Book", "30.00"),
	}
	ctx := context.Background()

	reqs := []sales.SaleRequest{
		{ProductID: d.pen, Quantity: 3, PaymentMethod: "cash", Date: "2025-01-10 09:00:00"},
		{ProductID: d.pen, Quantity: 2, PaymentMethod: "card", Date: "2025-01-20 10:00:00"},
		{ProductID: d.book, Quantity: 1, PaymentMethod: "card", Date: "2025-02-05 11:00:00",
			NumInstallments: 3, DueDates: []string{"2025-03-05", "2025-04-05", "2025-05-05"}},
		{ProductID: d.book, Quantity: 2, Date: "2025-02-06 12:00:00",
			NumInstallments: 2, DueDates: []string{"2025-03-06", "2025-04-06"}},
	}
	for _, r := range reqs {
		r.OperatorID = d.op
		_, err := salesSvc.RecordSale(ctx, r)
		require.NoError(t, err)
	}
	return d
}

func TestSalesByPeriod(t *testing.T) {
	d := seed(t)
	ctx := context.Background()

	all, err := d.reports.SalesByPeriod(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "2025-02-06 12:00:00", all[0].Date)
	assert.Len(t, all[0].Installments, 2)
	assert.Len(t, all[1].Installments, 3)
	assert.Empty(t, all[3].Installments)

	jan, err := d.reports.SalesByPeriod(ctx, "2025-01-10", "2025-01-20")
	require.NoError(t, err)
	require.Len(t, jan, 2)
	assert.Equal(t, "Pen", jan[0].ProductName)
	assert.Equal(t, "op", jan[0].EmployeeName)

	none, err := d.reports.SalesByPeriod(ctx, "2026-01-01", "")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = d.reports.SalesByPeriod(ctx, "01/01/2025", "")
	assert.Equal(t, MsgInvalidRange, apperr.MessageOf(err))
}

func TestByProduct(t *testing.T) {
	d := seed(t)

	list, err := d.reports.ByProduct(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "Book", list[0].ProductName)
	assert.Equal(t, int64(2), list[0].Sales)
	assert.Equal(t, int64(3), list[0].Quantity)
	assert.Equal(t, "90.00", list[0].Total.StringFixed(2))
	assert.Equal(t, "30.00", list[0].AverageUnitPrice.StringFixed(2))

	assert.Equal(t, "Pen", list[1].ProductName)
	assert.Equal(t, "5.50", list[1].Total.StringFixed(2))
	assert.Equal(t, "1.10", list[1].AverageUnitPrice.StringFixed(2))
}

func TestByPaymentMethod(t *testing.T) {
	d := seed(t)

	list, err := d.reports.ByPaymentMethod(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "card", list[0].PaymentMethod)
	assert.Equal(t, int64(2), list[0].Sales)
	assert.Equal(t, "32.20", list[0].Total.StringFixed(2))
	assert.Equal(t, "cash", list[1].PaymentMethod)
	assert.Equal(t, "3.30", list[1].Total.StringFixed(2))
}

func TestByInstallmentCount(t *testing.T) {
	d := seed(t)

	list, err := d.reports.ByInstallmentCount(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].NumInstallments)
	assert.Equal(t, "60.00", list[0].Total.StringFixed(2))
	assert.Equal(t, 3, list[1].NumInstallments)
	assert.Equal(t, "30.00", list[1].Average.StringFixed(2))
}

func TestDashboard(t *testing.T) {
	d := seed(t)
	ctx := context.Background()

	dash, err := d.reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dash.Products)
	assert.Equal(t, int64(1), dash.Users)
	assert.Equal(t, int64(4), dash.Sales)
	assert.True(t, decimal.RequireFromString("95.50").Equal(dash.Revenue), dash.Revenue.String())
	assert.True(t, decimal.RequireFromString("90").Equal(dash.OpenBalance), dash.OpenBalance.String())

	all, err := d.reports.SalesByPeriod(ctx, "2025-02-05", "2025-02-05")
	require.NoError(t, err)
	require.Len(t, all, 1)
	_, err = d.sales.SetInstallmentPaid(ctx, d.op, all[0].Installments[0].ID, true, "pix")
	require.NoError(t, err)

	dash, err = d.reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, "80.00", dash.OpenBalance.StringFixed(2))
}

func TestEmptyReports(t *testing.T) {
	s := testutil.NewStore(t)
	r := NewService(s)
	ctx := context.Background()

	products, err := r.ByProduct(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)

	dash, err := r.Dashboard(ctx)
	require.NoError(t, err)
	assert.True(t, dash.Revenue.IsZero())
}
