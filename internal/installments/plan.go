// Package installments validates due dates and splits a sale total into
// installment amounts that add up exactly to the total.
package installments

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storepos/m/domain"
	"storepos/m/internal/apperr"
)

const (
	isoLayout      = "2006-01-02"
	brLayout       = "02/01/2006"
	dateTimeLayout = "2006-01-02 15:04:05"
)

var brDate = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// Error messages shared with callers that surface them to users.
const (
	MsgCountOutOfRange = "installment count out of range"
	MsgInvalidDate     = "invalid installment date"
	MsgDateCount       = "installment dates do not match installment count"
	MsgInvalidSaleDate = "invalid sale date"
)

// NormalizeDate converts a due date to YYYY-MM-DD. DD/MM/YYYY input is
// converted; anything else that is not a valid ISO date is rejected.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if brDate.MatchString(s) {
		parsed, err := time.Parse(brLayout, s)
		if err != nil {
			return s, false
		}
		return parsed.Format(isoLayout), true
	}
	if _, err := time.Parse(isoLayout, s); err != nil {
		return s, false
	}
	return s, true
}

// ValidateDates checks the due dates for a sale split into n installments and
// returns them normalised. A single installment may leave its date blank.
func ValidateDates(n int, dates []string) ([]string, error) {
	if n < 1 || n > domain.MaxInstallments {
		return nil, apperr.Validation(MsgCountOutOfRange)
	}
	if n == 1 && (len(dates) == 0 || (len(dates) == 1 && strings.TrimSpace(dates[0]) == "")) {
		return []string{""}, nil
	}
	if len(dates) != n {
		return nil, apperr.Validation(MsgDateCount)
	}

	normalized := make([]string, n)
	for i, raw := range dates {
		d, ok := NormalizeDate(raw)
		if !ok {
			return nil, apperr.Validation(MsgInvalidDate)
		}
		normalized[i] = d
	}
	return normalized, nil
}

// Amounts splits total into n cent-rounded parts; the last part absorbs the
// rounding difference.
func Amounts(total decimal.Decimal, n int) []decimal.Decimal {
	if n < 1 {
		return nil
	}
	count := decimal.NewFromInt(int64(n))
	base := total.Div(count).Round(2)
	amounts := make([]decimal.Decimal, n)
	for i := range amounts {
		amounts[i] = base
	}
	diff := total.Sub(base.Mul(count)).Round(2)
	amounts[n-1] = amounts[n-1].Add(diff).Round(2)
	return amounts
}

// Plan validates the installment parameters and returns the ordered drafts.
func Plan(total decimal.Decimal, n int, dueDates []string) ([]domain.InstallmentDraft, error) {
	dates, err := ValidateDates(n, dueDates)
	if err != nil {
		return nil, err
	}
	if n == 1 {
		return []domain.InstallmentDraft{{Index: 1, DueDate: dates[0], Amount: total}}, nil
	}

	amounts := Amounts(total, n)
	drafts := make([]domain.InstallmentDraft, n)
	for i := range drafts {
		drafts[i] = domain.InstallmentDraft{Index: i + 1, DueDate: dates[i], Amount: amounts[i]}
	}
	return drafts, nil
}

// ParseSaleDate validates an explicit sale timestamp and returns it in storage
// form. A blank value means now; a bare date means midnight.
func ParseSaleDate(raw string, now time.Time) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return now.Format(dateTimeLayout), nil
	}
	for _, layout := range []string{dateTimeLayout, isoLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.Format(dateTimeLayout), nil
		}
	}
	return "", apperr.Validation(MsgInvalidSaleDate)
}

// Timestamp formats t the way dates are stored.
func Timestamp(t time.Time) string {
	return t.Format(dateTimeLayout)
}
