package domain

import "github.com/shopspring/decimal"

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

type User struct {
	ID           int64           `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Username     string          `json:"username" db:"username"`
	PasswordHash string          `json:"-" db:"password_hash"`
	Role         string          `json:"role" db:"role"`
	DebtBalance  decimal.Decimal `json:"debt_balance" db:"debt_balance"`
	CreatedAt    string          `json:"created_at,omitempty" db:"created_at"`
}

// ValidRole reports whether role is one of the known account roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleEmployee
}
