// Package users manages operator accounts, credentials and employee debt.
package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"storepos/m/domain"
	"storepos/m/internal/activity"
	"storepos/m/internal/apperr"
	"storepos/m/internal/store"
)

const (
	MsgNotFound          = "user not found"
	MsgDuplicateUsername = "username already exists"
	MsgRequiredFields    = "name, username and password are required"
	MsgInvalidRole       = "role must be admin or employee"
	MsgDeleteSelf        = "you cannot delete your own account"
)

const userColumns = `id, name, username, password_hash, role, debt_balance, created_at`

// Service is the account repository and authenticator.
type Service struct {
	store    *store.Store
	activity activity.Recorder
	logger   zerolog.Logger
	now      func() time.Time
	lock     *lockout
}

// Options tunes login throttling. Zero values use the defaults.
type Options struct {
	LockThreshold int
	LockWindow    time.Duration
}

func NewService(s *store.Store, rec activity.Recorder, logger zerolog.Logger, opts Options) *Service {
	if opts.LockThreshold <= 0 {
		opts.LockThreshold = 5
	}
	if opts.LockWindow <= 0 {
		opts.LockWindow = 5 * time.Minute
	}
	return &Service{
		store:    s,
		activity: rec,
		logger:   logger,
		now:      time.Now,
		lock:     newLockout(opts.LockThreshold, opts.LockWindow),
	}
}

type CreateInput struct {
	Name     string
	Username string
	Password string
	Role     string
}

// UpdateInput changes profile fields. An empty Password keeps the current one.
type UpdateInput struct {
	Name     string
	Username string
	Role     string
	Password string
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	list := []domain.User{}
	err := s.store.Read(ctx, func(q store.Querier) error {
		return q.SelectContext(ctx, &list, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	})
	if err != nil {
		return nil, apperr.Persistence("unable to load users", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := s.store.Read(ctx, func(q store.Querier) error {
		return store.NotFound(q.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id), MsgNotFound)
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	if in.Role == "" {
		in.Role = domain.RoleEmployee
	}
	if in.Name == "" || in.Username == "" || in.Password == "" {
		return domain.User{}, apperr.Validation(MsgRequiredFields)
	}
	if !domain.ValidRole(in.Role) {
		return domain.User{}, apperr.Validation(MsgInvalidRole)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, apperr.Persistence("unable to secure password", err)
	}

	created := s.now().Format("2006-01-02 15:04:05")
	var id int64
	err = s.store.Write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO users (name, username, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
			in.Name, in.Username, string(hashed), in.Role, created)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict(MsgDuplicateUsername, err)
			}
			return apperr.Persistence("unable to create user", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return domain.User{}, err
	}

	s.activity.Record(ctx, actorID, activity.UserCreated, fmt.Sprintf("%s (%s)", in.Username, in.Role))
	return domain.User{ID: id, Name: in.Name, Username: in.Username, Role: in.Role, DebtBalance: decimal.Zero, CreatedAt: created}, nil
}

func (s *Service) Update(ctx context.Context, actorID, id int64, in UpdateInput) (domain.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	if in.Name == "" || in.Username == "" {
		return domain.User{}, apperr.Validation(MsgRequiredFields)
	}
	if !domain.ValidRole(in.Role) {
		return domain.User{}, apperr.Validation(MsgInvalidRole)
	}

	var hashed []byte
	if in.Password != "" {
		var err error
		hashed, err = bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return domain.User{}, apperr.Persistence("unable to secure password", err)
		}
	}

	var u domain.User
	err := s.store.Write(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET name = ?, username = ?, role = ? WHERE id = ?`, in.Name, in.Username, in.Role, id)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Conflict(MsgDuplicateUsername, err)
			}
			return apperr.Persistence("unable to update user", err)
		}
		if err := store.RequireAffected(res, MsgNotFound); err != nil {
			return err
		}
		if hashed != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, string(hashed), id); err != nil {
				return apperr.Persistence("unable to update password", err)
			}
		}
		return store.NotFound(tx.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id), MsgNotFound)
	})
	if err != nil {
		return domain.User{}, err
	}

	s.activity.Record(ctx, actorID, activity.UserUpdated, fmt.Sprintf("%d: %s (%s)", id, u.Username, u.Role))
	return u, nil
}

// Delete removes an account. Sales recorded by it are kept.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return apperr.Validation(MsgDeleteSelf)
	}
	var username string
	err := s.store.Write(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &username, `SELECT username FROM users WHERE id = ?`, id); err != nil {
			return store.NotFound(err, MsgNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
			return apperr.Persistence("unable to delete user", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.activity.Record(ctx, actorID, activity.UserDeleted, username)
	return nil
}

// AdjustDebt adds delta to the user's debt balance. Negative deltas record
// repayments.
func (s *Service) AdjustDebt(ctx context.Context, actorID, id int64, delta decimal.Decimal) (domain.User, error) {
	delta = delta.Round(2)
	var u domain.User
	err := s.store.Write(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
			return store.NotFound(err, MsgNotFound)
		}
		u.DebtBalance = u.DebtBalance.Add(delta).Round(2)
		if _, err := tx.ExecContext(ctx, `UPDATE users SET debt_balance = ? WHERE id = ?`, u.DebtBalance, id); err != nil {
			return apperr.Persistence("unable to update debt", err)
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	s.activity.Record(ctx, actorID, activity.UserDebtAdjusted,
		fmt.Sprintf("%s: %s (balance %s)", u.Username, delta.StringFixed(2), u.DebtBalance.StringFixed(2)))
	return u, nil
}

// EnsureDefaultAdmin creates an "admin" account when no users exist yet. It
// reports whether an account was created.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, password string) (bool, error) {
	if password == "" {
		password = "admin123"
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, apperr.Persistence("unable to secure password", err)
	}

	created := false
	err = s.store.Write(ctx, func(tx *sqlx.Tx) error {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
			return apperr.Persistence("unable to count users", err)
		}
		if count > 0 {
			return nil
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO users (name, username, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
			"Administrator", "admin", string(hashed), domain.RoleAdmin, s.now().Format("2006-01-02 15:04:05"))
		if err != nil {
			return apperr.Persistence("unable to create default admin", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Warn().Msg("created default admin account; change its password")
	}
	return created, nil
}
