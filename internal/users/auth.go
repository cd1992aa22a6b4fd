package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"storepos/m/domain"
	"storepos/m/internal/activity"
	"storepos/m/internal/apperr"
	"storepos/m/internal/store"
)

const (
	MsgInvalidCredentials = "invalid credentials"
	MsgLocked             = "too many failed attempts, try again later"
)

// Authenticate checks a username and password. Repeated failures lock the
// username for the configured window.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	now := s.now()
	if s.lock.locked(username, now) {
		return domain.User{}, apperr.Unauthorized(MsgLocked)
	}

	var u domain.User
	err := s.store.Read(ctx, func(q store.Querier) error {
		return q.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, apperr.Persistence("unable to load user", err)
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		if s.lock.fail(username, now) {
			s.logger.Warn().Str("username", username).Msg("login locked after repeated failures")
		}
		return domain.User{}, apperr.Unauthorized(MsgInvalidCredentials)
	}

	s.lock.reset(username)
	s.activity.Record(ctx, u.ID, activity.Login, u.Username)
	u.PasswordHash = ""
	return u, nil
}

type attempts struct {
	failures    int
	lockedUntil time.Time
}

// lockout counts failed logins per username in memory.
type lockout struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	entries   map[string]*attempts
}

func newLockout(threshold int, window time.Duration) *lockout {
	return &lockout{threshold: threshold, window: window, entries: map[string]*attempts{}}
}

func (l *lockout) locked(username string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.entries[username]
	if !ok || a.lockedUntil.IsZero() {
		return false
	}
	if now.Before(a.lockedUntil) {
		return true
	}
	delete(l.entries, username)
	return false
}

// fail records a failure and reports whether it triggered a lock.
func (l *lockout) fail(username string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.entries[username]
	if !ok {
		a = &attempts{}
		l.entries[username] = a
	}
	a.failures++
	if a.failures >= l.threshold {
		a.failures = 0
		a.lockedUntil = now.Add(l.window)
		return true
	}
	return false
}

func (l *lockout) reset(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, username)
}
