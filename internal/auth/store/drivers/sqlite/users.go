package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/auth/domain"
	"github.com/aussiebroadwan/accounts/internal/auth/store"
	"github.com/aussiebroadwan/accounts/pkg/idx"
)

const selectUser = `
SELECT u.id, u.email, u.name, u.picture_url, u.created_at, u.updated_at, u.last_login_at
FROM users u`

// ErrInvalidIdentity is returned for an identity missing its provider,
// subject or email.
var ErrInvalidIdentity = errors.New("sqlite: identity requires provider, subject and email")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u         domain.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PictureURL, &u.CreatedAt, &u.UpdatedAt, &lastLogin)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.LastLoginAt = mapNullTimePtr(lastLogin)
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE u.id = ?`, id))
}

// FindByEmail matches case-insensitively.
func (s *Store) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, selectUser+` WHERE u.email = ?`, strings.TrimSpace(email)))
}

// FindOrCreateByIdentity returns the user linked to ident. An unlinked
// identity is attached to the user with the same email, or to a new user.
// created reports whether a user row was inserted.
func (s *Store) FindOrCreateByIdentity(ctx context.Context, ident domain.Identity) (domain.User, bool, error) {
	ident.Email = strings.TrimSpace(ident.Email)
	if ident.Provider == "" || ident.Subject == "" || ident.Email == "" {
		return domain.User{}, false, ErrInvalidIdentity
	}

	user, created, err := s.findOrCreate(ctx, ident)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost a race with a concurrent first login; the winner's rows exist now.
		user, created, err = s.findOrCreate(ctx, ident)
	}
	return user, created, err
}

func (s *Store) findOrCreate(ctx context.Context, ident domain.Identity) (domain.User, bool, error) {
	var (
		user    domain.User
		created bool
	)

	err := s.withTx(ctx, func(q querier) error {
		var err error
		user, err = scanUser(q.QueryRowContext(ctx, selectUser+`
JOIN user_identities i ON i.user_id = u.id
WHERE i.provider = ? AND i.subject = ?`, ident.Provider, ident.Subject))
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := time.Now().UTC()

		user, err = scanUser(q.QueryRowContext(ctx, selectUser+` WHERE u.email = ?`, ident.Email))
		switch {
		case errors.Is(err, store.ErrNotFound):
			user = domain.User{
				ID:         idx.NewAt(now).String(),
				Email:      ident.Email,
				Name:       ident.Name,
				PictureURL: ident.PictureURL,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := insertUser(ctx, q, user); err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		}

		_, err = q.ExecContext(ctx, `
INSERT INTO user_identities (provider, subject, user_id, email, created_at)
VALUES (?, ?, ?, ?, ?)`, ident.Provider, ident.Subject, user.ID, ident.Email, now)
		return mapConstraint(err)
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return user, created, nil
}

func insertUser(ctx context.Context, q querier, u domain.User) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO users (id, email, name, picture_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`, u.ID, u.Email, u.Name, u.PictureURL, u.CreatedAt, u.UpdatedAt)
	return mapConstraint(err)
}

// TouchLogin records a successful sign-in at at.
func (s *Store) TouchLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), at.UTC(), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
