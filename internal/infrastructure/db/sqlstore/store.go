// Package sqlstore implements the credential store over database/sql for
// postgres (lib/pq) and sqlite (modernc).
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/ports"
)

const defaultTimeout = 5 * time.Second

const userColumns = `id, email, password_hash, role, first_name, last_name, avatar, phone,
	address, city, country, postal_code, refresh_token, is_active, created_at, updated_at`

// dialect captures what differs between the supported engines.
type dialect struct {
	name     string
	numbered bool // $1, $2 ... instead of ?
	isUnique func(error) bool
}

// Store is a ports.UserRepository backed by a SQL database.
type Store struct {
	db      *sql.DB
	dialect dialect
}

var _ ports.UserRepository = (*Store)(nil)

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the dialect name: postgres or sqlite.
func (s *Store) Driver() string { return s.dialect.name }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders for dialects with numbered parameters.
func (s *Store) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u                    domain.User
		refresh              sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName,
		&u.Avatar, &u.Phone, &u.Address, &u.City, &u.Country, &u.PostalCode,
		&refresh, &u.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.RefreshToken = refresh.String
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := s.rebind(`INSERT INTO users (email, password_hash, role, first_name, last_name, avatar,
		phone, address, city, country, postal_code, refresh_token, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING ` + userColumns)

	row := s.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Role, user.FirstName, user.LastName, user.Avatar,
		user.Phone, user.Address, user.City, user.Country, user.PostalCode,
		nullable(user.RefreshToken), user.IsActive, toMillis(user.CreatedAt), toMillis(user.UpdatedAt))

	created, err := scanUser(row)
	if err != nil {
		if s.dialect.isUnique(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	u, err := scanUser(s.db.QueryRowContext(ctx, s.rebind(query), arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := s.rebind(`UPDATE users SET email = ?, password_hash = ?, role = ?, first_name = ?,
		last_name = ?, avatar = ?, phone = ?, address = ?, city = ?, country = ?, postal_code = ?,
		is_active = ?, updated_at = ?
		WHERE id = ?
		RETURNING ` + userColumns)

	row := s.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Role, user.FirstName, user.LastName, user.Avatar,
		user.Phone, user.Address, user.City, user.Country, user.PostalCode,
		user.IsActive, toMillis(user.UpdatedAt), user.ID)

	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		if s.dialect.isUnique(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func (s *Store) SetRefreshToken(ctx context.Context, id int64, token string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE users SET refresh_token = ? WHERE id = ?`), nullable(token), id)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	return requireRow(res)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
