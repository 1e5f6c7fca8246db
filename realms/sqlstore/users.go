package sqlstore

import (
	"context"
	"database/sql"

	apperrors "github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/users"
)

var _ users.Repo = (*UsersRepo)(nil)

type UsersRepo struct {
	db *sql.DB
}

func (r *UsersRepo) Upsert(ctx context.Context, realm string, user *users.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (realm, username, password_hash, scopes, disabled, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (realm, username) DO UPDATE SET
			password_hash = excluded.password_hash,
			scopes        = excluded.scopes,
			disabled      = excluded.disabled,
			updated_at    = CURRENT_TIMESTAMP`,
		realm, user.Username, user.PasswordHash, joinScopes(user.Scopes), user.Disabled)
	return err
}

func (r *UsersRepo) Delete(ctx context.Context, realm, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE realm = ? AND username = ?`, realm, username)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) Get(ctx context.Context, realm, username string) (*users.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT username, password_hash, scopes, disabled
		FROM users WHERE realm = ? AND username = ?`, realm, username)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context, realm string) ([]*users.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT username, password_hash, scopes, disabled
		FROM users WHERE realm = ? ORDER BY username`, realm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*users.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*users.User, error) {
	var (
		u      users.User
		scopes string
	)
	if err := s.Scan(&u.Username, &u.PasswordHash, &scopes, &u.Disabled); err != nil {
		return nil, err
	}
	u.Scopes = splitScopes(scopes)
	return &u, nil
}
