package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jrsteele09/planb-provider/clients"
	apperrors "github.com/jrsteele09/planb-provider/internal/errors"
)

var _ clients.Repo = (*ClientsRepo)(nil)

type ClientsRepo struct {
	db *sql.DB
}

func (r *ClientsRepo) Upsert(ctx context.Context, realm string, client *clients.Client) error {
	if err := client.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (realm, client_id, secret_hash, scopes, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (realm, client_id) DO UPDATE SET
			secret_hash = excluded.secret_hash,
			scopes      = excluded.scopes,
			updated_at  = CURRENT_TIMESTAMP`,
		realm, client.ID, client.SecretHash, joinScopes(client.Scopes))
	return err
}

func (r *ClientsRepo) Delete(ctx context.Context, realm, clientID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE realm = ? AND client_id = ?`, realm, clientID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *ClientsRepo) Get(ctx context.Context, realm, clientID string) (*clients.Client, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT client_id, secret_hash, scopes
		FROM clients WHERE realm = ? AND client_id = ?`, realm, clientID)
	c, err := scanClient(row)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return c, nil
}

func (r *ClientsRepo) List(ctx context.Context, realm string) ([]*clients.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT client_id, secret_hash, scopes
		FROM clients WHERE realm = ? ORDER BY client_id`, realm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*clients.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func scanClient(s scanner) (*clients.Client, error) {
	var (
		c      clients.Client
		scopes string
	)
	if err := s.Scan(&c.ID, &c.SecretHash, &scopes); err != nil {
		return nil, err
	}
	c.Scopes = splitScopes(scopes)
	return &c, nil
}
