package users

import "context"

// Repo stores users per realm. Get returns errors.ErrNotFound for an unknown username.
type Repo interface {
	Upsert(ctx context.Context, realm string, user *User) error
	Delete(ctx context.Context, realm, username string) error
	Get(ctx context.Context, realm, username string) (*User, error)
	List(ctx context.Context, realm string) ([]*User, error)
}
