package clients

import "context"

// Repo stores clients per realm. Get returns errors.ErrNotFound for an unknown client id.
type Repo interface {
	Upsert(ctx context.Context, realm string, client *Client) error
	Delete(ctx context.Context, realm, clientID string) error
	Get(ctx context.Context, realm, clientID string) (*Client, error)
	List(ctx context.Context, realm string) ([]*Client, error)
}
