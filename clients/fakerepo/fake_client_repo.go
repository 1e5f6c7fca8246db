package fakeclientrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/planb-provider/clients"
	"github.com/jrsteele09/planb-provider/internal/errors"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	clients map[string]map[string]clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients: make(map[string]map[string]clients.Client),
	}
}

func (r *FakeClientRepo) Upsert(_ context.Context, realm string, clientData *clients.Client) error {
	if err := clientData.Validate(); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.clients[realm]; !ok {
		r.clients[realm] = make(map[string]clients.Client)
	}
	stored := *clientData
	stored.Scopes = append([]string(nil), clientData.Scopes...)
	r.clients[realm][clientData.ID] = stored
	return nil
}

func (r *FakeClientRepo) Delete(_ context.Context, realm, clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.clients[realm][clientID]; !ok {
		return errors.ErrNotFound
	}
	delete(r.clients[realm], clientID)
	return nil
}

func (r *FakeClientRepo) Get(_ context.Context, realm, clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	client, ok := r.clients[realm][clientID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	client.Scopes = append([]string(nil), client.Scopes...)
	return &client, nil
}

func (r *FakeClientRepo) List(_ context.Context, realm string) ([]*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	clientList := make([]*clients.Client, 0, len(r.clients[realm]))
	for _, v := range r.clients[realm] {
		c := v
		clientList = append(clientList, &c)
	}

	sort.Slice(clientList, func(i, j int) bool {
		return clientList[i].ID < clientList[j].ID
	})
	return clientList, nil
}

// Realms lists every realm holding at least one client.
func (r *FakeClientRepo) Realms() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	realms := make([]string, 0, len(r.clients))
	for realm := range r.clients {
		realms = append(realms, realm)
	}
	sort.Strings(realms)
	return realms
}
