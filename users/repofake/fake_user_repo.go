package fakeuserrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/jrsteele09/planb-provider/internal/errors"
	"github.com/jrsteele09/planb-provider/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

// FakeUserRepo keeps users in memory, keyed by realm then username.
type FakeUserRepo struct {
	users map[string]map[string]users.User
	lock  sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users: make(map[string]map[string]users.User),
	}
}

func (ur *FakeUserRepo) Upsert(_ context.Context, realm string, user *users.User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[realm]; !ok {
		ur.users[realm] = make(map[string]users.User)
	}
	stored := *user
	stored.Scopes = append([]string(nil), user.Scopes...)
	ur.users[realm][user.Username] = stored
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, realm, username string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.users[realm][username]; !ok {
		return errors.ErrNotFound
	}
	delete(ur.users[realm], username)
	return nil
}

// Get returns a copy so callers cannot mutate the stored record.
func (ur *FakeUserRepo) Get(_ context.Context, realm, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[realm][username]
	if !ok {
		return nil, errors.ErrNotFound
	}
	user.Scopes = append([]string(nil), user.Scopes...)
	return &user, nil
}

func (ur *FakeUserRepo) List(_ context.Context, realm string) ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userList := make([]*users.User, 0, len(ur.users[realm]))
	for _, v := range ur.users[realm] {
		u := v
		userList = append(userList, &u)
	}

	sort.Slice(userList, func(i, j int) bool {
		return userList[i].Username < userList[j].Username
	})
	return userList, nil
}

// Realms lists every realm holding at least one user.
func (ur *FakeUserRepo) Realms() []string {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	realms := make([]string, 0, len(ur.users))
	for realm := range ur.users {
		realms = append(realms, realm)
	}
	sort.Strings(realms)
	return realms
}
