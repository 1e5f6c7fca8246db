package config

import "time"

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type StoreConfig interface {
	GetRealmStore() string
	GetSQLiteDSN() string
	GetRealmsFile() string
	GetRealms() []string
	GetStoreTimeout() time.Duration
}

type Store struct{}

var _ StoreConfig = Store{}

// GetRealmStore returns the backend kind, StoreMemory or StoreSQLite.
func (Store) GetRealmStore() string {
	return GetEnv("REALM_STORE", StoreMemory)
}

func (Store) GetSQLiteDSN() string {
	return GetEnv("SQLITE_DSN", "file:planb.db")
}

func (Store) GetRealmsFile() string {
	return GetEnv("REALMS_FILE", "")
}

func (Store) GetRealms() []string {
	return GetEnvList("REALMS", []string{"/services", "/employees"})
}

func (Store) GetStoreTimeout() time.Duration {
	return GetEnvDuration("STORE_TIMEOUT", 2*time.Second)
}
