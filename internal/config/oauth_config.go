package config

import "time"

type OAuthConfig interface {
	GetTokenLifetime() time.Duration
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

// GetTokenLifetime is both the exp-iat gap and the retention period of a retiring key.
func (OAuth) GetTokenLifetime() time.Duration {
	return GetEnvDuration("TOKEN_LIFETIME", 8*time.Hour)
}
