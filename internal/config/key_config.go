package config

import "time"

type KeyConfig interface {
	GetKeyAlgorithm() string
	GetKeyRSABits() int
	GetKeyRotationInterval() time.Duration
	GetKeyPurgeInterval() time.Duration
	GetSigningKeyFile() string
}

type Keys struct{}

var _ KeyConfig = Keys{}

func (Keys) GetKeyAlgorithm() string {
	return GetEnv("KEY_ALGORITHM", "RS256")
}

func (Keys) GetKeyRSABits() int {
	return GetEnvInt("KEY_RSA_BITS", 2048)
}

func (Keys) GetKeyRotationInterval() time.Duration {
	return GetEnvDuration("KEY_ROTATION_INTERVAL", 24*time.Hour)
}

func (Keys) GetKeyPurgeInterval() time.Duration {
	return GetEnvDuration("KEY_PURGE_INTERVAL", time.Minute)
}

// GetSigningKeyFile is an optional PEM file used for the first active key.
func (Keys) GetSigningKeyFile() string {
	return GetEnv("SIGNING_KEY_FILE", "")
}
