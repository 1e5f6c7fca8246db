package config

import "time"

type SecurityConfig interface {
	GetEnableRateLimiting() bool
	GetRateLimitRequests() int
	GetRateLimitWindow() time.Duration
	GetRateLimitBurst() int
	GetRateLimitAddressRequests() int
	GetTrustedProxies() []string
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetEnableRateLimiting() bool {
	return GetEnvBool("RATE_LIMIT_ENABLED", true)
}

func (Security) GetRateLimitRequests() int {
	return GetEnvInt("RATE_LIMIT_REQUESTS", 10)
}

func (Security) GetRateLimitWindow() time.Duration {
	return GetEnvDuration("RATE_LIMIT_WINDOW", time.Minute)
}

func (Security) GetRateLimitBurst() int {
	return GetEnvInt("RATE_LIMIT_BURST", 10)
}

// GetRateLimitAddressRequests is the per client address budget, applied alongside
// the per principal budget of GetRateLimitRequests.
func (Security) GetRateLimitAddressRequests() int {
	return GetEnvInt("RATE_LIMIT_ADDRESS_REQUESTS", 100)
}

// GetTrustedProxies lists proxy CIDRs whose X-Forwarded-For header is believed.
func (Security) GetTrustedProxies() []string {
	return GetEnvList("TRUSTED_PROXIES", nil)
}
