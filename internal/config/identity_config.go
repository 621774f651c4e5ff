package config

import "time"

type IdentityConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetAPIBaseURL() string
	GetScriptSettleDelay() time.Duration
	GetScriptTimeout() time.Duration
	GetCallbackRatePerMinute() int
}

type Identity struct{}

var _ IdentityConfig = Identity{}

// GetIssuerURL is the identity provider whose discovery document is bootstrapped.
func (Identity) GetIssuerURL() string {
	return GetEnv("IDP_ISSUER", "https://accounts.google.com")
}

func (Identity) GetClientID() string {
	return GetEnv("IDP_CLIENT_ID", "")
}

// GetAPIBaseURL is the first-party backend that exchanges credentials for tokens.
func (Identity) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:3000/api")
}

func (Identity) GetScriptSettleDelay() time.Duration {
	return GetEnvMillis("SCRIPT_SETTLE_MS", 100*time.Millisecond)
}

func (Identity) GetScriptTimeout() time.Duration {
	return GetEnvMillis("SCRIPT_TIMEOUT_MS", 10*time.Second)
}

func (Identity) GetCallbackRatePerMinute() int {
	return 30
}
