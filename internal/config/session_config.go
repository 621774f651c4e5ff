package config

import "time"

type SessionConfig interface {
	GetTokenDBPath() string
	GetTokenSealKey() string
	GetRequestTimeout() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

// MemoryTokenStore as TOKEN_DB_PATH keeps tokens in process memory only.
const MemoryTokenStore = "memory"

// GetTokenDBPath returns the SQLite file tokens persist to.
func (Session) GetTokenDBPath() string {
	return GetEnv("TOKEN_DB_PATH", "./data/tokens.db")
}

// GetTokenSealKey returns the secret used to seal tokens at rest. Empty stores them unsealed.
func (Session) GetTokenSealKey() string {
	return GetEnv("TOKEN_SEAL_KEY", "")
}

func (Session) GetRequestTimeout() time.Duration {
	return 30 * time.Second
}
