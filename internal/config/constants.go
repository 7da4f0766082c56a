package config

import "time"

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
	DBPingTimeout     = 5 * time.Second
)

// Largest request body the gateway accepts. The Telegram surface only
// carries phones, codes and contact ids, so 1MB is already generous.
const MaxRequestBodySize = 1 << 20

// Auth cookie issued by the gateway's auth proxy
const (
	AuthCookieName   = "auth_token"
	AuthCookieMaxAge = 30 * 24 * time.Hour
)

// How long a restored state snapshot stays in Redis without activity
const StateSnapshotTTL = 30 * 24 * time.Hour
