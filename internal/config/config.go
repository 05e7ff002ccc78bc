// Package config loads process-wide configuration from the environment.
// It is read once at startup into an immutable Config that is passed
// explicitly to constructors; nothing below main reads the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable the engine consumes. Registry endpoints
// themselves (host/port/base URL) are deliberately not configurable; only
// per-registry enablement is.
type Config struct {
	// Per-registry enablement, from SUPPORT_<registry>.
	SupportRIPE    bool
	SupportARIN    bool
	SupportAPNIC   bool
	SupportAFRINIC bool
	SupportLACNIC  bool

	// Network timeouts.
	HTTPTimeout         time.Duration
	WhoisConnectTimeout time.Duration
	WhoisReadTimeout    time.Duration

	// Response cache bounds.
	CacheTTL      time.Duration
	CacheMaxItems int

	// UserAgent is sent on every outbound HTTP request.
	UserAgent string

	// ListenAddr is the HTTP transport bind address.
	ListenAddr string
}

// FromEnv builds a Config from environment variables, falling back to
// defaults that match the public registry endpoints' expectations.
func FromEnv() Config {
	return Config{
		SupportRIPE:    envBool("SUPPORT_RIPE", true),
		SupportARIN:    envBool("SUPPORT_ARIN", true),
		SupportAPNIC:   envBool("SUPPORT_APNIC", true),
		SupportAFRINIC: envBool("SUPPORT_AFRINIC", true),
		SupportLACNIC:  envBool("SUPPORT_LACNIC", true),

		HTTPTimeout:         envSeconds("HTTP_TIMEOUT_SECONDS", 10),
		WhoisConnectTimeout: envSeconds("WHOIS_CONNECT_TIMEOUT_SECONDS", 5),
		WhoisReadTimeout:    envSeconds("WHOIS_READ_TIMEOUT_SECONDS", 5),

		CacheTTL:      envSeconds("CACHE_TTL_SECONDS", 60),
		CacheMaxItems: envInt("CACHE_MAX_ITEMS", 512),

		UserAgent:  envStr("USER_AGENT", "whois-mcp/1.0"),
		ListenAddr: envStr("LISTEN_ADDR", ":8080"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}

// envBool accepts true/false, 1/0, yes/no, on/off (case insensitive).
func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
