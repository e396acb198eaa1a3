package authcore

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config carries every tunable of the Engine. Zero values are not usable;
// start from [DefaultConfig] and override.
//
// Config instances are treated as immutable after [Builder.Build].
type Config struct {
	Codes    CodeConfig
	Session  SessionConfig
	JWT      JWTConfig
	Audit    AuditConfig
	Security SecurityConfig
	Janitor  JanitorConfig
}

/*
====================================
ONE-TIME CODE CONFIG
====================================
*/

// CodeConfig tunes issuance and verification of login codes.
type CodeConfig struct {
	// TTL bounds the life of an issued code. While a code is live no new
	// code can be requested for the same (email, purpose).
	TTL time.Duration
	// MaxAttempts is the per-code verification budget. Once spent, the
	// code is dead until TTL elapses; there is no admin reset.
	MaxAttempts int
	// Digits is the code length. Uniform random, leading zeros kept.
	Digits int
	// BcryptCost is the hashing cost for stored code hashes.
	BcryptCost int
	// RedisPrefix namespaces code keys.
	RedisPrefix string
	// EnableIPThrottle adds a fixed-window per-IP cap on code requests.
	EnableIPThrottle bool
	// IPThrottleMax is the per-window request cap when the throttle is on.
	IPThrottleMax int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes session persistence.
type SessionConfig struct {
	// TTL is the absolute session lifetime from creation.
	TTL time.Duration
	// RedisPrefix namespaces session keys.
	RedisPrefix string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig tunes the signed bearer credential. The credential TTL always
// matches Session.TTL so token and session expire together.
type JWTConfig struct {
	// SigningSecret is the HS256 key. Minimum 32 bytes.
	SigningSecret []byte
	Issuer        string
	Leeway        time.Duration
}

// AuditConfig tunes the audit trail recorder.
type AuditConfig struct {
	Enabled bool
	// BufferSize bounds the async queue. Async entries beyond it are
	// dropped and counted; synchronous records never drop.
	BufferSize int
	// Retention caps the stored trail, newest-first. Oldest entries are
	// trimmed on append.
	Retention int
}

// SecurityConfig holds cross-cutting hardening switches.
type SecurityConfig struct {
	// ProductionMode turns on Secure cookies and hides dev conveniences.
	ProductionMode bool
}

// JanitorConfig tunes the background sweep that prunes stale session-index
// members. Codes and sessions themselves expire via Redis TTL.
type JanitorConfig struct {
	Enabled  bool
	Interval time.Duration
}

// DefaultConfig returns the fixed operating constants: 6-digit codes with a
// 10-minute TTL and 3 attempts, 24-hour sessions, hourly janitor sweeps,
// 10 000 retained audit entries.
func DefaultConfig() Config {
	return Config{
		Codes: CodeConfig{
			TTL:           10 * time.Minute,
			MaxAttempts:   3,
			Digits:        6,
			BcryptCost:    12,
			RedisPrefix:   "otc",
			IPThrottleMax: 5,
		},
		Session: SessionConfig{
			TTL:         24 * time.Hour,
			RedisPrefix: "sess",
		},
		JWT: JWTConfig{
			Issuer: "authcore",
			Leeway: 30 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			Retention:  10_000,
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Codes.TTL <= 0 {
		return errors.New("code TTL must be positive")
	}
	if cfg.Codes.MaxAttempts <= 0 {
		return errors.New("code max attempts must be positive")
	}
	if cfg.Codes.Digits < 6 || cfg.Codes.Digits > 10 {
		return errors.New("code digits must be between 6 and 10")
	}
	if cfg.Codes.BcryptCost < bcrypt.MinCost || cfg.Codes.BcryptCost > bcrypt.MaxCost {
		return errors.New("invalid bcrypt cost")
	}
	if cfg.Codes.EnableIPThrottle && cfg.Codes.IPThrottleMax <= 0 {
		return errors.New("ip throttle enabled with non-positive cap")
	}
	if cfg.Session.TTL <= 0 {
		return errors.New("session TTL must be positive")
	}
	if len(cfg.JWT.SigningSecret) < 32 {
		return errors.New("signing secret must be at least 32 bytes")
	}
	if cfg.JWT.Leeway < 0 || cfg.JWT.Leeway > 2*time.Minute {
		return errors.New("invalid leeway configuration")
	}
	if cfg.Audit.Enabled {
		if cfg.Audit.BufferSize <= 0 {
			return errors.New("audit buffer size must be positive")
		}
		if cfg.Audit.Retention <= 0 {
			return errors.New("audit retention must be positive")
		}
	}
	if cfg.Janitor.Enabled && cfg.Janitor.Interval <= 0 {
		return errors.New("janitor interval must be positive")
	}
	return nil
}
