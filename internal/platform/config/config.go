package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the bot needs at startup so main stays lean.
type Config struct {
	// BotToken authenticates against the chat platform.
	BotToken string
	// GroupID is the single monitored group whose membership is enforced.
	GroupID int64
	// AdminIDs is the administrator allow-list for the command surface.
	AdminIDs []int64
	// InviteLink is sent to candidates on successful verification.
	InviteLink string
	// RequireSuffix selects the input format: full name plus last four phone
	// digits (true) or full name only (false).
	RequireSuffix bool
	// EvictionUnban lifts the ban after a kick so the evicted member can
	// rejoin once verified.
	EvictionUnban bool

	// OpsAddr serves /healthz and /metrics.
	OpsAddr string
	// DatabaseURL selects the Postgres directory store; empty falls back to
	// the in-memory store (development only).
	DatabaseURL string
	// RedisURL selects the Redis lockout store; empty falls back to memory.
	RedisURL string
	// AuditBrokers enables the Kafka audit publisher when non-empty.
	AuditBrokers []string
	AuditTopic   string

	LockoutMaxFailures int
	LockoutWindow      time.Duration
	LockoutCooldown    time.Duration

	// RestartDelay is the pause between crash-and-restart cycles of the run
	// loop.
	RestartDelay time.Duration
	LogLevel     string
}

// FromEnv builds the config from environment variables, applying defaults
// for everything except the bot token and group ID.
func FromEnv() (Config, error) {
	cfg := Config{
		BotToken:           os.Getenv("BOT_TOKEN"),
		InviteLink:         os.Getenv("INVITE_LINK"),
		RequireSuffix:      envBool("REQUIRE_PHONE_SUFFIX", true),
		EvictionUnban:      envBool("EVICTION_UNBAN", true),
		OpsAddr:            envDefault("OPS_ADDR", ":9090"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		AuditTopic:         envDefault("AUDIT_TOPIC", "gatebot.audit"),
		LockoutMaxFailures: envInt("LOCKOUT_MAX_FAILURES", 5),
		LockoutWindow:      envDuration("LOCKOUT_WINDOW", 10*time.Minute),
		LockoutCooldown:    envDuration("LOCKOUT_COOLDOWN", 10*time.Minute),
		RestartDelay:       envDuration("RESTART_DELAY", time.Second),
		LogLevel:           envDefault("LOG_LEVEL", "info"),
	}

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("BOT_TOKEN is required")
	}

	groupID, err := strconv.ParseInt(os.Getenv("GROUP_ID"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("GROUP_ID is required and must be a chat id: %w", err)
	}
	cfg.GroupID = groupID

	for _, raw := range splitList(os.Getenv("ADMIN_IDS")) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("ADMIN_IDS entry %q is not a user id: %w", raw, err)
		}
		cfg.AdminIDs = append(cfg.AdminIDs, id)
	}

	cfg.AuditBrokers = splitList(os.Getenv("AUDIT_BROKERS"))

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}
