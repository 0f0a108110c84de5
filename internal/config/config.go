// Package config reads server settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"arena-duel/server/internal/telemetry"
)

type Config struct {
	Addr              string
	TickRate          int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxMissedPings    int
	InputLeadFrames   int
	StallTimeout      time.Duration
	MovesFile         string
	TelemetryURL      string
	TelemetrySQLite   string
	LogJSONPath       string
	LogDevelopment    bool
	EnablePprof       bool
}

func Default() Config {
	return Config{
		Addr:              ":8080",
		TickRate:          60,
		HeartbeatInterval: 2 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		MaxMissedPings:    2,
		InputLeadFrames:   8,
		StallTimeout:      250 * time.Millisecond,
	}
}

// Load reads files (default ".env") into the environment without overriding
// variables that are already set, then parses the known keys. Missing files
// are ignored; invalid values are logged and the default kept.
func Load(logger telemetry.Logger, files ...string) (Config, error) {
	if logger == nil {
		logger = telemetry.Discard()
	}
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, err
		}
		logger.Printf("loaded environment from %s", file)
	}
	return FromEnv(os.Getenv, logger), nil
}

// FromEnv parses the configuration from lookup.
func FromEnv(lookup func(string) string, logger telemetry.Logger) Config {
	if logger == nil {
		logger = telemetry.Discard()
	}
	cfg := Default()
	p := parser{lookup: lookup, logger: logger}

	if raw := lookup("ADDR"); raw != "" {
		cfg.Addr = raw
	}
	p.positiveInt("TICK_RATE", &cfg.TickRate)
	p.millis("HEARTBEAT_INTERVAL_MS", &cfg.HeartbeatInterval)
	p.millis("HEARTBEAT_TIMEOUT_MS", &cfg.HeartbeatTimeout)
	p.positiveInt("MAX_MISSED_PINGS", &cfg.MaxMissedPings)
	p.positiveInt("INPUT_LEAD_FRAMES", &cfg.InputLeadFrames)
	p.millis("STALL_TIMEOUT_MS", &cfg.StallTimeout)
	cfg.MovesFile = lookup("MOVES_FILE")
	cfg.TelemetryURL = lookup("TELEMETRY_URL")
	cfg.TelemetrySQLite = lookup("TELEMETRY_SQLITE")
	cfg.LogJSONPath = lookup("LOG_JSON_PATH")
	p.boolean("LOG_DEVELOPMENT", &cfg.LogDevelopment)
	p.boolean("ENABLE_PPROF", &cfg.EnablePprof)
	return cfg
}

// StepMs is the simulation step length implied by TickRate.
func (c Config) StepMs() float64 {
	if c.TickRate <= 0 {
		return 1000.0 / 60.0
	}
	return 1000.0 / float64(c.TickRate)
}

type parser struct {
	lookup func(string) string
	logger telemetry.Logger
}

func (p parser) positiveInt(key string, dst *int) {
	raw := p.lookup(key)
	if raw == "" {
		return
	}
	value, err := strconv.Atoi(raw)
	if err == nil && value <= 0 {
		err = strconv.ErrRange
	}
	if err != nil {
		p.logger.Printf("invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}

func (p parser) millis(key string, dst *time.Duration) {
	value := int(*dst / time.Millisecond)
	before := value
	p.positiveInt(key, &value)
	if value != before {
		*dst = time.Duration(value) * time.Millisecond
	}
}

func (p parser) boolean(key string, dst *bool) {
	raw := p.lookup(key)
	if raw == "" {
		return
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		p.logger.Printf("invalid %s=%q: %v", key, raw, err)
		return
	}
	*dst = value
}
