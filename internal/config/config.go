package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const defaultDotEnvPath = ".env"

type Config struct {
	PushoverUserKey         string        `env:"PUSHOVER_USER_KEY"`
	PushoverAPIToken        string        `env:"PUSHOVER_API_TOKEN"`
	PushoverDebug           bool          `env:"PUSHOVER_DEBUG,default=false"`
	PushoverProxyURL        string        `env:"PUSHOVER_PROXY_URL"`
	PushoverTimeout         time.Duration `env:"PUSHOVER_TIMEOUT,default=30s"`
	PushoverDefaultSound    string        `env:"PUSHOVER_DEFAULT_SOUND,default=pushover"`
	PushoverDefaultPriority int           `env:"PUSHOVER_DEFAULT_PRIORITY,default=0"`
	AutoRefreshSounds       bool          `env:"AUTO_REFRESH_SOUNDS,default=false"`
	SoundRefreshSchedule    string        `env:"SOUND_REFRESH_SCHEDULE,default=@every 24h"`
	LedgerPath              string        `env:"LEDGER_PATH,default=data/notifications.json"`
	APIPort                 int           `env:"API_PORT,default=8080"`
	LogLevel                string        `env:"LOG_LEVEL,default=info"`
	RateLimitPerSec         int           `env:"RATE_LIMIT_PER_SEC,default=100"`
	RedisURL                string        `env:"REDIS_URL"`
	CORSAllowOrigins        string        `env:"CORS_ALLOW_ORIGINS,default=*"`
}

// Load reads ./.env when present, then the process environment.
func Load() (*Config, error) {
	return LoadWithDotEnv(defaultDotEnvPath)
}

// LoadWithDotEnv is Load with an explicit dotenv path. Variables already set in
// the environment win over the file.
func LoadWithDotEnv(path string) (*Config, error) {
	if strings.TrimSpace(path) != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.LedgerPath) == "" {
		return fmt.Errorf("LEDGER_PATH must not be empty")
	}
	if c.PushoverDefaultPriority < -2 || c.PushoverDefaultPriority > 2 {
		return fmt.Errorf("PUSHOVER_DEFAULT_PRIORITY must be between -2 and 2, got %d", c.PushoverDefaultPriority)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be a valid port, got %d", c.APIPort)
	}
	return nil
}

// PushoverEnabled reports whether both gateway credentials are present.
func (c *Config) PushoverEnabled() bool {
	return strings.TrimSpace(c.PushoverUserKey) != "" && strings.TrimSpace(c.PushoverAPIToken) != ""
}
