package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/chatterhq/gateway/internal/gateway/provider"
)

// Config is the gateway's environment-driven configuration.
type Config struct {
	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Port      int    `env:"PORT" envDefault:"8080"`

	// Issuer is the iss claim stamped into and required of session tokens.
	Issuer string `env:"GATEWAY_ISSUER" envDefault:"chatterhq-gateway"`

	// FrontendURL is where OAuth callbacks redirect the browser.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	DatabaseFile string `env:"GATEWAY_DATABASE_FILE" envDefault:"gateway.db"`
	PepperFile   string `env:"GATEWAY_PEPPER_FILE" envDefault:"pepper"`

	NumKeys              int           `env:"GATEWAY_NUM_KEYS" envDefault:"3"`
	SessionTTL           time.Duration `env:"GATEWAY_SESSION_TTL" envDefault:"24h"`
	ChallengeTTL         time.Duration `env:"GATEWAY_CHALLENGE_TTL" envDefault:"10m"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"5m"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	// Upstream services the gateway fronts. Empty disables the route.
	AIServiceURL              string `env:"AI_SERVICE_URL" envDefault:"http://localhost:8001"`
	DataServiceURL            string `env:"DATA_SERVICE_URL" envDefault:"http://localhost:8002"`
	PersonalizationServiceURL string `env:"PERSONALIZATION_SERVICE_URL" envDefault:"http://localhost:8003"`

	// Provider credentials. A provider with no client id is simply not
	// registered.
	Google   provider.GoogleConfig
	GitHub   provider.GitHubConfig
	Facebook provider.FacebookConfig
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
