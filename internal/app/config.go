package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (GDV_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (GDV_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Currency    string `default:"eur" usage:"Default checkout currency"`

	Order     OrderConfig
	Stripe    StripeConfig
	SMTP      SMTPConfig
	Outbox    OutboxConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// OrderConfig tunes order creation rules.
type OrderConfig struct {
	ReferencePrefix string `default:"GDV" usage:"First segment of order references" flag:"reference-prefix"`
	MinQtyStandard  int    `default:"1"   usage:"Minimum line quantity for standard customers" flag:"min-qty-standard"`
	MinQtyPro       int    `default:"10"  usage:"Minimum line quantity for pro customers" flag:"min-qty-pro"`
}

// StripeConfig holds the hosted checkout gateway credentials. When SecretKey
// is empty the server falls back to the local fake provider.
type StripeConfig struct {
	SecretKey       string `usage:"Stripe secret key (GDV_STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	SuccessURL      string `usage:"Redirect URL after successful payment" flag:"stripe-success-url"`
	CancelURL       string `usage:"Redirect URL after cancelled payment" flag:"stripe-cancel-url"`
	FakeCheckoutURL string `default:"http://localhost:8080/fake-checkout" usage:"Base URL for fake checkout sessions" flag:"fake-checkout-url"`
}

// SMTPConfig holds the confirmation email relay. When Host is empty the
// outbox worker logs confirmations instead of sending them.
type SMTPConfig struct {
	Host     string `usage:"SMTP server host"`
	Port     int    `default:"587" usage:"SMTP server port"`
	Username string `usage:"SMTP username"`
	Password string `usage:"SMTP password"`
	From     string `default:"commandes@gdvshop.fr" usage:"Confirmation email sender address"`
}

// OutboxConfig controls the confirmation outbox worker.
type OutboxConfig struct {
	Interval  time.Duration `default:"15s" usage:"Outbox drain interval"`
	BatchSize int           `default:"20"  usage:"Max outbox entries per drain" flag:"outbox-batch"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GDV",
		Files:     []string{"config.yaml", "/etc/gdv/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set GDV_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's GDV_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
