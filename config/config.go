// config/config.go
package config

import (
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/juju/errors"
)

// Config is everything the service reads from the environment.
type Config struct {
	Port                string `env:"PORT" envDefault:"5200"`
	DatabaseURL         string `env:"DATABASE_URL,required,notEmpty"`
	GatewayServiceToken string `env:"GATEWAY_SERVICE_TOKEN,required,notEmpty"`
	AllowedOrigins      string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	// QR attendance tokens
	QRTokenSecret   string        `env:"QR_TOKEN_SECRET,required,notEmpty"`
	QRTokenTTL      time.Duration `env:"QR_TOKEN_TTL" envDefault:"60s"`
	CardTokenPrefix string        `env:"CARD_TOKEN_PREFIX" envDefault:"TW-CHECKIN:"`

	// WhatsApp delivery provider
	WhatsAppAPIURL        string        `env:"WHATSAPP_API_URL"`
	WhatsAppAPIKey        string        `env:"WHATSAPP_API_KEY"`
	WhatsAppAPIKeyHeader  string        `env:"WHATSAPP_API_KEY_HEADER" envDefault:"x-api-key"`
	WhatsAppTimeout       time.Duration `env:"WHATSAPP_TIMEOUT" envDefault:"15s"`
	WhatsAppRatePerSecond float64       `env:"WHATSAPP_RATE_PER_SECOND" envDefault:"5"`

	// Dispatcher
	DispatchBatchSize   int           `env:"DISPATCH_BATCH_SIZE" envDefault:"20"`
	DispatchConcurrency int           `env:"DISPATCH_CONCURRENCY" envDefault:"4"`
	DispatchInterval    time.Duration `env:"DISPATCH_INTERVAL" envDefault:"1m"`
	DispatchStaleAfter  time.Duration `env:"DISPATCH_STALE_AFTER" envDefault:"10m"`

	CountryCode string `env:"COUNTRY_CODE" envDefault:"62"`
	Timezone    string `env:"TIMEZONE" envDefault:"Asia/Jakarta"`
	Locale      string `env:"LOCALE" envDefault:"id"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return Parse()
}

// Parse parses the process environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Annotate(err, "parse env")
	}
	if cfg.DispatchBatchSize <= 0 {
		return nil, errors.NotValidf("DISPATCH_BATCH_SIZE %d", cfg.DispatchBatchSize)
	}
	if cfg.DispatchConcurrency <= 0 {
		cfg.DispatchConcurrency = 1
	}
	if cfg.QRTokenTTL <= 0 {
		return nil, errors.NotValidf("QR_TOKEN_TTL %s", cfg.QRTokenTTL)
	}
	return &cfg, nil
}

// Origins splits ALLOWED_ORIGINS and trims each entry.
func (c *Config) Origins() string {
	list := strings.Split(c.AllowedOrigins, ",")
	for i, origin := range list {
		list[i] = strings.TrimSpace(origin)
	}
	return strings.Join(list, ",")
}

// Location resolves TIMEZONE, falling back to Asia/Jakarta and then UTC.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	log.Printf("⚠️  [CONFIG] Unknown TIMEZONE %q, falling back to Asia/Jakarta", c.Timezone)
	if loc, err := time.LoadLocation("Asia/Jakarta"); err == nil {
		return loc
	}
	return time.UTC
}
