// Package config loads the savdobot configuration: the shared core settings
// plus shop, storage, state, events and catalog blocks.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	coreconfig "github.com/m3rciful/savdobot/core/config"
	coredatabase "github.com/m3rciful/savdobot/core/database"
	"github.com/m3rciful/savdobot/internal/catalog"
	"github.com/m3rciful/savdobot/internal/events"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	defaultCurrency = "UZS"
	defaultStateTTL = 24 * time.Hour
)

// Shop holds the storefront details shown to buyers.
type Shop struct {
	// ChannelID is the numeric chat id or @username of the channel holding product posts.
	ChannelID   string `yaml:"channel_id" envconfig:"CHANNEL_ID" validate:"required"`
	PaymentCard string `yaml:"payment_card" envconfig:"PAYMENT_CARD" validate:"required"`
	Currency    string `yaml:"currency" envconfig:"SHOP_CURRENCY"`
}

// Storage selects where the catalog and the order ledger live.
type Storage struct {
	Driver   string              `yaml:"driver" envconfig:"STORAGE_DRIVER" validate:"oneof=memory postgres"`
	Database coredatabase.Config `yaml:"database"`
}

// State selects the conversation session backend.
type State struct {
	Driver string `yaml:"driver" envconfig:"STATE_DRIVER" validate:"oneof=memory redis"`
	// TTL expires idle sessions; nil means 24h and zero disables expiry.
	TTL           *time.Duration `yaml:"ttl" envconfig:"STATE_TTL"`
	RedisAddr     string         `yaml:"redis_addr" envconfig:"REDIS_ADDR" validate:"required_if=Driver redis"`
	RedisPassword string         `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int            `yaml:"redis_db" envconfig:"REDIS_DB" validate:"gte=0"`
}

// Events configures the outbound event stream.
type Events struct {
	Kafka events.KafkaConfig `yaml:"kafka"`
}

// Catalog lists products inserted at startup when missing.
type Catalog struct {
	Seed []catalog.Product `yaml:"seed" ignored:"true"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Shop    Shop    `yaml:"shop"`
	Storage Storage `yaml:"storage"`
	State   State   `yaml:"state"`
	Events  Events  `yaml:"events"`
	Catalog Catalog `yaml:"catalog"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads path (optional) and the environment, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.ReadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Shop.ChannelID = strings.TrimSpace(c.Shop.ChannelID)
	c.Shop.PaymentCard = strings.TrimSpace(c.Shop.PaymentCard)
	if c.Shop.Currency = strings.TrimSpace(c.Shop.Currency); c.Shop.Currency == "" {
		c.Shop.Currency = defaultCurrency
	}
	if c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver)); c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.State.Driver = strings.ToLower(strings.TrimSpace(c.State.Driver)); c.State.Driver == "" {
		c.State.Driver = DriverMemory
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by the env name operators set.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("envconfig"); name != "" {
			return name
		}
		if name, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate checks required settings and enumerated values. Every missing
// required setting is reported at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	var missing, invalid []string
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_if":
			missing = append(missing, fe.Field())
		case "oneof":
			invalid = append(invalid, fmt.Sprintf("%s=%q (allowed: %s)", fe.Field(), fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			invalid = append(invalid, fmt.Sprintf("%s=%v (%s)", fe.Field(), fe.Value(), fe.Tag()))
		}
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(missing, " / "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(invalid, "; "))
	}
	return errors.New(strings.Join(parts, "; "))
}

// StateTTL resolves the configured session TTL.
func (c *Config) StateTTL() time.Duration {
	if c.State.TTL == nil {
		return defaultStateTTL
	}
	if *c.State.TTL < 0 {
		return 0
	}
	return *c.State.TTL
}

// DatabaseConfig returns the Postgres settings, or nil for memory storage.
func (c *Config) DatabaseConfig() *coredatabase.Config {
	if c.Storage.Driver != DriverPostgres {
		return nil
	}
	db := c.Storage.Database.WithDefaults()
	return &db
}

// SeedProducts returns the products to insert at startup. An empty memory
// catalog falls back to the built-in reference products.
func (c *Config) SeedProducts() []catalog.Product {
	if len(c.Catalog.Seed) > 0 {
		return c.Catalog.Seed
	}
	if c.Storage.Driver == DriverMemory {
		return catalog.Defaults()
	}
	return nil
}
