package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fjod/helden/internal/pricing"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "HELDEN_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout     time.Duration `koanf:"read_timeout"`
		WriteTimeout    time.Duration `koanf:"write_timeout"`
		IdleTimeout     time.Duration `koanf:"idle_timeout"`
		RequestTimeout  time.Duration `koanf:"request_timeout"`
		ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
		MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	} `koanf:"http"`

	Auth struct {
		JWTSecret string `koanf:"jwt_secret"`
		Issuer    string `koanf:"issuer"`
	} `koanf:"auth"`

	Mongo struct {
		URI      string `koanf:"uri"`
		Database string `koanf:"database"`
	} `koanf:"mongo"`

	Postgres struct {
		Host           string `koanf:"host"`
		Port           int    `koanf:"port"`
		User           string `koanf:"user"`
		Password       string `koanf:"password"`
		DBName         string `koanf:"dbname"`
		MigrationsPath string `koanf:"migrations_path"`
	} `koanf:"postgres"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Kafka struct {
		Brokers         []string      `koanf:"brokers"`
		OrderTopic      string        `koanf:"order_topic"`
		ReferralTopic   string        `koanf:"referral_topic"`
		ConsumerGroup   string        `koanf:"consumer_group"`
		PublishInterval time.Duration `koanf:"publish_interval"`
	} `koanf:"kafka"`

	Checkout struct {
		DraftTTL          time.Duration `koanf:"draft_ttl"`
		DeliveryDays      int           `koanf:"delivery_days"`
		SweepInterval     time.Duration `koanf:"sweep_interval"`
		ReservationPolicy string        `koanf:"reservation_policy"`
	} `koanf:"checkout"`

	Pricing struct {
		ShippingBands []pricing.Band `koanf:"shipping_bands"`
	} `koanf:"pricing"`

	Wallet struct {
		Backend  string `koanf:"backend"`
		PageSize int    `koanf:"page_size"`
	} `koanf:"wallet"`

	Razorpay struct {
		KeyID            string        `koanf:"key_id"`
		KeySecret        string        `koanf:"key_secret"`
		Currency         string        `koanf:"currency"`
		RequireSignature bool          `koanf:"require_signature"`
		Timeout          time.Duration `koanf:"timeout"`
	} `koanf:"razorpay"`

	Cache struct {
		CartTTL time.Duration `koanf:"cart_ttl"`
	} `koanf:"cache"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod), optional for local runs
	if envName != "" {
		_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())
	}

	// 3) environment variables, nested with __
	// e.g. HELDEN_MONGO__URI, HELDEN_KAFKA__BROKERS=a:9092,b:9092
	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKeyValue), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKeyValue(key, value string) (string, interface{}) {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
	if strings.HasSuffix(key, "brokers") {
		return key, strings.Split(value, ",")
	}
	return key, value
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return fmt.Errorf("mongo.uri and mongo.database required")
	}
	if c.Checkout.DraftTTL <= 0 {
		return fmt.Errorf("checkout.draft_ttl must be positive")
	}
	switch c.Checkout.ReservationPolicy {
	case "none", "soft":
	default:
		return fmt.Errorf("checkout.reservation_policy must be none or soft, got %q", c.Checkout.ReservationPolicy)
	}
	switch c.Wallet.Backend {
	case "mongo":
	case "postgres":
		if c.Postgres.Host == "" || c.Postgres.DBName == "" {
			return fmt.Errorf("postgres.host and postgres.dbname required for wallet.backend postgres")
		}
	default:
		return fmt.Errorf("wallet.backend must be mongo or postgres, got %q", c.Wallet.Backend)
	}
	prev := 0.0
	for i, b := range c.Pricing.ShippingBands {
		if b.UpTo <= prev {
			return fmt.Errorf("pricing.shipping_bands[%d]: up_to must increase, got %v after %v", i, b.UpTo, prev)
		}
		if b.Fee < 0 {
			return fmt.Errorf("pricing.shipping_bands[%d]: fee must not be negative", i)
		}
		prev = b.UpTo
	}
	if c.Razorpay.RequireSignature && c.Razorpay.KeySecret == "" {
		return fmt.Errorf("razorpay.key_secret required while razorpay.require_signature is set")
	}
	return nil
}
