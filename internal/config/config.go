package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

// DB holds the MySQL connection settings shared by every binary.
type DB struct {
	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`
}

type Config struct {
	DB
	Port                string        `env:"PORT" envDefault:"8080"`
	FirebaseProjectID   string        `env:"FIREBASE_PROJECT_ID"`
	ListingImagesBucket string        `env:"LISTING_IMAGES_BUCKET" envDefault:"listing-images"`
	ProfileImagesBucket string        `env:"PROFILE_IMAGES_BUCKET" envDefault:"profile-images"`
	RedisAddr           string        `env:"REDIS_ADDR"`
	CacheTTL            time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	CachePrefix         string        `env:"CACHE_PREFIX" envDefault:"listing:"`
	GeminiAPIKey        string        `env:"GEMINI_API_KEY"`
	GeminiModel         string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	CORSOriginSuffixes  []string      `env:"CORS_ORIGIN_SUFFIXES" envSeparator:"," envDefault:"vercel.app"`
	GitSHA              string        `env:"GIT_SHA"`
	BuildTime           string        `env:"BUILD_TIME"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.CORSOriginSuffixes = trimAll(cfg.CORSOriginSuffixes)
	return &cfg, nil
}

type WaitlistConfig struct {
	Port                  string `env:"PORT" envDefault:"8081"`
	SpreadsheetID         string `env:"SPREADSHEET_ID,required"`
	SheetRange            string `env:"SHEET_RANGE" envDefault:"Sheet1!A:B"`
	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE"`
	AcceptJSON            bool   `env:"WAITLIST_ACCEPT_JSON" envDefault:"true"`
	AcceptForm            bool   `env:"WAITLIST_ACCEPT_FORM" envDefault:"true"`
	EmitCORS              bool   `env:"WAITLIST_EMIT_CORS" envDefault:"true"`
	PlainText             bool   `env:"WAITLIST_PLAIN_TEXT" envDefault:"false"`
}

func LoadWaitlist() (*WaitlistConfig, error) {
	var cfg WaitlistConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type SeedConfig struct {
	DB
	ListingImagesBucket string `env:"LISTING_IMAGES_BUCKET" envDefault:"listing-images"`
	ForceSeed           bool   `env:"FORCE_SEED" envDefault:"false"`
	UpdateImages        bool   `env:"UPDATE_IMAGES" envDefault:"false"`
	TimeoutSeconds      int    `env:"TIMEOUT_SECONDS" envDefault:"300"`
}

func LoadSeed() (*SeedConfig, error) {
	var cfg SeedConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func trimAll(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
