package config

import (
	"errors"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

var AppEnv Config

type Config struct {
	Env           string
	Port          string
	StoreDriver   string
	MongoURI      string
	DBName        string
	ClientOrigins []string
	LogLevel      string
	BcryptCost    int

	JWT       JWTConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
}

type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

type RateLimitConfig struct {
	Enabled        bool
	LoginMax       int
	LoginWindow    time.Duration
	RegisterMax    int
	RegisterWindow time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present) and the process environment into AppEnv.
func Load() error {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env not loaded", "error", err)
	}
	cfg, err := FromEnv()
	if err != nil {
		return err
	}
	AppEnv = cfg
	return nil
}

// FromEnv builds a validated Config from the current environment without
// touching AppEnv.
func FromEnv() (Config, error) {
	var errs []error

	accessTTL, err := getDurationEnv("JWT_ACCESS_EXPIRES_IN", 15, time.Minute)
	errs = append(errs, err)
	refreshTTL, err := getDurationEnv("JWT_REFRESH_EXPIRES_IN", 7, 24*time.Hour)
	errs = append(errs, err)

	cfg := Config{
		Env:           getEnvOrDefault("APP_ENV", getEnvOrDefault("NODE_ENV", "development")),
		Port:          getEnvOrDefault("PORT", "8080"),
		StoreDriver:   getEnvOrDefault("STORE_DRIVER", DriverMongo),
		MongoURI:      getEnvOrDefault("MONGO_URI", ""),
		DBName:        getEnvOrDefault("DB_NAME", "bookvocab"),
		ClientOrigins: getListEnv("CLIENT_ORIGIN"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		BcryptCost:    getIntEnv("BCRYPT_COST", 10),
		JWT: JWTConfig{
			AccessSecret:    getEnvOrDefault("JWT_ACCESS_SECRET", ""),
			RefreshSecret:   getEnvOrDefault("JWT_REFRESH_SECRET", ""),
			AccessTokenTTL:  accessTTL,
			RefreshTokenTTL: refreshTTL,
			Issuer:          getEnvOrDefault("JWT_ISSUER", "bookvocab"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getBoolEnv("RATE_LIMIT_ENABLED"),
			LoginMax:       getIntEnv("RATE_LIMIT_AUTH_MAX", 5),
			LoginWindow:    15 * time.Minute,
			RegisterMax:    getIntEnv("RATE_LIMIT_REGISTER_MAX", 3),
			RegisterWindow: time.Hour,
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
	}

	errs = append(errs, cfg.Validate())
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required"))
		}
	case DriverMemory:
	default:
		errs = append(errs, errors.New("STORE_DRIVER must be mongo or memory"))
	}
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET is required"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, errors.New("BCRYPT_COST must be between 4 and 31"))
	}
	return errors.Join(errs...)
}
