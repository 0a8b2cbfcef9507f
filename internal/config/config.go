package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rigshare/service-booking/pkg/config"
)

// FeeConfig holds the platform fee settings.
type FeeConfig struct {
	PlatformFeeRate decimal.Decimal
}

// PolicyConfig identifies the policy renters accept and how long its active
// version is cached.
type PolicyConfig struct {
	Slug     string
	CacheTTL time.Duration
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port               string
	AppEnv             string
	DBConfig           config.DatabaseConfig
	JWTConfig          config.JWTConfig
	KafkaConfig        config.KafkaConfig
	FeeConfig          FeeConfig
	PolicyConfig       PolicyConfig
	AuditRelaySchedule string
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v, err := config.Load("BOOKING")
	if err != nil {
		return nil, err
	}
	v.SetDefault("DB_NAME", "rigshare_booking")
	v.SetDefault("PLATFORM_FEE_RATE", "0.015")
	v.SetDefault("POLICY_SLUG", "insurance-damage")
	v.SetDefault("POLICY_CACHE_TTL", "30s")
	v.SetDefault("AUDIT_RELAY_SCHEDULE", "@every 1m")

	rate, err := decimal.NewFromString(v.GetString("PLATFORM_FEE_RATE"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_PLATFORM_FEE_RATE: %w", err)
	}

	return &ServiceConfig{
		Port:        config.GetServicePort(v, "SERVICE_PORT"),
		AppEnv:      config.GetAppEnv(v),
		DBConfig:    config.LoadDatabaseConfig(v, "DB_NAME"),
		JWTConfig:   config.LoadJWTConfig(v),
		KafkaConfig: config.LoadKafkaConfig(v),
		FeeConfig:   FeeConfig{PlatformFeeRate: rate},
		PolicyConfig: PolicyConfig{
			Slug:     v.GetString("POLICY_SLUG"),
			CacheTTL: v.GetDuration("POLICY_CACHE_TTL"),
		},
		AuditRelaySchedule: v.GetString("AUDIT_RELAY_SCHEDULE"),
	}, nil
}
