package config

import (
	"github.com/Skotchmaster/bookstore/internal/events"
	"github.com/Skotchmaster/bookstore/internal/service"
	"github.com/Skotchmaster/bookstore/pkg/config"
)

type ServiceConfig struct {
	config.Config

	OrderEventsTopic string
	Commit           service.CommitPolicy
}

func Load() ServiceConfig {
	cfg := config.Load()

	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	if cfg.AuthHTTPURL != "" {
		config.MustHTTPURL(cfg.AuthHTTPURL, "AUTH_URL")
	}

	def := service.DefaultCommitPolicy()
	out := ServiceConfig{
		Config:           cfg,
		OrderEventsTopic: config.EnvDefault("ORDER_EVENTS_TOPIC", events.DefaultTopic),
		Commit: service.CommitPolicy{
			Timeout:     config.EnvDurationDefault("ORDER_COMMIT_TIMEOUT", def.Timeout),
			MaxAttempts: config.EnvIntDefault("ORDER_COMMIT_ATTEMPTS", def.MaxAttempts),
			Backoff:     config.EnvDurationDefault("ORDER_COMMIT_BACKOFF", def.Backoff),
		},
	}
	config.MustPositive(out.Commit.MaxAttempts, "ORDER_COMMIT_ATTEMPTS")

	if out.ServiceName == "" {
		out.ServiceName = "order"
	}
	return out
}
