// Package container builds the application graph once at startup. Nothing in
// here is global; cmd/main owns the Container and hands it to the router.
package container

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/config"
	"github.com/oksasatya/go-auth-service/internal/application"
	"github.com/oksasatya/go-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-auth-service/internal/infrastructure/cache"
	pginfra "github.com/oksasatya/go-auth-service/internal/infrastructure/postgres"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	"github.com/oksasatya/go-auth-service/pkg/mailer"
	mailtpl "github.com/oksasatya/go-auth-service/pkg/mailer/templates"
)

type Container struct {
	Config *config.Config
	Logger *logrus.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Mail   mailer.Dispatcher

	Tokens  *helpers.TokenManager
	Cookies *helpers.Manager

	Accounts repository.AccountRepository
	Audit    repository.AuditRepository

	Auth  *application.AuthService
	Users *application.UserService
}

// New wires repositories and services on top of the given infrastructure.
// rdb may be nil, in which case profiles are read straight from Postgres.
func New(cfg *config.Config, logger *logrus.Logger, pool *pgxpool.Pool, rdb *redis.Client, mail mailer.Dispatcher) *Container {
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   rdb,
		Mail:    mail,
		Tokens:  helpers.NewTokenManager(cfg.JWTSecret, helpers.SessionTTL),
		Cookies: helpers.NewCookie(cfg.CookieDomain, cfg.IsProduction()),
	}
	c.Accounts = pginfra.NewAccountRepository(pool)
	c.Audit = pginfra.NewAuditRepository(pool)

	auth := application.NewAuthService(c.Accounts, helpers.NewHasher(cfg.BcryptCost), c.Tokens, helpers.NewCodeGenerator(), mail, logger)
	auth.Audit = c.Audit
	auth.Brand = Brand(cfg)
	if cfg.DBTimeout > 0 {
		auth.DBTimeout = cfg.DBTimeout
	}
	if cfg.MailTimeout > 0 {
		auth.MailTimeout = cfg.MailTimeout
	}

	var profiles application.ProfileCache
	if rdb != nil {
		pc := cache.NewProfileCache(rdb, cfg.ProfileCacheTTL)
		auth.Profiles = pc
		profiles = pc
	}
	c.Auth = auth
	c.Users = application.NewUserService(c.Accounts, profiles, logger)
	return c
}

// Brand returns the company details rendered into every mail.
func Brand(cfg *config.Config) mailtpl.Brand {
	return mailtpl.Brand{
		AppName:        cfg.AppName,
		CompanyName:    cfg.CompanyName,
		CompanyAddress: cfg.CompanyAddress,
		SupportURL:     cfg.SupportURL,
	}
}
