package main

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/oksasatya/go-auth-service/config"
	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-auth-service/internal/domain/repository"
	pginfra "github.com/oksasatya/go-auth-service/internal/infrastructure/postgres"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
)

// seed creates a verified demo account for local development.
func main() {
	email := flag.String("email", "demo@example.com", "demo account email")
	password := flag.String("password", "password123", "demo account password")
	name := flag.String("name", "Demo User", "demo account name")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	repo := pginfra.NewAccountRepository(pool)
	addr := entity.NormalizeEmail(*email)
	if existing, err := repo.GetByEmail(ctx, addr); err == nil {
		logger.WithField("id", existing.ID).Info("demo account already present")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		logger.WithError(err).Fatal("lookup demo account")
	}

	hash, err := helpers.NewHasher(cfg.BcryptCost).Hash(*password)
	if err != nil {
		logger.WithError(err).Fatal("failed to hash password")
	}
	a := &entity.Account{
		ID:           uuid.NewString(),
		Name:         *name,
		Email:        addr,
		PasswordHash: hash,
		IsVerified:   true,
	}
	if err := repo.Create(ctx, a); err != nil {
		logger.WithError(err).Fatal("failed to seed account")
	}
	logger.WithFields(map[string]any{"id": a.ID, "email": a.Email}).Info("seeded verified demo account")
}
