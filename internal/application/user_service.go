package application

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	repo "github.com/oksasatya/go-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-auth-service/pkg/apperr"
)

// ProfileCache is the read-through store behind GetProfile (cache.ProfileCache).
type ProfileCache interface {
	Get(ctx context.Context, userID string) (entity.Profile, bool, error)
	Set(ctx context.Context, userID string, p entity.Profile) error
}

type UserService struct {
	repo   repo.AccountRepository
	cache  ProfileCache
	logger *logrus.Logger
}

func NewUserService(r repo.AccountRepository, cache ProfileCache, logger *logrus.Logger) *UserService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &UserService{repo: r, cache: cache, logger: logger}
}

// GetProfile returns the public profile of userID. Cache failures fall back to
// the store.
func (s *UserService) GetProfile(ctx context.Context, userID string) (entity.Profile, error) {
	if userID == "" {
		return entity.Profile{}, apperr.Validation("missing fields")
	}
	if s.cache != nil {
		p, ok, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("profile cache read failed")
		} else if ok {
			return p, nil
		}
	}

	a, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return entity.Profile{}, apperr.NotFound("user not found")
		}
		return entity.Profile{}, apperr.Internal("get profile failed", err)
	}

	p := a.Profile()
	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, p); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("profile cache write failed")
		}
	}
	return p, nil
}
