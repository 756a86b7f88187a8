package service

import (
	"context"
	"fmt"

	"community_inbox/internal/config"
	"community_inbox/internal/domain"
	"community_inbox/internal/repository"
	apperrors "community_inbox/pkg/errors"
	"community_inbox/pkg/jwt"
	"community_inbox/pkg/logger"
)

// AuthService resolves an access token from the external identity provider
// to a local user record. Token failures mean the caller must sign in;
// a valid token with no linked record means the caller signed up with the
// provider but has not completed platform registration yet.
type AuthService interface {
	ResolveToken(ctx context.Context, tokenString string) (*domain.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	jwtCfg   config.JWTConfig
	log      logger.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		jwtCfg:   jwtCfg,
		log:      log,
	}
}

func (s *authService) ResolveToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := jwt.ValidateToken(tokenString, s.jwtCfg.AccessSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByAuthID(ctx, claims.Subject)
	if err != nil {
		s.log.Error("Failed to resolve user from token", "error", err)
		return nil, apperrors.Internal(err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: account %s has no member record", apperrors.ErrRegistrationIncomplete, claims.Subject)
	}

	return user, nil
}
