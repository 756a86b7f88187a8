package service

import (
	"community_inbox/internal/config"
	"community_inbox/internal/repository"
	"community_inbox/pkg/logger"
)

type Services struct {
	Auth      AuthService
	Messaging MessagingService
	Notify    NotifyService
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	messaging := NewMessagingService(
		repos.Conversation, repos.User, repos.Listing, repos.UnreadCache, cfg.Inbox, log,
	)

	return &Services{
		Auth:      NewAuthService(repos.User, cfg.JWT, log),
		Messaging: messaging,
		Notify:    NewNotifyService(messaging, log),
		RateLimit: NewRateLimitService(repos.RateLimit, log),
	}
}
