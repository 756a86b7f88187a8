package handler

import (
	"community_inbox/internal/config"
	"community_inbox/internal/service"
	"community_inbox/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Inbox     *InboxHandler
	Broadcast *BroadcastHandler
	Internal  *InternalHandler
}

func NewHandlers(services *service.Services, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg),
		Inbox:     NewInboxHandler(services.Messaging, log),
		Broadcast: NewBroadcastHandler(services.Messaging, log),
		Internal:  NewInternalHandler(services.Messaging, services.Notify, cfg.Inbox, log),
	}
}
