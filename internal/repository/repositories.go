package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"community_inbox/pkg/logger"
)

type Repositories struct {
	User         UserRepository
	Listing      ListingRepository
	Conversation ConversationRepository
	UnreadCache  UnreadCacheRepository
	RateLimit    RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db, log),
		Listing:      NewListingRepository(db, log),
		Conversation: NewConversationRepository(db, log),
		UnreadCache:  NewUnreadCacheRepository(rdb, log),
		RateLimit:    NewRateLimitRepository(rdb, log),
	}
}
