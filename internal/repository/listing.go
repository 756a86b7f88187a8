package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community_inbox/internal/domain"
	"community_inbox/pkg/logger"
)

type ListingRepository interface {
	// GetByID returns (nil, nil) when the listing does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.BusinessListing, error)
	// GetApprovedByID returns (nil, nil) unless the listing exists and is
	// approved.
	GetApprovedByID(ctx context.Context, id uuid.UUID) (*domain.BusinessListing, error)
	// CreateMessage appends to the legacy flat business-message log.
	CreateMessage(ctx context.Context, msg *domain.BusinessMessage) error
}

type listingRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewListingRepository(db *pgxpool.Pool, log logger.Logger) ListingRepository {
	return &listingRepository{db: db, log: log}
}

func (r *listingRepository) getListing(ctx context.Context, query string, args ...any) (*domain.BusinessListing, error) {
	listing := &domain.BusinessListing{}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&listing.ID, &listing.Name, &listing.Status, &listing.CreatedByID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to get business listing", "error", err)
		return nil, err
	}
	return listing, nil
}

func (r *listingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BusinessListing, error) {
	return r.getListing(ctx,
		`SELECT id, name, status, created_by_id FROM business_listings WHERE id = $1`, id)
}

func (r *listingRepository) GetApprovedByID(ctx context.Context, id uuid.UUID) (*domain.BusinessListing, error) {
	return r.getListing(ctx,
		`SELECT id, name, status, created_by_id FROM business_listings WHERE id = $1 AND status = $2`,
		id, domain.ListingStatusApproved)
}

func (r *listingRepository) CreateMessage(ctx context.Context, msg *domain.BusinessMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO business_messages (id, listing_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query, msg.ID, msg.ListingID, msg.SenderID, msg.Body, msg.CreatedAt)
	if err != nil {
		r.log.Error("Failed to create legacy business message", "error", err, "listing_id", msg.ListingID)
		return err
	}
	return nil
}
