package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community_inbox/internal/domain"
	"community_inbox/pkg/logger"
)

type UserRepository interface {
	// GetByID returns (nil, nil) when no user exists with the given id.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// GetByAuthID resolves the identity provider's subject to a local user.
	// Returns (nil, nil) when the subject has no linked record yet.
	GetByAuthID(ctx context.Context, authID string) (*domain.User, error)
	// Search matches approved users case-insensitively on first name, last
	// name, or email, excluding excludeID, capped at limit.
	Search(ctx context.Context, excludeID uuid.UUID, query string, limit int) ([]*domain.UserSearchResult, error)
	ListBroadcastRecipients(ctx context.Context, target domain.BroadcastTarget) ([]uuid.UUID, error)
	CountBroadcastRecipients(ctx context.Context, target domain.BroadcastTarget) (int, error)
}

type userRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewUserRepository(db *pgxpool.Pool, log logger.Logger) UserRepository {
	return &userRepository{db: db, log: log}
}

const userColumns = `
	id, auth_id, email, first_name, last_name, role, is_approved, zone_id, section, created_at
`

func scanUser(row pgx.Row) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID, &user.AuthID, &user.Email, &user.FirstName, &user.LastName,
		&user.Role, &user.IsApproved, &user.ZoneID, &user.Section, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetByAuthID(ctx context.Context, authID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE auth_id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, authID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to get user by auth ID", "error", err)
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Search(ctx context.Context, excludeID uuid.UUID, query string, limit int) ([]*domain.UserSearchResult, error) {
	sql := `
		SELECT id, first_name, last_name, email
		FROM users
		WHERE is_approved = TRUE
		  AND id <> $1
		  AND (first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2)
		ORDER BY last_name, first_name, id
		LIMIT $3
	`

	rows, err := r.db.Query(ctx, sql, excludeID, "%"+query+"%", limit)
	if err != nil {
		r.log.Error("Failed to search users", "error", err)
		return nil, err
	}
	defer rows.Close()

	var results []*domain.UserSearchResult
	for rows.Next() {
		var id uuid.UUID
		var firstName, lastName, email string
		if err := rows.Scan(&id, &firstName, &lastName, &email); err != nil {
			r.log.Error("Failed to scan user search row", "error", err)
			return nil, err
		}
		u := domain.User{FirstName: firstName, LastName: lastName, Email: email}
		results = append(results, &domain.UserSearchResult{ID: id, Name: u.DisplayName(), Email: email})
	}

	return results, rows.Err()
}

// broadcastPredicate builds the targeting clause shared by recipient listing
// and the preview count, so the two can never diverge.
func broadcastPredicate(target domain.BroadcastTarget) (string, []any, error) {
	where := `is_approved = TRUE`
	args := []any{}

	switch target.Type {
	case domain.BroadcastTargetAll:
	case domain.BroadcastTargetZone:
		if target.ZoneID == nil {
			return "", nil, fmt.Errorf("zone target requires a zone id")
		}
		where += ` AND zone_id = $1`
		args = append(args, *target.ZoneID)
	case domain.BroadcastTargetSection:
		if target.Section == nil {
			return "", nil, fmt.Errorf("section target requires a section")
		}
		where += ` AND section = $1`
		args = append(args, *target.Section)
	default:
		return "", nil, fmt.Errorf("unknown broadcast target type %q", target.Type)
	}

	return where, args, nil
}

func (r *userRepository) ListBroadcastRecipients(ctx context.Context, target domain.BroadcastTarget) ([]uuid.UUID, error) {
	where, args, err := broadcastPredicate(target)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT id FROM users WHERE `+where, args...)
	if err != nil {
		r.log.Error("Failed to list broadcast recipients", "error", err)
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *userRepository) CountBroadcastRecipients(ctx context.Context, target domain.BroadcastTarget) (int, error) {
	where, args, err := broadcastPredicate(target)
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count broadcast recipients", "error", err)
		return 0, err
	}
	return count, nil
}
