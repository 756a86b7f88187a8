package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community_inbox/internal/domain"
	"community_inbox/pkg/logger"
)

type ConversationRepository interface {
	// GetConversation returns (nil, nil) when the conversation does not exist.
	GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	// GetParticipant returns (nil, nil) when the user has no participant row.
	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationParticipant, error)
	// ListActiveParticipations returns the caller's non-deleted participant
	// rows, archived included.
	ListActiveParticipations(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationParticipant, error)
	ListParticipantUserIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	CountMessagesAfter(ctx context.Context, conversationID uuid.UUID, after *time.Time) (int, error)

	// FindDirect returns the DIRECT conversation containing both users, or
	// (nil, nil). FindBusiness is scoped to one listing and the requesting
	// user. Neither creates anything; lookup-or-create lives in the service.
	FindDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	FindBusiness(ctx context.Context, listingID, requesterID uuid.UUID) (*domain.Conversation, error)

	// Create persists a conversation, its participant rows, and the first
	// message as a single transaction.
	Create(ctx context.Context, conv *domain.Conversation, participants []*domain.ConversationParticipant, first *domain.InboxMessage) error
	// AppendMessage inserts a message and bumps the conversation's
	// updated_at in one transaction.
	AppendMessage(ctx context.Context, msg *domain.InboxMessage) error

	// Reactivate clears is_deleted/is_archived for the given users;
	// ReactivateOthers does so for every participant except one.
	Reactivate(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error
	ReactivateOthers(ctx context.Context, conversationID, exceptUserID uuid.UUID) error

	SetLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
	SetArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error
	SetDeleted(ctx context.Context, conversationID, userID uuid.UUID, deleted bool) error

	// ListSummaries returns the caller's inbox (non-deleted, non-archived),
	// most recently updated first, optionally filtered by type.
	ListSummaries(ctx context.Context, userID uuid.UUID, filter *domain.ConversationType) ([]*domain.ConversationSummary, error)
	ListOtherParticipantNames(ctx context.Context, conversationID, exceptUserID uuid.UUID) ([]string, error)
	// ListMessages returns the thread in creation order with sender names
	// resolved. IsCurrentUser is left for the caller to fill.
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.ThreadMessage, error)
}

type conversationRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewConversationRepository(db *pgxpool.Pool, log logger.Logger) ConversationRepository {
	return &conversationRepository{db: db, log: log}
}

func (r *conversationRepository) GetConversation(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT id, subject, type, business_listing_id, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	conv := &domain.Conversation{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.Subject, &conv.Type, &conv.BusinessListingID, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to get conversation", "error", err, "conversation_id", id)
		return nil, err
	}
	return conv, nil
}

func (r *conversationRepository) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (*domain.ConversationParticipant, error) {
	query := `
		SELECT id, conversation_id, user_id, last_read_at, is_archived, is_deleted
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2
	`

	p := &domain.ConversationParticipant{}
	err := r.db.QueryRow(ctx, query, conversationID, userID).Scan(
		&p.ID, &p.ConversationID, &p.UserID, &p.LastReadAt, &p.IsArchived, &p.IsDeleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to get participant", "error", err, "conversation_id", conversationID)
		return nil, err
	}
	return p, nil
}

func (r *conversationRepository) ListActiveParticipations(ctx context.Context, userID uuid.UUID) ([]*domain.ConversationParticipant, error) {
	query := `
		SELECT id, conversation_id, user_id, last_read_at, is_archived, is_deleted
		FROM conversation_participants
		WHERE user_id = $1 AND is_deleted = FALSE
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.log.Error("Failed to list participations", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var participations []*domain.ConversationParticipant
	for rows.Next() {
		p := &domain.ConversationParticipant{}
		if err := rows.Scan(&p.ID, &p.ConversationID, &p.UserID, &p.LastReadAt, &p.IsArchived, &p.IsDeleted); err != nil {
			return nil, err
		}
		participations = append(participations, p)
	}

	return participations, rows.Err()
}

func (r *conversationRepository) ListParticipantUserIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM conversation_participants WHERE conversation_id = $1`, conversationID)
	if err != nil {
		r.log.Error("Failed to list participant user IDs", "error", err)
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

func (r *conversationRepository) CountMessagesAfter(ctx context.Context, conversationID uuid.UUID, after *time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM inbox_messages WHERE conversation_id = $1`
	args := []any{conversationID}
	if after != nil {
		query += ` AND created_at > $2`
		args = append(args, *after)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count messages", "error", err, "conversation_id", conversationID)
		return 0, err
	}
	return count, nil
}

func (r *conversationRepository) findConversation(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&conv.ID, &conv.Subject, &conv.Type, &conv.BusinessListingID, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("Failed to find conversation", "error", err)
		return nil, err
	}
	return conv, nil
}

func (r *conversationRepository) FindDirect(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT c.id, c.subject, c.type, c.business_listing_id, c.created_at, c.updated_at
		FROM conversations c
		WHERE c.type = 'DIRECT'
		  AND EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = c.id AND user_id = $1)
		  AND EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = c.id AND user_id = $2)
		ORDER BY c.created_at
		LIMIT 1
	`
	return r.findConversation(ctx, query, userA, userB)
}

func (r *conversationRepository) FindBusiness(ctx context.Context, listingID, requesterID uuid.UUID) (*domain.Conversation, error) {
	query := `
		SELECT c.id, c.subject, c.type, c.business_listing_id, c.created_at, c.updated_at
		FROM conversations c
		WHERE c.type = 'BUSINESS'
		  AND c.business_listing_id = $1
		  AND EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = c.id AND user_id = $2)
		ORDER BY c.created_at
		LIMIT 1
	`
	return r.findConversation(ctx, query, listingID, requesterID)
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation, participants []*domain.ConversationParticipant, first *domain.InboxMessage) error {
	now := time.Now()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.CreatedAt = now
	conv.UpdatedAt = now

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (id, subject, type, business_listing_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, conv.ID, conv.Subject, conv.Type, conv.BusinessListingID, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to insert conversation", "error", err)
		return err
	}

	for _, p := range participants {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.ConversationID = conv.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (id, conversation_id, user_id, last_read_at, is_archived, is_deleted)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, p.ID, p.ConversationID, p.UserID, p.LastReadAt, p.IsArchived, p.IsDeleted)
		if err != nil {
			r.log.Error("Failed to insert participant", "error", err, "user_id", p.UserID)
			return err
		}
	}

	first.ConversationID = conv.ID
	if err := insertMessage(ctx, tx, first, now); err != nil {
		r.log.Error("Failed to insert first message", "error", err)
		return err
	}

	return tx.Commit(ctx)
}

func (r *conversationRepository) AppendMessage(ctx context.Context, msg *domain.InboxMessage) error {
	now := time.Now()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertMessage(ctx, tx, msg, now); err != nil {
		r.log.Error("Failed to insert message", "error", err, "conversation_id", msg.ConversationID)
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`, msg.ConversationID, now)
	if err != nil {
		r.log.Error("Failed to bump conversation", "error", err, "conversation_id", msg.ConversationID)
		return err
	}

	return tx.Commit(ctx)
}

func insertMessage(ctx context.Context, tx pgx.Tx, msg *domain.InboxMessage, now time.Time) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	var metadata []byte
	if msg.Metadata != nil {
		var err error
		metadata, err = json.Marshal(msg.Metadata)
		if err != nil {
			return err
		}
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO inbox_messages (id, conversation_id, sender_id, body, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Body, metadata, msg.CreatedAt)
	return err
}

func (r *conversationRepository) Reactivate(ctx context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx, `
		UPDATE conversation_participants
		SET is_deleted = FALSE, is_archived = FALSE
		WHERE conversation_id = $1 AND user_id = ANY($2)
	`, conversationID, userIDs)
	if err != nil {
		r.log.Error("Failed to reactivate participants", "error", err, "conversation_id", conversationID)
	}
	return err
}

func (r *conversationRepository) ReactivateOthers(ctx context.Context, conversationID, exceptUserID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversation_participants
		SET is_deleted = FALSE, is_archived = FALSE
		WHERE conversation_id = $1 AND user_id <> $2
	`, conversationID, exceptUserID)
	if err != nil {
		r.log.Error("Failed to reactivate other participants", "error", err, "conversation_id", conversationID)
	}
	return err
}

func (r *conversationRepository) SetLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversation_participants
		SET last_read_at = $3
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID, at)
	if err != nil {
		r.log.Error("Failed to set last read", "error", err, "conversation_id", conversationID)
	}
	return err
}

func (r *conversationRepository) SetArchived(ctx context.Context, conversationID, userID uuid.UUID, archived bool) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversation_participants
		SET is_archived = $3
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID, archived)
	if err != nil {
		r.log.Error("Failed to set archived flag", "error", err, "conversation_id", conversationID)
	}
	return err
}

func (r *conversationRepository) SetDeleted(ctx context.Context, conversationID, userID uuid.UUID, deleted bool) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversation_participants
		SET is_deleted = $3
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID, deleted)
	if err != nil {
		r.log.Error("Failed to set deleted flag", "error", err, "conversation_id", conversationID)
	}
	return err
}

func (r *conversationRepository) ListSummaries(ctx context.Context, userID uuid.UUID, filter *domain.ConversationType) ([]*domain.ConversationSummary, error) {
	query := `
		SELECT c.id, c.subject, c.type, p.last_read_at,
		       lm.body, lm.created_at, ls.first_name, ls.last_name, ls.email,
		       bl.name, pn.names, c.created_at
		FROM conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		LEFT JOIN LATERAL (
			SELECT m.body, m.created_at, m.sender_id
			FROM inbox_messages m
			WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN users ls ON ls.id = lm.sender_id
		LEFT JOIN business_listings bl ON bl.id = c.business_listing_id
		LEFT JOIN LATERAL (
			SELECT COALESCE(array_agg(
				COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.email)
			), '{}') AS names
			FROM conversation_participants cp
			JOIN users u ON u.id = cp.user_id
			WHERE cp.conversation_id = c.id AND cp.user_id <> p.user_id
		) pn ON TRUE
		WHERE p.user_id = $1 AND p.is_deleted = FALSE AND p.is_archived = FALSE
	`
	args := []any{userID}
	if filter != nil {
		query += ` AND c.type = $2`
		args = append(args, *filter)
	}
	query += ` ORDER BY c.updated_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list conversation summaries", "error", err, "user_id", userID)
		return nil, err
	}
	defer rows.Close()

	var summaries []*domain.ConversationSummary
	for rows.Next() {
		s := &domain.ConversationSummary{}
		var lastReadAt, lastMsgAt *time.Time
		var senderFirst, senderLast, senderEmail *string
		var convCreatedAt time.Time

		err := rows.Scan(
			&s.ID, &s.Subject, &s.Type, &lastReadAt,
			&s.LastMessageBody, &lastMsgAt, &senderFirst, &senderLast, &senderEmail,
			&s.BusinessListingName, &s.ParticipantNames, &convCreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan conversation summary", "error", err)
			return nil, err
		}

		if lastMsgAt != nil {
			s.LastMessageAt = *lastMsgAt
			s.Unread = lastReadAt == nil || lastMsgAt.After(*lastReadAt)
		} else {
			s.LastMessageAt = convCreatedAt
			s.Unread = lastReadAt == nil
		}
		s.LastMessageSenderName = summarySenderName(s.Type, senderFirst, senderLast, senderEmail)

		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// summarySenderName mirrors the thread rendering rule: a named sender when
// one exists, "System" for sender-less rows in SYSTEM threads, nil otherwise.
func summarySenderName(convType domain.ConversationType, first, last, email *string) *string {
	if email != nil {
		u := domain.User{Email: *email}
		if first != nil {
			u.FirstName = *first
		}
		if last != nil {
			u.LastName = *last
		}
		name := u.DisplayName()
		return &name
	}
	if convType == domain.ConversationSystem {
		name := "System"
		return &name
	}
	return nil
}

func (r *conversationRepository) ListOtherParticipantNames(ctx context.Context, conversationID, exceptUserID uuid.UUID) ([]string, error) {
	query := `
		SELECT COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.email)
		FROM conversation_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.conversation_id = $1 AND cp.user_id <> $2
	`

	rows, err := r.db.Query(ctx, query, conversationID, exceptUserID)
	if err != nil {
		r.log.Error("Failed to list participant names", "error", err)
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

func (r *conversationRepository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.ThreadMessage, error) {
	query := `
		SELECT m.id, m.sender_id, m.body, m.metadata, m.created_at,
		       u.first_name, u.last_name, u.email
		FROM inbox_messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		r.log.Error("Failed to list messages", "error", err, "conversation_id", conversationID)
		return nil, err
	}
	defer rows.Close()

	var messages []domain.ThreadMessage
	for rows.Next() {
		var msg domain.ThreadMessage
		var metadata []byte
		var first, last, email *string

		err := rows.Scan(&msg.ID, &msg.SenderID, &msg.Body, &metadata, &msg.CreatedAt, &first, &last, &email)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				r.log.Warn("Failed to decode message metadata", "error", err, "message_id", msg.ID)
			}
		}

		if email != nil {
			u := domain.User{Email: *email}
			if first != nil {
				u.FirstName = *first
			}
			if last != nil {
				u.LastName = *last
			}
			msg.SenderName = u.DisplayName()
		} else {
			msg.SenderName = "System"
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
