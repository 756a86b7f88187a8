package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"community_inbox/internal/config"
	"community_inbox/internal/domain"
	"community_inbox/internal/repository"
	apperrors "community_inbox/pkg/errors"
	"community_inbox/pkg/logger"
)

const (
	minDirectBodyLen   = 2
	minBusinessBodyLen = 10
	maxSearchResults   = 10
	minSearchQueryLen  = 2
)

// MessagingService is the inbox/conversation core: a unified model for
// direct messages, business inquiries, system notifications, and admin
// broadcasts, with read tracking, soft archive/delete, and conversation
// de-duplication via lookup-or-create.
//
// The lookup-or-create paths are not transactionally atomic against
// concurrent first-contact sends: two simultaneous senders can race between
// the search and the create and end up with two conversations. That matches
// the source behavior and is tolerated; duplicates are harmless threads,
// not corruption.
type MessagingService interface {
	GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
	GetConversations(ctx context.Context, caller *domain.User, filter *domain.ConversationType) ([]*domain.ConversationSummary, error)
	// GetConversationMessages returns (nil, nil) when the caller is not an
	// active participant; the thread's existence is not revealed. A
	// successful read marks the thread read for the caller.
	GetConversationMessages(ctx context.Context, caller *domain.User, conversationID uuid.UUID) (*domain.ConversationDetail, error)
	MarkConversationRead(ctx context.Context, caller *domain.User, conversationID uuid.UUID) error

	SendDirectMessage(ctx context.Context, caller *domain.User, recipientID uuid.UUID, subject, body string) (uuid.UUID, error)
	SendBusinessMessage(ctx context.Context, caller *domain.User, listingID uuid.UUID, body string) (uuid.UUID, error)
	ReplyToConversation(ctx context.Context, caller *domain.User, conversationID uuid.UUID, body string) error

	// SendSystemNotification is the trusted internal primitive used by other
	// subsystems. No length validation; a nil sender marks the message as
	// system-authored.
	SendSystemNotification(ctx context.Context, userID uuid.UUID, subject, body string, metadata map[string]string) (uuid.UUID, error)

	SendAdminBroadcast(ctx context.Context, caller *domain.User, subject, body string, target domain.BroadcastTarget) (*domain.BroadcastResult, error)
	GetBroadcastRecipientCount(ctx context.Context, target domain.BroadcastTarget) (int, error)

	ArchiveConversation(ctx context.Context, caller *domain.User, conversationID uuid.UUID) error
	DeleteConversation(ctx context.Context, caller *domain.User, conversationID uuid.UUID) error

	SearchUsers(ctx context.Context, caller *domain.User, query string) ([]*domain.UserSearchResult, error)
}

type messagingService struct {
	convRepo    repository.ConversationRepository
	userRepo    repository.UserRepository
	listingRepo repository.ListingRepository
	unreadCache repository.UnreadCacheRepository
	cfg         config.InboxConfig
	log         logger.Logger
}

func NewMessagingService(
	convRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	listingRepo repository.ListingRepository,
	unreadCache repository.UnreadCacheRepository,
	cfg config.InboxConfig,
	log logger.Logger,
) MessagingService {
	return &messagingService{
		convRepo:    convRepo,
		userRepo:    userRepo,
		listingRepo: listingRepo,
		unreadCache: unreadCache,
		cfg:         cfg,
		log:         log,
	}
}

// ── Unread count ─────────────────────────────────────────────────────────

// GetUnreadCount returns the number of conversations with at least one
// unread message, not the total unread message count. The badge is
// conversation-level on purpose.
func (s *messagingService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	if cached, ok, err := s.unreadCache.Get(ctx, userID); err == nil && ok {
		return cached, nil
	}

	participations, err := s.convRepo.ListActiveParticipations(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}

	count := 0
	for _, p := range participations {
		unread, err := s.convRepo.CountMessagesAfter(ctx, p.ConversationID, p.LastReadAt)
		if err != nil {
			return 0, apperrors.Internal(err)
		}
		if unread > 0 {
			count++
		}
	}

	if err := s.unreadCache.Set(ctx, userID, count, s.cfg.UnreadCacheTTL); err != nil {
		s.log.Debug("Unread cache write skipped", "error", err)
	}

	return count, nil
}

// invalidateUnread drops cached badge counts after a mutation. Best-effort.
func (s *messagingService) invalidateUnread(ctx context.Context, userIDs ...uuid.UUID) {
	if err := s.unreadCache.Invalidate(ctx, userIDs...); err != nil {
		s.log.Debug("Unread cache invalidation skipped", "error", err)
	}
}

// ── Inbox listing and thread view ────────────────────────────────────────

func (s *messagingService) GetConversations(ctx context.Context, caller *domain.User, filter *domain.ConversationType) ([]*domain.ConversationSummary, error) {
	if filter != nil && !filter.Valid() {
		return nil, apperrors.Validation("unknown conversation type filter")
	}

	summaries, err := s.convRepo.ListSummaries(ctx, caller.ID, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return summaries, nil
}

func (s *messagingService) GetConversationMessages(ctx context.Context, caller *domain.User, conversationID uuid.UUID) (*domain.ConversationDetail, error) {
	participant, err := s.convRepo.GetParticipant(ctx, conversationID, caller.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if participant == nil || participant.IsDeleted {
		return nil, nil
	}

	conv, err := s.convRepo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if conv == nil {
		return nil, nil
	}

	names, err := s.convRepo.ListOtherParticipantNames(ctx, conversationID, caller.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	messages, err := s.convRepo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	for i := range messages {
		messages[i].IsCurrentUser = messages[i].SenderID != nil && *messages[i].SenderID == caller.ID
	}

	detail := &domain.ConversationDetail{
		ID:                conv.ID,
		Subject:           conv.Subject,
		Type:              conv.Type,
		BusinessListingID: conv.BusinessListingID,
		ParticipantNames:  names,
		Messages:          messages,
	}

	if conv.BusinessListingID != nil {
		listing, err := s.listingRepo.GetByID(ctx, *conv.BusinessListingID)
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		if listing != nil {
			detail.BusinessListingName = &listing.Name
		}
	}

	// Reading the thread is what clears its unread state.
	if err := s.convRepo.SetLastRead(ctx, conversationID, caller.ID, time.Now()); err != nil {
		return nil, apperrors.Internal(err)
	}
	s.invalidateUnread(ctx, caller.ID)

	return detail, nil
}

func (s *messagingService) MarkConversationRead(ctx context.Context, caller *domain.User, conversationID uuid.UUID) error {
	if err := s.convRepo.SetLastRead(ctx, conversationID, caller.ID, time.Now()); err != nil {
		return apperrors.Internal(err)
	}
	s.invalidateUnread(ctx, caller.ID)
	return nil
}

// ── Direct messages ──────────────────────────────────────────────────────

func (s *messagingService) SendDirectMessage(ctx context.Context, caller *domain.User, recipientID uuid.UUID, subject, body string) (uuid.UUID, error) {
	body = strings.TrimSpace(body)
	subject = strings.TrimSpace(subject)

	if len(body) < minDirectBodyLen {
		return uuid.Nil, apperrors.Validation("Message is too short.")
	}
	if subject == "" {
		return uuid.Nil, apperrors.Validation("Subject is required.")
	}

	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		return uuid.Nil, apperrors.Internal(err)
	}
	if recipient == nil {
		return uuid.Nil, fmt.Errorf("%w: recipient not found", apperrors.ErrRecipientNotFound)
	}
	if recipient.ID == caller.ID {
		return uuid.Nil, apperrors.Validation("You cannot message yourself.")
	}

	existing, err := s.convRepo.FindDirect(ctx, caller.ID, recipient.ID)
	if err != nil {
		return uuid.Nil, apperrors.Internal(err)
	}

	if existing != nil {
		if err := s.appendAndReactivate(ctx, existing.ID, caller.ID, body, recipient.ID); err != nil {
			return uuid.Nil, err
		}
		s.invalidateUnread(ctx, caller.ID, recipient.ID)
		return existing.ID, nil
	}

	now := time.Now()
	conv := &domain.Conversation{Subject: &subject, Type: domain.ConversationDirect}
	participants := []*domain.ConversationParticipant{
		// The sender has implicitly read their own first message.
		{UserID: caller.ID, LastReadAt: &now},
		{UserID: recipient.ID},
	}
	senderID := caller.ID
	// Stamping the message with the sender's last-read time keeps their own
	// send from counting as unread.
	first := &domain.InboxMessage{SenderID: &senderID, Body: body, CreatedAt: now}

	if err := s.convRepo.Create(ctx, conv, participants, first); err != nil {
		s.log.Error("Failed to create direct conversation", "error", err)
		return uuid.Nil, apperrors.Internal(err)
	}

	s.invalidateUnread(ctx, caller.ID, recipient.ID)
	return conv.ID, nil
}

// appendAndReactivate adds a message to an existing thread and clears the
// target participants' archived/deleted flags so the thread resurfaces for
// them even if they had dismissed it.
func (s *messagingService) appendAndReactivate(ctx context.Context, conversationID, senderID uuid.UUID, body string, reactivate ...uuid.UUID) error {
	sender := senderID
	msg := &domain.InboxMessage{ConversationID: conversationID, SenderID: &sender, Body: body}
	if err := s.convRepo.AppendMessage(ctx, msg); err != nil {
		s.log.Error("Failed to append message", "error", err, "conversation_id", conversationID)
		return apperrors.Internal(err)
	}

	if err := s.convRepo.Reactivate(ctx, conversationID, reactivate...); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// ── Business inquiries ───────────────────────────────────────────────────

func (s *messagingService) SendBusinessMessage(ctx context.Context, caller *domain.User, listingID uuid.UUID, body string) (uuid.UUID, error) {
	body = strings.TrimSpace(body)
	// Business inquiries reach an owner cold, so they carry a higher bar.
	if len(body) < minBusinessBodyLen {
		return uuid.Nil, apperrors.Validation("Message must be at least 10 characters.")
	}

	listing, err := s.listingRepo.GetApprovedByID(ctx, listingID)
	if err != nil {
		return uuid.Nil, apperrors.Internal(err)
	}
	if listing == nil {
		return uuid.Nil, fmt.Errorf("%w: listing not found or not approved", apperrors.ErrListingNotFound)
	}
	if listing.CreatedByID == nil {
		return uuid.Nil, fmt.Errorf("%w: business owner not found", apperrors.ErrListingNotFound)
	}
	owner := *listing.CreatedByID

	// One conversation per (requester, listing), even when the same two
	// people also talk about a different listing.
	existing, err := s.convRepo.FindBusiness(ctx, listing.ID, caller.ID)
	if err != nil {
		return uuid.Nil, apperrors.Internal(err)
	}

	if existing != nil {
		if err := s.appendAndReactivate(ctx, existing.ID, caller.ID, body, owner); err != nil {
			return uuid.Nil, err
		}
		s.invalidateUnread(ctx, caller.ID, owner)
		return existing.ID, nil
	}

	now := time.Now()
	subject := fmt.Sprintf("Message about %s", listing.Name)
	conv := &domain.Conversation{
		Subject:           &subject,
		Type:              domain.ConversationBusiness,
		BusinessListingID: &listing.ID,
	}
	participants := []*domain.ConversationParticipant{
		{UserID: caller.ID, LastReadAt: &now},
		{UserID: owner},
	}
	senderID := caller.ID
	first := &domain.InboxMessage{SenderID: &senderID, Body: body, CreatedAt: now}

	if err := s.convRepo.Create(ctx, conv, participants, first); err != nil {
		s.log.Error("Failed to create business conversation", "error", err, "listing_id", listing.ID)
		return uuid.Nil, apperrors.Internal(err)
	}

	// Older directory screens still read the flat per-listing log.
	legacy := &domain.BusinessMessage{ListingID: listing.ID, SenderID: caller.ID, Body: body}
	if err := s.listingRepo.CreateMessage(ctx, legacy); err != nil {
		return uuid.Nil, apperrors.Internal(err)
	}

	s.invalidateUnread(ctx, caller.ID, owner)
	return conv.ID, nil
}

// ── Reply ────────────────────────────────────────────────────────────────

func (s *messagingService) ReplyToConversation(ctx context.Context, caller *domain.User, conversationID uuid.UUID, body string) error {
	body = strings.TrimSpace(body)
	if len(body) < minDirectBodyLen {
		return apperrors.Validation("Message is too short.")
	}

	participant, err := s.convRepo.GetParticipant(ctx, conversationID, caller.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	// Same error whether the thread is missing or the caller was removed
	// from it, so callers cannot probe for existence.
	if participant == nil || participant.IsDeleted {
		return fmt.Errorf("%w: conversation not found", apperrors.ErrConversationNotFound)
	}

	senderID := caller.ID
	msg := &domain.InboxMessage{ConversationID: conversationID, SenderID: &senderID, Body: body}
	if err := s.convRepo.AppendMessage(ctx, msg); err != nil {
		s.log.Error("Failed to append reply", "error", err, "conversation_id", conversationID)
		return apperrors.Internal(err)
	}

	if err := s.convRepo.SetLastRead(ctx, conversationID, caller.ID, time.Now()); err != nil {
		return apperrors.Internal(err)
	}

	// A reply must surface for everyone in the thread.
	if err := s.convRepo.ReactivateOthers(ctx, conversationID, caller.ID); err != nil {
		return apperrors.Internal(err)
	}

	if ids, err := s.convRepo.ListParticipantUserIDs(ctx, conversationID); err == nil {
		s.invalidateUnread(ctx, ids...)
	}

	return nil
}

// ── System notifications ─────────────────────────────────────────────────

func (s *messagingService) SendSystemNotification(ctx context.Context, userID uuid.UUID, subject, body string, metadata map[string]string) (uuid.UUID, error) {
	conv := &domain.Conversation{Subject: &subject, Type: domain.ConversationSystem}
	participants := []*domain.ConversationParticipant{{UserID: userID}}
	first := &domain.InboxMessage{Body: body, Metadata: metadata}

	if err := s.convRepo.Create(ctx, conv, participants, first); err != nil {
		s.log.Error("Failed to create system notification", "error", err, "user_id", userID)
		return uuid.Nil, apperrors.Internal(err)
	}

	s.invalidateUnread(ctx, userID)
	return conv.ID, nil
}

// ── Admin broadcast ──────────────────────────────────────────────────────

// SendAdminBroadcast requires the admin role flag, not a generic permission
// lookup; broadcast is privileged even among admin features.
func (s *messagingService) SendAdminBroadcast(ctx context.Context, caller *domain.User, subject, body string, target domain.BroadcastTarget) (*domain.BroadcastResult, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: admin access required", apperrors.ErrUnauthorized)
	}

	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" {
		return nil, apperrors.Validation("Subject is required.")
	}
	if body == "" {
		return nil, apperrors.Validation("Message body is required.")
	}
	if err := validateBroadcastTarget(target); err != nil {
		return nil, err
	}

	recipients, err := s.userRepo.ListBroadcastRecipients(ctx, target)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if len(recipients) == 0 {
		return nil, apperrors.Validation("No recipients match the selected criteria.")
	}

	now := time.Now()
	participants := make([]*domain.ConversationParticipant, 0, len(recipients)+1)
	senderIncluded := false
	for _, id := range recipients {
		p := &domain.ConversationParticipant{UserID: id}
		if id == caller.ID {
			p.LastReadAt = &now
			senderIncluded = true
		}
		participants = append(participants, p)
	}
	if !senderIncluded {
		participants = append(participants, &domain.ConversationParticipant{UserID: caller.ID, LastReadAt: &now})
	}

	conv := &domain.Conversation{Subject: &subject, Type: domain.ConversationAdminBroadcast}
	senderID := caller.ID
	first := &domain.InboxMessage{SenderID: &senderID, Body: body, CreatedAt: now}

	if err := s.convRepo.Create(ctx, conv, participants, first); err != nil {
		s.log.Error("Failed to create broadcast", "error", err, "recipients", len(recipients))
		return nil, apperrors.Internal(err)
	}

	s.log.Info("Admin broadcast sent", "conversation_id", conv.ID, "recipients", len(recipients), "target", target.Type)
	s.invalidateUnread(ctx, append(recipients, caller.ID)...)

	return &domain.BroadcastResult{ConversationID: conv.ID, RecipientCount: len(recipients)}, nil
}

// GetBroadcastRecipientCount runs the same targeting predicate as
// SendAdminBroadcast with no side effects, for preview before send.
func (s *messagingService) GetBroadcastRecipientCount(ctx context.Context, target domain.BroadcastTarget) (int, error) {
	if err := validateBroadcastTarget(target); err != nil {
		return 0, err
	}

	count, err := s.userRepo.CountBroadcastRecipients(ctx, target)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return count, nil
}

func validateBroadcastTarget(target domain.BroadcastTarget) error {
	switch target.Type {
	case domain.BroadcastTargetAll:
		return nil
	case domain.BroadcastTargetZone:
		if target.ZoneID == nil {
			return apperrors.Validation("Zone target requires a zone.")
		}
		return nil
	case domain.BroadcastTargetSection:
		if target.Section == nil || strings.TrimSpace(*target.Section) == "" {
			return apperrors.Validation("Section target requires a section.")
		}
		return nil
	default:
		return apperrors.Validation("Unknown broadcast target.")
	}
}

// ── Archive / delete ─────────────────────────────────────────────────────

func (s *messagingService) ArchiveConversation(ctx context.Context, caller *domain.User, conversationID uuid.UUID) error {
	participant, err := s.convRepo.GetParticipant(ctx, conversationID, caller.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if participant == nil {
		return fmt.Errorf("%w: conversation not found", apperrors.ErrConversationNotFound)
	}

	if err := s.convRepo.SetArchived(ctx, conversationID, caller.ID, true); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// DeleteConversation hides the thread for the caller only. The flag is
// reversible: a new incoming message reactivates the participant row.
func (s *messagingService) DeleteConversation(ctx context.Context, caller *domain.User, conversationID uuid.UUID) error {
	participant, err := s.convRepo.GetParticipant(ctx, conversationID, caller.ID)
	if err != nil {
		return apperrors.Internal(err)
	}
	if participant == nil {
		return fmt.Errorf("%w: conversation not found", apperrors.ErrConversationNotFound)
	}

	if err := s.convRepo.SetDeleted(ctx, conversationID, caller.ID, true); err != nil {
		return apperrors.Internal(err)
	}

	s.invalidateUnread(ctx, caller.ID)
	return nil
}

// ── Directory search ─────────────────────────────────────────────────────

func (s *messagingService) SearchUsers(ctx context.Context, caller *domain.User, query string) ([]*domain.UserSearchResult, error) {
	query = strings.TrimSpace(query)
	// Sub-2-character queries would scan most of the member table.
	if len(query) < minSearchQueryLen {
		return []*domain.UserSearchResult{}, nil
	}

	results, err := s.userRepo.Search(ctx, caller.ID, query, maxSearchResults)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if results == nil {
		results = []*domain.UserSearchResult{}
	}
	return results, nil
}
