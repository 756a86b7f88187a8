package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"community_inbox/internal/config"
	"community_inbox/internal/domain"
	"community_inbox/internal/repository"
	"community_inbox/pkg/logger"
)

// fakeStore is an in-memory stand-in for the postgres/redis repositories,
// implementing the same contracts the service layer depends on.
type fakeStore struct {
	users    map[uuid.UUID]*domain.User
	listings map[uuid.UUID]*domain.BusinessListing
	legacy   []*domain.BusinessMessage

	convs     map[uuid.UUID]*domain.Conversation
	parts     map[uuid.UUID][]*domain.ConversationParticipant
	msgs      map[uuid.UUID][]*domain.InboxMessage
	convOrder []uuid.UUID

	cache map[uuid.UUID]int

	// missNextFind makes the next FindDirect/FindBusiness report no match,
	// simulating the window where a concurrent sender has created the
	// conversation but this caller's search ran before it.
	missNextFind bool
	// failCreates makes that many subsequent Create calls fail.
	failCreates int
}

// fakeListings exposes the store's listings under the listing repository
// contract; its GetByID would otherwise collide with the user repository's.
type fakeListings struct {
	s *fakeStore
}

var (
	_ repository.ConversationRepository = (*fakeStore)(nil)
	_ repository.UserRepository         = (*fakeStore)(nil)
	_ repository.ListingRepository      = fakeListings{}
	_ repository.UnreadCacheRepository  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[uuid.UUID]*domain.User),
		listings: make(map[uuid.UUID]*domain.BusinessListing),
		convs:    make(map[uuid.UUID]*domain.Conversation),
		parts:    make(map[uuid.UUID][]*domain.ConversationParticipant),
		msgs:     make(map[uuid.UUID][]*domain.InboxMessage),
		cache:    make(map[uuid.UUID]int),
	}
}

func newTestService(store *fakeStore) MessagingService {
	cfg := config.InboxConfig{UnreadCacheTTL: time.Minute}
	return NewMessagingService(store, store, fakeListings{s: store}, store, cfg, logger.NewNop())
}

func (s *fakeStore) addUser(first, last, email string, approved bool) *domain.User {
	u := &domain.User{
		ID:         uuid.New(),
		AuthID:     "auth_" + email,
		Email:      email,
		FirstName:  first,
		LastName:   last,
		Role:       domain.RoleMember,
		IsApproved: approved,
		CreatedAt:  time.Now(),
	}
	s.users[u.ID] = u
	return u
}

func (s *fakeStore) addListing(name string, status string, owner *domain.User) *domain.BusinessListing {
	l := &domain.BusinessListing{ID: uuid.New(), Name: name, Status: status}
	if owner != nil {
		l.CreatedByID = &owner.ID
	}
	s.listings[l.ID] = l
	return l
}

// ── ConversationRepository ───────────────────────────────────────────────

func (s *fakeStore) GetConversation(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	return s.convs[id], nil
}

func (s *fakeStore) GetParticipant(_ context.Context, conversationID, userID uuid.UUID) (*domain.ConversationParticipant, error) {
	for _, p := range s.parts[conversationID] {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListActiveParticipations(_ context.Context, userID uuid.UUID) ([]*domain.ConversationParticipant, error) {
	var out []*domain.ConversationParticipant
	for _, convID := range s.convOrder {
		for _, p := range s.parts[convID] {
			if p.UserID == userID && !p.IsDeleted {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ListParticipantUserIDs(_ context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, p := range s.parts[conversationID] {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (s *fakeStore) CountMessagesAfter(_ context.Context, conversationID uuid.UUID, after *time.Time) (int, error) {
	count := 0
	for _, m := range s.msgs[conversationID] {
		if after == nil || m.CreatedAt.After(*after) {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) FindDirect(_ context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	if s.missNextFind {
		s.missNextFind = false
		return nil, nil
	}
	for _, convID := range s.convOrder {
		conv := s.convs[convID]
		if conv.Type != domain.ConversationDirect {
			continue
		}
		if s.hasParticipant(convID, userA) && s.hasParticipant(convID, userB) {
			return conv, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindBusiness(_ context.Context, listingID, requesterID uuid.UUID) (*domain.Conversation, error) {
	if s.missNextFind {
		s.missNextFind = false
		return nil, nil
	}
	for _, convID := range s.convOrder {
		conv := s.convs[convID]
		if conv.Type != domain.ConversationBusiness || conv.BusinessListingID == nil || *conv.BusinessListingID != listingID {
			continue
		}
		if s.hasParticipant(convID, requesterID) {
			return conv, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) hasParticipant(conversationID, userID uuid.UUID) bool {
	for _, p := range s.parts[conversationID] {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

func (s *fakeStore) Create(_ context.Context, conv *domain.Conversation, participants []*domain.ConversationParticipant, first *domain.InboxMessage) error {
	if s.failCreates > 0 {
		s.failCreates--
		return errors.New("storage unavailable")
	}
	now := time.Now()
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}
	conv.CreatedAt = now
	conv.UpdatedAt = now
	s.convs[conv.ID] = conv
	s.convOrder = append(s.convOrder, conv.ID)

	for _, p := range participants {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		p.ConversationID = conv.ID
		s.parts[conv.ID] = append(s.parts[conv.ID], p)
	}

	first.ConversationID = conv.ID
	s.insertMessage(first, now)
	return nil
}

func (s *fakeStore) AppendMessage(_ context.Context, msg *domain.InboxMessage) error {
	now := time.Now()
	s.insertMessage(msg, now)
	s.convs[msg.ConversationID].UpdatedAt = now
	return nil
}

func (s *fakeStore) insertMessage(msg *domain.InboxMessage, now time.Time) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	s.msgs[msg.ConversationID] = append(s.msgs[msg.ConversationID], msg)
}

func (s *fakeStore) Reactivate(_ context.Context, conversationID uuid.UUID, userIDs ...uuid.UUID) error {
	for _, p := range s.parts[conversationID] {
		for _, id := range userIDs {
			if p.UserID == id {
				p.IsDeleted = false
				p.IsArchived = false
			}
		}
	}
	return nil
}

func (s *fakeStore) ReactivateOthers(_ context.Context, conversationID, exceptUserID uuid.UUID) error {
	for _, p := range s.parts[conversationID] {
		if p.UserID != exceptUserID {
			p.IsDeleted = false
			p.IsArchived = false
		}
	}
	return nil
}

func (s *fakeStore) SetLastRead(_ context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	for _, p := range s.parts[conversationID] {
		if p.UserID == userID {
			t := at
			p.LastReadAt = &t
		}
	}
	return nil
}

func (s *fakeStore) SetArchived(_ context.Context, conversationID, userID uuid.UUID, archived bool) error {
	for _, p := range s.parts[conversationID] {
		if p.UserID == userID {
			p.IsArchived = archived
		}
	}
	return nil
}

func (s *fakeStore) SetDeleted(_ context.Context, conversationID, userID uuid.UUID, deleted bool) error {
	for _, p := range s.parts[conversationID] {
		if p.UserID == userID {
			p.IsDeleted = deleted
		}
	}
	return nil
}

func (s *fakeStore) ListSummaries(_ context.Context, userID uuid.UUID, filter *domain.ConversationType) ([]*domain.ConversationSummary, error) {
	var summaries []*domain.ConversationSummary
	for _, convID := range s.convOrder {
		conv := s.convs[convID]
		if filter != nil && conv.Type != *filter {
			continue
		}

		var participant *domain.ConversationParticipant
		for _, p := range s.parts[convID] {
			if p.UserID == userID {
				participant = p
				break
			}
		}
		if participant == nil || participant.IsDeleted || participant.IsArchived {
			continue
		}

		summary := &domain.ConversationSummary{
			ID:      conv.ID,
			Subject: conv.Subject,
			Type:    conv.Type,
		}

		msgs := s.msgs[convID]
		if len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			summary.LastMessageBody = &last.Body
			summary.LastMessageAt = last.CreatedAt
			summary.Unread = participant.LastReadAt == nil || last.CreatedAt.After(*participant.LastReadAt)
			if last.SenderID != nil {
				name := s.users[*last.SenderID].DisplayName()
				summary.LastMessageSenderName = &name
			} else if conv.Type == domain.ConversationSystem {
				name := "System"
				summary.LastMessageSenderName = &name
			}
		} else {
			summary.LastMessageAt = conv.CreatedAt
			summary.Unread = participant.LastReadAt == nil
		}

		if conv.BusinessListingID != nil {
			if listing := s.listings[*conv.BusinessListingID]; listing != nil {
				summary.BusinessListingName = &listing.Name
			}
		}

		for _, p := range s.parts[convID] {
			if p.UserID != userID {
				summary.ParticipantNames = append(summary.ParticipantNames, s.users[p.UserID].DisplayName())
			}
		}

		summaries = append(summaries, summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return s.convs[summaries[i].ID].UpdatedAt.After(s.convs[summaries[j].ID].UpdatedAt)
	})

	return summaries, nil
}

func (s *fakeStore) ListOtherParticipantNames(_ context.Context, conversationID, exceptUserID uuid.UUID) ([]string, error) {
	var names []string
	for _, p := range s.parts[conversationID] {
		if p.UserID != exceptUserID {
			names = append(names, s.users[p.UserID].DisplayName())
		}
	}
	return names, nil
}

func (s *fakeStore) ListMessages(_ context.Context, conversationID uuid.UUID) ([]domain.ThreadMessage, error) {
	var out []domain.ThreadMessage
	for _, m := range s.msgs[conversationID] {
		tm := domain.ThreadMessage{
			ID:        m.ID,
			Body:      m.Body,
			SenderID:  m.SenderID,
			Metadata:  m.Metadata,
			CreatedAt: m.CreatedAt,
		}
		if m.SenderID != nil {
			tm.SenderName = s.users[*m.SenderID].DisplayName()
		} else {
			tm.SenderName = "System"
		}
		out = append(out, tm)
	}
	return out, nil
}

// ── UserRepository ───────────────────────────────────────────────────────

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users[id], nil
}

func (s *fakeStore) GetByAuthID(_ context.Context, authID string) (*domain.User, error) {
	for _, u := range s.users {
		if u.AuthID == authID {
			return u, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Search(_ context.Context, excludeID uuid.UUID, query string, limit int) ([]*domain.UserSearchResult, error) {
	q := strings.ToLower(query)
	var matches []*domain.User
	for _, u := range s.users {
		if !u.IsApproved || u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.FirstName), q) ||
			strings.Contains(strings.ToLower(u.LastName), q) ||
			strings.Contains(strings.ToLower(u.Email), q) {
			matches = append(matches, u)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].LastName != matches[j].LastName {
			return matches[i].LastName < matches[j].LastName
		}
		return matches[i].FirstName < matches[j].FirstName
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]*domain.UserSearchResult, 0, len(matches))
	for _, u := range matches {
		results = append(results, &domain.UserSearchResult{ID: u.ID, Name: u.DisplayName(), Email: u.Email})
	}
	return results, nil
}

func (s *fakeStore) matchesTarget(u *domain.User, target domain.BroadcastTarget) bool {
	if !u.IsApproved {
		return false
	}
	switch target.Type {
	case domain.BroadcastTargetZone:
		return u.ZoneID != nil && target.ZoneID != nil && *u.ZoneID == *target.ZoneID
	case domain.BroadcastTargetSection:
		return u.Section != nil && target.Section != nil && *u.Section == *target.Section
	default:
		return true
	}
}

func (s *fakeStore) ListBroadcastRecipients(_ context.Context, target domain.BroadcastTarget) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, u := range s.users {
		if s.matchesTarget(u, target) {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func (s *fakeStore) CountBroadcastRecipients(ctx context.Context, target domain.BroadcastTarget) (int, error) {
	ids, err := s.ListBroadcastRecipients(ctx, target)
	return len(ids), err
}

// ── ListingRepository ────────────────────────────────────────────────────

func (f fakeListings) GetByID(_ context.Context, id uuid.UUID) (*domain.BusinessListing, error) {
	return f.s.listings[id], nil
}

func (f fakeListings) GetApprovedByID(_ context.Context, id uuid.UUID) (*domain.BusinessListing, error) {
	l := f.s.listings[id]
	if l == nil || l.Status != domain.ListingStatusApproved {
		return nil, nil
	}
	return l, nil
}

func (f fakeListings) CreateMessage(_ context.Context, msg *domain.BusinessMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	f.s.legacy = append(f.s.legacy, msg)
	return nil
}

// ── UnreadCacheRepository ────────────────────────────────────────────────

func (s *fakeStore) Get(_ context.Context, userID uuid.UUID) (int, bool, error) {
	count, ok := s.cache[userID]
	return count, ok, nil
}

func (s *fakeStore) Set(_ context.Context, userID uuid.UUID, count int, _ time.Duration) error {
	s.cache[userID] = count
	return nil
}

func (s *fakeStore) Invalidate(_ context.Context, userIDs ...uuid.UUID) error {
	for _, id := range userIDs {
		delete(s.cache, id)
	}
	return nil
}
