package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"community_inbox/pkg/logger"
)

// NotifyService is the thin bridge other subsystems call to drop system
// notifications into a member's inbox. Each helper is a canned
// subject/body/metadata over the messaging core's system-notification
// primitive.
type NotifyService interface {
	MemberApproved(ctx context.Context, userID uuid.UUID) error
	MemberRejected(ctx context.Context, userID uuid.UUID) error
	ListingApproved(ctx context.Context, userID uuid.UUID, listingName string, listingID uuid.UUID) error
	ListingRejected(ctx context.Context, userID uuid.UUID, listingName string) error
	IncidentInZone(ctx context.Context, userIDs []uuid.UUID, incidentType, location string) error
	NewBusinessMessage(ctx context.Context, ownerID uuid.UUID, senderName, listingName string, listingID uuid.UUID) error
}

type notifyService struct {
	messaging MessagingService
	log       logger.Logger
}

func NewNotifyService(messaging MessagingService, log logger.Logger) NotifyService {
	return &notifyService{messaging: messaging, log: log}
}

func (s *notifyService) MemberApproved(ctx context.Context, userID uuid.UUID) error {
	_, err := s.messaging.SendSystemNotification(ctx, userID,
		"Membership Approved",
		"Your membership has been approved! You now have full access to the neighbourhood watch platform. Welcome aboard.",
		map[string]string{"notificationType": "membership_approved", "actionUrl": "/dashboard"},
	)
	return err
}

func (s *notifyService) MemberRejected(ctx context.Context, userID uuid.UUID) error {
	_, err := s.messaging.SendSystemNotification(ctx, userID,
		"Membership Update",
		"Your membership application has been reviewed. Please contact us if you have questions.",
		map[string]string{"notificationType": "membership_rejected", "actionUrl": "/contact"},
	)
	return err
}

func (s *notifyService) ListingApproved(ctx context.Context, userID uuid.UUID, listingName string, listingID uuid.UUID) error {
	_, err := s.messaging.SendSystemNotification(ctx, userID,
		"Business Listing Approved",
		fmt.Sprintf("Your business listing %q has been approved and is now visible in the directory.", listingName),
		map[string]string{
			"notificationType": "listing_approved",
			"entityId":         listingID.String(),
			"actionUrl":        "/business/" + listingID.String(),
		},
	)
	return err
}

func (s *notifyService) ListingRejected(ctx context.Context, userID uuid.UUID, listingName string) error {
	_, err := s.messaging.SendSystemNotification(ctx, userID,
		"Business Listing Update",
		fmt.Sprintf("Your business listing %q was not approved. Please contact us for more information.", listingName),
		map[string]string{"notificationType": "listing_rejected", "actionUrl": "/contact"},
	)
	return err
}

// IncidentInZone fans one notification out to every member of the affected
// zone. Partial failure notifies whoever it can and reports the first error.
func (s *notifyService) IncidentInZone(ctx context.Context, userIDs []uuid.UUID, incidentType, location string) error {
	subject := fmt.Sprintf("Incident Alert: %s", incidentType)
	body := fmt.Sprintf(
		"A %s incident has been reported at %s. Stay alert and report any suspicious activity.",
		strings.ToLower(incidentType), location,
	)
	metadata := map[string]string{"notificationType": "incident_alert", "actionUrl": "/incidents"}

	var firstErr error
	for _, id := range userIDs {
		if _, err := s.messaging.SendSystemNotification(ctx, id, subject, body, metadata); err != nil {
			s.log.Error("Failed to notify member of incident", "error", err, "user_id", id)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *notifyService) NewBusinessMessage(ctx context.Context, ownerID uuid.UUID, senderName, listingName string, listingID uuid.UUID) error {
	_, err := s.messaging.SendSystemNotification(ctx, ownerID,
		fmt.Sprintf("New message about %s", listingName),
		fmt.Sprintf("%s sent you a message about your business listing %q. Check your inbox to reply.", senderName, listingName),
		map[string]string{
			"notificationType": "business_message",
			"entityId":         listingID.String(),
			"actionUrl":        "/account/inbox?filter=business",
		},
	)
	return err
}
