package service

import (
	"context"
	"log"
	"time"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/repository"
)

type NotificationService interface {
	Notify(ctx context.Context, userUID, typ, title, body string, listingID, chatID *uint64)
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userUID string) error
	MarkByChat(ctx context.Context, userUID string, chatID uint64) error
}

type notificationService struct {
	repo repository.NotificationRepository
}

func NewNotificationService(repo repository.NotificationRepository) NotificationService {
	return &notificationService{repo: repo}
}

// Notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *notificationService) Notify(ctx context.Context, userUID, typ, title, body string, listingID, chatID *uint64) {
	if s == nil || userUID == "" || typ == "" {
		return
	}
	ctx, cancel := withShortDeadline(ctx)
	defer cancel()
	n := &model.Notification{
		UserUID:   userUID,
		Type:      typ,
		Title:     title,
		Body:      body,
		ListingID: listingID,
		ChatID:    chatID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.Printf("[notify] create failed uid=%s type=%s err=%v", userUID, typ, err)
	}
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userUID)
}

func (s *notificationService) MarkByChat(ctx context.Context, userUID string, chatID uint64) error {
	if userUID == "" || chatID == 0 {
		return nil
	}
	return s.repo.MarkByChat(ctx, userUID, chatID)
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

// withShortDeadline bounds side work so it cannot stall the request that triggered it.
func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Second)
}
