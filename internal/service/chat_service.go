package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"github.com/shinyyama/leaselink-backend/internal/reqctx"
	"github.com/shinyyama/leaselink-backend/internal/repository"
)

const maxMessageLen = 2000

// MessagePublisher pushes a stored message to the chat's live subscribers.
type MessagePublisher interface {
	Publish(msg model.Message)
}

type ChatSummary struct {
	Chat        model.Chat
	Other       model.Profile
	LastMessage *model.Message
	Unread      int64
}

type ChatService interface {
	// ContactLister opens (or reuses) the chat between uid and the listing's owner.
	ContactLister(ctx context.Context, uid string, listingID uint64) (chat *model.Chat, created bool, err error)
	List(ctx context.Context, uid string) ([]ChatSummary, error)
	Get(ctx context.Context, uid string, chatID uint64) (*ChatSummary, error)
	Messages(ctx context.Context, uid string, chatID uint64) ([]model.Message, error)
	Send(ctx context.Context, uid string, chatID uint64, content string) (*model.Message, error)
	MarkRead(ctx context.Context, uid string, chatID uint64) (int64, error)
	// Authorize returns the chat when uid participates in it.
	Authorize(ctx context.Context, uid string, chatID uint64) (*model.Chat, error)
}

type chatService struct {
	chats     repository.ChatRepository
	listings  repository.ListingRepository
	profiles  repository.ProfileRepository
	notifier  NotificationService
	publisher MessagePublisher
}

// NewChatService wires the chat use cases. notifier and publisher may be nil.
func NewChatService(
	chats repository.ChatRepository,
	listings repository.ListingRepository,
	profiles repository.ProfileRepository,
	notifier NotificationService,
	publisher MessagePublisher,
) ChatService {
	return &chatService{chats: chats, listings: listings, profiles: profiles, notifier: notifier, publisher: publisher}
}

func (s *chatService) ContactLister(ctx context.Context, uid string, listingID uint64) (*model.Chat, bool, error) {
	if uid == "" {
		return nil, false, ErrForbidden
	}
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, false, mapNotFound(err)
	}
	if listing.OwnerUID == "" {
		return nil, false, ErrNotFound
	}
	if listing.OwnerUID == uid {
		return nil, false, ErrSelfChat
	}
	chat, created, err := s.chats.FindOrCreate(ctx, uid, listing.OwnerUID)
	if err != nil {
		return nil, false, err
	}
	if created {
		log.Printf("[chat] rid=%s created chat=%d listing=%d", reqctx.RID(ctx), chat.ID, listingID)
		if s.notifier != nil {
			s.notifier.Notify(ctx, listing.OwnerUID, model.NotificationNewChat,
				"New inquiry", fmt.Sprintf("Someone is interested in %q", listing.Title),
				uint64Ptr(listingID), uint64Ptr(chat.ID))
		}
	}
	return chat, created, nil
}

func (s *chatService) Authorize(ctx context.Context, uid string, chatID uint64) (*model.Chat, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !chat.HasParticipant(uid) {
		return nil, ErrForbidden
	}
	return chat, nil
}

func (s *chatService) List(ctx context.Context, uid string) ([]ChatSummary, error) {
	if uid == "" {
		return nil, ErrForbidden
	}
	chats, err := s.chats.FindByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, uid, chats)
}

func (s *chatService) Get(ctx context.Context, uid string, chatID uint64) (*ChatSummary, error) {
	chat, err := s.Authorize(ctx, uid, chatID)
	if err != nil {
		return nil, err
	}
	out, err := s.summarize(ctx, uid, []model.Chat{*chat})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *chatService) summarize(ctx context.Context, uid string, chats []model.Chat) ([]ChatSummary, error) {
	ids := make([]uint64, 0, len(chats))
	others := make([]string, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
		others = append(others, c.Other(uid))
	}
	last, err := s.chats.LastMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	unread, err := s.chats.UnreadCounts(ctx, ids, uid)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles.FindByUIDs(ctx, others)
	if err != nil {
		return nil, err
	}
	out := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		other := c.Other(uid)
		sum := ChatSummary{Chat: c, Unread: unread[c.ID]}
		if p, ok := profiles[other]; ok {
			sum.Other = p
		} else {
			sum.Other = model.Profile{UID: other}
		}
		if m, ok := last[c.ID]; ok {
			m := m
			sum.LastMessage = &m
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *chatService) Messages(ctx context.Context, uid string, chatID uint64) ([]model.Message, error) {
	if _, err := s.Authorize(ctx, uid, chatID); err != nil {
		return nil, err
	}
	return s.chats.ListMessages(ctx, chatID)
}

func (s *chatService) Send(ctx context.Context, uid string, chatID uint64, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalidf("content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLen {
		return nil, invalidf("content exceeds %d characters", maxMessageLen)
	}
	chat, err := s.Authorize(ctx, uid, chatID)
	if err != nil {
		return nil, err
	}
	msg := &model.Message{ChatID: chatID, SenderUID: uid, Content: content}
	if err := s.chats.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.publisher.Publish(*msg)
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, chat.Other(uid), model.NotificationNewMessage,
			"New message", preview(content), nil, uint64Ptr(chatID))
	}
	return msg, nil
}

func (s *chatService) MarkRead(ctx context.Context, uid string, chatID uint64) (int64, error) {
	if _, err := s.Authorize(ctx, uid, chatID); err != nil {
		return 0, err
	}
	n, err := s.chats.MarkRead(ctx, chatID, uid)
	if err != nil {
		return 0, err
	}
	if s.notifier != nil {
		if err := s.notifier.MarkByChat(ctx, uid, chatID); err != nil {
			log.Printf("[chat] mark notifications failed chat=%d uid=%s err=%v", chatID, uid, err)
		}
	}
	return n, nil
}

func preview(s string) string {
	const max = 80
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
