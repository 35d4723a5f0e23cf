package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/leaselink-backend/internal/model"
	"gorm.io/gorm"
)

type ChatRepository interface {
	// FindOrCreate returns the chat between two users, creating it on first contact.
	// created reports whether this call inserted the row.
	FindOrCreate(ctx context.Context, uidA, uidB string) (chat *model.Chat, created bool, err error)
	FindByID(ctx context.Context, id uint64) (*model.Chat, error)
	FindByUser(ctx context.Context, uid string) ([]model.Chat, error)
	CreateMessage(ctx context.Context, msg *model.Message) error
	ListMessages(ctx context.Context, chatID uint64) ([]model.Message, error)
	LastMessages(ctx context.Context, chatIDs []uint64) (map[uint64]model.Message, error)
	UnreadCounts(ctx context.Context, chatIDs []uint64, readerUID string) (map[uint64]int64, error)
	MarkRead(ctx context.Context, chatID uint64, readerUID string) (int64, error)
}

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) FindOrCreate(ctx context.Context, uidA, uidB string) (*model.Chat, bool, error) {
	if r.db == nil {
		return nil, false, ErrDBNotReady
	}
	u1, u2 := model.ChatPair(uidA, uidB)
	var existing model.Chat
	err := r.db.WithContext(ctx).Where("user1_uid = ? AND user2_uid = ?", u1, u2).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	cv := model.Chat{User1UID: u1, User2UID: u2}
	if err := r.db.WithContext(ctx).Create(&cv).Error; err != nil {
		// lost a race against the other participant; the unique pair index kept one row
		if findErr := r.db.WithContext(ctx).Where("user1_uid = ? AND user2_uid = ?", u1, u2).First(&existing).Error; findErr == nil {
			return &existing, false, nil
		}
		return nil, false, err
	}
	return &cv, true, nil
}

func (r *chatRepository) FindByID(ctx context.Context, id uint64) (*model.Chat, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var cv model.Chat
	if err := r.db.WithContext(ctx).First(&cv, id).Error; err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *chatRepository) FindByUser(ctx context.Context, uid string) ([]model.Chat, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Chat
	if err := r.db.WithContext(ctx).
		Where("user1_uid = ? OR user2_uid = ?", uid, uid).
		Order("updated_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// CreateMessage inserts msg and bumps the chat's updated_at so chat lists sort by activity.
func (r *chatRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Chat{}).
			Where("id = ?", msg.ChatID).
			UpdateColumn("updated_at", msg.SentAt).Error
	})
}

func (r *chatRepository) ListMessages(ctx context.Context, chatID uint64) ([]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("sent_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *chatRepository) LastMessages(ctx context.Context, chatIDs []uint64) (map[uint64]model.Message, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]model.Message, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}
	// newest by (sent_at, id), the same key ListMessages orders by
	var msgs []model.Message
	if err := r.db.WithContext(ctx).
		Where("chat_id IN ?", chatIDs).
		Where(`NOT EXISTS (SELECT 1 FROM messages newer WHERE newer.chat_id = messages.chat_id
			AND (newer.sent_at > messages.sent_at OR (newer.sent_at = messages.sent_at AND newer.id > messages.id)))`).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ChatID] = m
	}
	return out, nil
}

func (r *chatRepository) UnreadCounts(ctx context.Context, chatIDs []uint64, readerUID string) (map[uint64]int64, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	out := make(map[uint64]int64, len(chatIDs))
	if len(chatIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ChatID uint64
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Select("chat_id, COUNT(*) AS count").
		Where("chat_id IN ? AND sender_uid <> ? AND is_read = ?", chatIDs, readerUID, false).
		Group("chat_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ChatID] = row.Count
	}
	return out, nil
}

// MarkRead flags every message the other participant sent in chatID as read.
func (r *chatRepository) MarkRead(ctx context.Context, chatID uint64, readerUID string) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("chat_id = ? AND sender_uid <> ? AND is_read = ?", chatID, readerUID, false).
		UpdateColumn("is_read", true)
	return res.RowsAffected, res.Error
}
