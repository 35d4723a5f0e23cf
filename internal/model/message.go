package model

import "time"

type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID    uint64    `gorm:"column:chat_id;not null;index:idx_messages_chat_sent" json:"chatId"`
	SenderUID string    `gorm:"column:sender_uid;size:128;not null;index" json:"senderId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	SentAt    time.Time `gorm:"column:sent_at;not null;index:idx_messages_chat_sent" json:"timestamp"`
	Read      bool      `gorm:"column:is_read;not null;default:false" json:"read"`
}

func (Message) TableName() string {
	return "messages"
}
