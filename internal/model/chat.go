package model

import "time"

// Chat is a two-party conversation. User1UID < User2UID always holds, so an
// unordered pair of users maps to exactly one row.
type Chat struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	User1UID  string    `gorm:"column:user1_uid;size:128;not null;uniqueIndex:uk_chats_pair" json:"user1"`
	User2UID  string    `gorm:"column:user2_uid;size:128;not null;uniqueIndex:uk_chats_pair;index" json:"user2"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Chat) TableName() string {
	return "chats"
}

// ChatPair returns the two uids in canonical order.
func ChatPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func (c Chat) HasParticipant(uid string) bool {
	return uid != "" && (c.User1UID == uid || c.User2UID == uid)
}

// Other returns the participant that is not uid.
func (c Chat) Other(uid string) string {
	if c.User1UID == uid {
		return c.User2UID
	}
	return c.User1UID
}
