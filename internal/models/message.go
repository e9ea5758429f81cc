package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	MessageTypeText       = "text"
	MessageTypeImage      = "image"
	MessageTypeAttachment = "attachment"
)

// Message lives in a channel addressed by the deterministic id derived
// from the two participants (internal/channel). Recalled messages keep
// their row but the body is never served again.
type Message struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	ChannelID  string         `json:"channel_id" gorm:"not null;index"`
	SenderID   uint           `json:"sender_id" gorm:"not null"`
	Content    string         `json:"content" gorm:"not null"`
	Type       string         `json:"type" gorm:"default:text"` // text, image, attachment
	IsRecalled bool           `json:"is_recalled" gorm:"default:false"`
	IsRead     bool           `json:"is_read" gorm:"default:false"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
	Sender     User           `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
}
