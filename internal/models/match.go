package models

import (
	"time"

	"gorm.io/gorm"
)

// Match is an unordered pair of users. Rows are normalized so that
// User1ID < User2ID, which lets the unique pair index reject a second
// match for the same couple no matter which side liked last.
type Match struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	User1ID   uint           `json:"user1_id" gorm:"not null;uniqueIndex:idx_match_pair"`
	User2ID   uint           `json:"user2_id" gorm:"not null;uniqueIndex:idx_match_pair"`
	IsActive  bool           `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	User1     User           `json:"user1,omitempty" gorm:"foreignKey:User1ID"`
	User2     User           `json:"user2,omitempty" gorm:"foreignKey:User2ID"`
}

// Partner returns the other side of the pair as seen by userID.
func (m *Match) Partner(userID uint) User {
	if m.User1ID == userID {
		return m.User2
	}
	return m.User1
}

// Like is a directed edge. Duplicate likes are idempotent, enforced by
// the unique pair index and treated as success by the service layer.
type Like struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	LikerID   uint      `json:"liker_id" gorm:"not null;uniqueIndex:idx_like_pair"`
	LikedID   uint      `json:"liked_id" gorm:"not null;uniqueIndex:idx_like_pair"`
	CreatedAt time.Time `json:"created_at"`
	Liker     User      `json:"liker,omitempty" gorm:"foreignKey:LikerID"`
	Liked     User      `json:"liked,omitempty" gorm:"foreignKey:LikedID"`
}

type Pass struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PasserID  uint      `json:"passer_id" gorm:"not null;uniqueIndex:idx_pass_pair"`
	PassedID  uint      `json:"passed_id" gorm:"not null;uniqueIndex:idx_pass_pair"`
	CreatedAt time.Time `json:"created_at"`
	Passer    User      `json:"passer,omitempty" gorm:"foreignKey:PasserID"`
	Passed    User      `json:"passed,omitempty" gorm:"foreignKey:PassedID"`
}
