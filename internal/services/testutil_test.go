package services_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"heartlink/internal/database"
	"heartlink/internal/models"
)

// setupDB opens an isolated in-memory SQLite database and applies the
// full schema. Each test gets its own database, keyed by test name.
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// seedUser inserts a minimal active profile.
func seedUser(t *testing.T, db *gorm.DB, id uint, name string) models.User {
	t.Helper()

	user := models.User{
		ID:           id,
		Email:        fmt.Sprintf("%s@test.local", name),
		PasswordHash: "x",
		Name:         name,
		DateOfBirth:  time.Date(1995, 6, 15, 0, 0, 0, 0, time.UTC),
		Gender:       "other",
		IsActive:     true,
		IsVerified:   true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// seedMatch inserts a match row with a pinned creation time.
func seedMatch(t *testing.T, db *gorm.DB, a, b uint, createdAt time.Time) models.Match {
	t.Helper()

	u1, u2 := a, b
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	match := models.Match{User1ID: u1, User2ID: u2, IsActive: true, CreatedAt: createdAt, UpdatedAt: createdAt}
	require.NoError(t, db.Create(&match).Error)
	return match
}

// seedMessage inserts a message with a pinned creation time.
func seedMessage(t *testing.T, db *gorm.DB, channelID string, senderID uint, content string, createdAt time.Time, read bool) models.Message {
	t.Helper()

	msg := models.Message{
		ChannelID: channelID,
		SenderID:  senderID,
		Content:   content,
		Type:      models.MessageTypeText,
		IsRead:    read,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, db.Create(&msg).Error)
	return msg
}
