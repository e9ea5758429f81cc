package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"heartlink/internal/channel"
	"heartlink/internal/models"
	"heartlink/internal/services"
)

func newMessageService(t *testing.T, db *gorm.DB) (*services.MessageService, *services.ChatService) {
	t.Helper()
	matches := services.NewMatchService(db, nil, nil)
	chat := services.NewChatService(db, nil, matches, time.Hour)
	return services.NewMessageService(db, chat, nil, nil), chat
}

func TestSendRequiresActiveMatch(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc, _ := newMessageService(t, db)

	seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "binh")
	ch := channel.DeriveUsers(1, 2)

	// No match yet.
	_, err := svc.Send(ctx, 1, ch, "hello", "")
	assert.ErrorIs(t, err, services.ErrChannelAccess)

	seedMatch(t, db, 1, 2, time.Now().UTC())
	msg, err := svc.Send(ctx, 1, ch, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.Equal(t, ch, msg.ChannelID)
	assert.Equal(t, uint(1), msg.SenderID)
}

func TestSendInvalidatesBothChatViews(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc, chat := newMessageService(t, db)

	seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "binh")
	seedMatch(t, db, 1, 2, time.Now().UTC().Add(-time.Hour))
	ch := channel.DeriveUsers(1, 2)

	// Warm both snapshots inside a long cooldown window.
	_, err := chat.ChatList(ctx, 1)
	require.NoError(t, err)
	_, err = chat.ChatList(ctx, 2)
	require.NoError(t, err)

	_, err = svc.Send(ctx, 1, ch, "xin chào", "")
	require.NoError(t, err)

	recipient, err := chat.ChatList(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), recipient.TotalUnread)
	assert.Equal(t, "xin chào", recipient.Entries[0].LastMessage)
	assert.False(t, recipient.Entries[0].LastMessageMine)

	sender, err := chat.ChatList(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sender.TotalUnread)
	assert.True(t, sender.Entries[0].LastMessageMine)
}

func TestHistoryMarksPartnerMessagesRead(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc, chat := newMessageService(t, db)

	seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "binh")
	seedMatch(t, db, 1, 2, time.Now().UTC().Add(-time.Hour))
	ch := channel.DeriveUsers(1, 2)
	seedMessage(t, db, ch, 2, "one", time.Now().UTC().Add(-2*time.Minute), false)
	seedMessage(t, db, ch, 2, "two", time.Now().UTC().Add(-time.Minute), false)

	messages, err := svc.History(ctx, 1, ch)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Content)

	var unread int64
	db.Model(&models.Message{}).Where("channel_id = ? AND is_read = ?", ch, false).Count(&unread)
	assert.Zero(t, unread)

	snap, err := chat.ChatList(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, snap.TotalUnread)

	// Outsiders get nothing.
	seedUser(t, db, 3, "outsider")
	_, err = svc.History(ctx, 3, ch)
	assert.ErrorIs(t, err, services.ErrChannelAccess)
}

func TestRecallIsSenderOnlyAndHidesBody(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc, _ := newMessageService(t, db)

	seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "binh")
	seedMatch(t, db, 1, 2, time.Now().UTC())
	ch := channel.DeriveUsers(1, 2)
	msg := seedMessage(t, db, ch, 1, "sent in haste", time.Now().UTC(), false)

	_, err := svc.Recall(ctx, 2, msg.ID)
	assert.ErrorIs(t, err, services.ErrNotSender)

	recalled, err := svc.Recall(ctx, 1, msg.ID)
	require.NoError(t, err)
	assert.True(t, recalled.IsRecalled)
	assert.Empty(t, recalled.Content)

	// History serves the recalled row with an empty body.
	messages, err := svc.History(ctx, 2, ch)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsRecalled)
	assert.Empty(t, messages[0].Content)

	// Recalling twice is harmless.
	_, err = svc.Recall(ctx, 1, msg.ID)
	require.NoError(t, err)
}
