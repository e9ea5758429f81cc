package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"heartlink/internal/channel"
	"heartlink/internal/models"
	redisc "heartlink/internal/redis"
	"heartlink/internal/services"
)

func newChatService(t *testing.T, db *gorm.DB, cooldown time.Duration) *services.ChatService {
	t.Helper()
	matches := services.NewMatchService(db, nil, nil)
	return services.NewChatService(db, nil, matches, cooldown)
}

func TestChatListPlaceholdersAndMatchRecencyOrder(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newChatService(t, db, 0)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "p1")
	seedUser(t, db, 3, "p2")

	// P1 matched at 10:00, P2 at 09:00; neither has messages.
	seedMatch(t, db, me.ID, 2, time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC))
	seedMatch(t, db, me.ID, 3, time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC))

	snap, err := svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)

	assert.Equal(t, uint(2), snap.Entries[0].Partner.ID)
	assert.Equal(t, uint(3), snap.Entries[1].Partner.ID)
	for _, entry := range snap.Entries {
		assert.Equal(t, "Bắt đầu cuộc trò chuyện của bạn!", entry.LastMessage)
		assert.Zero(t, entry.UnreadCount)
	}
	assert.Zero(t, snap.TotalUnread)
}

func TestChatListTotalEqualsSumOfUnreadMap(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newChatService(t, db, 0)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "p1")
	seedUser(t, db, 3, "p2")
	seedMatch(t, db, me.ID, 2, time.Now().UTC().Add(-time.Hour))
	seedMatch(t, db, me.ID, 3, time.Now().UTC().Add(-time.Hour))

	ch1 := channel.DeriveUsers(me.ID, 2)
	ch2 := channel.DeriveUsers(me.ID, 3)
	base := time.Now().UTC().Add(-30 * time.Minute)
	seedMessage(t, db, ch1, 2, "hello", base, false)
	seedMessage(t, db, ch1, 2, "are you there?", base.Add(time.Minute), false)
	seedMessage(t, db, ch2, 3, "hi", base.Add(2*time.Minute), false)
	seedMessage(t, db, ch2, me.ID, "my own message", base.Add(3*time.Minute), false)

	snap, err := svc.ChatList(ctx, me.ID)
	require.NoError(t, err)

	var sum int64
	for _, n := range snap.Unread {
		sum += n
	}
	assert.Equal(t, sum, snap.TotalUnread)
	assert.Equal(t, int64(2), snap.Unread[ch1])
	// Own messages never count as unread.
	assert.Equal(t, int64(1), snap.Unread[ch2])
	assert.Equal(t, int64(3), snap.TotalUnread)

	// ch2 has the most recent activity, it sorts first; the entry also
	// records that the latest message was mine.
	assert.Equal(t, ch2, snap.Entries[0].ChannelID)
	assert.True(t, snap.Entries[0].LastMessageMine)
	assert.Equal(t, "my own message", snap.Entries[0].LastMessage)
}

func TestChatListPreviewPlaceholders(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newChatService(t, db, 0)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "p1")
	seedUser(t, db, 3, "p2")
	seedMatch(t, db, me.ID, 2, time.Now().UTC().Add(-time.Hour))
	seedMatch(t, db, me.ID, 3, time.Now().UTC().Add(-time.Hour))

	ch1 := channel.DeriveUsers(me.ID, 2)
	ch2 := channel.DeriveUsers(me.ID, 3)

	attachment := seedMessage(t, db, ch1, 2, "photo.jpg", time.Now().UTC().Add(-2*time.Minute), false)
	attachment.Type = models.MessageTypeAttachment
	require.NoError(t, db.Save(&attachment).Error)

	recalled := seedMessage(t, db, ch2, 3, "oops", time.Now().UTC().Add(-time.Minute), false)
	recalled.IsRecalled = true
	require.NoError(t, db.Save(&recalled).Error)

	snap, err := svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)

	byChannel := map[string]services.ChatEntry{}
	for _, e := range snap.Entries {
		byChannel[e.ChannelID] = e
	}
	assert.Equal(t, services.PlaceholderAttachment, byChannel[ch1].LastMessage)
	assert.Equal(t, services.PlaceholderRecalled, byChannel[ch2].LastMessage)
	// Recalled messages no longer count toward unread.
	assert.Equal(t, int64(0), snap.Unread[ch2])
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newChatService(t, db, time.Hour)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "p1")
	seedMatch(t, db, me.ID, 2, time.Now().UTC().Add(-time.Hour))
	ch := channel.DeriveUsers(me.ID, 2)
	seedMessage(t, db, ch, 2, "one", time.Now().UTC().Add(-time.Minute), false)
	seedMessage(t, db, ch, 2, "two", time.Now().UTC(), false)

	snap, err := svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), snap.TotalUnread)

	require.NoError(t, svc.MarkAsRead(ctx, me.ID, ch))

	// The cached snapshot was folded in place, no full refresh needed.
	snap, err = svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Unread[ch])
	assert.Equal(t, int64(0), snap.TotalUnread)
	assert.Equal(t, int64(0), snap.Entries[0].UnreadCount)

	// Second call: still zero, never negative.
	require.NoError(t, svc.MarkAsRead(ctx, me.ID, ch))
	snap, err = svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.TotalUnread)
}

func TestMarkAsReadLeavesServedSnapshotsFrozen(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newChatService(t, db, time.Hour)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "p1")
	seedMatch(t, db, me.ID, 2, time.Now().UTC().Add(-time.Hour))
	ch := channel.DeriveUsers(me.ID, 2)
	seedMessage(t, db, ch, 2, "one", time.Now().UTC().Add(-time.Minute), false)
	seedMessage(t, db, ch, 2, "two", time.Now().UTC(), false)

	served, err := svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), served.TotalUnread)

	require.NoError(t, svc.MarkAsRead(ctx, me.ID, ch))

	// A handler may still be serializing the earlier snapshot; the fold
	// must not change it underfoot.
	assert.Equal(t, int64(2), served.TotalUnread)
	assert.Equal(t, int64(2), served.Unread[ch])
	assert.Equal(t, int64(2), served.Entries[0].UnreadCount)

	fresh, err := svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	assert.Zero(t, fresh.TotalUnread)
	assert.Zero(t, fresh.Unread[ch])
	assert.Zero(t, fresh.Entries[0].UnreadCount)
}

func TestMarkAsReadRejectsForeignChannel(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newChatService(t, db, 0)

	seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "p1")
	seedUser(t, db, 3, "outsider")
	seedMatch(t, db, 1, 2, time.Now().UTC())
	ch := channel.DeriveUsers(1, 2)
	seedMessage(t, db, ch, 1, "private", time.Now().UTC(), false)

	err := svc.MarkAsRead(ctx, 3, ch)
	assert.ErrorIs(t, err, services.ErrMatchNotFound)

	var unread int64
	db.Model(&models.Message{}).Where("channel_id = ? AND is_read = ?", ch, false).Count(&unread)
	assert.Equal(t, int64(1), unread)
}

func TestIdentitySwitchNeverServesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newChatService(t, db, time.Hour)

	alice := seedUser(t, db, 1, "alice")
	seedUser(t, db, 2, "alice-partner")
	bob := seedUser(t, db, 3, "bob")
	seedUser(t, db, 4, "bob-partner")
	seedMatch(t, db, alice.ID, 2, time.Now().UTC())
	seedMatch(t, db, bob.ID, 4, time.Now().UTC())

	aliceSnap, err := svc.ChatList(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, aliceSnap.Entries, 1)

	// Sign-out/sign-in as a different account on the same process.
	svc.Forget(alice.ID)

	bobSnap, err := svc.ChatList(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, bobSnap.Identity)
	require.Len(t, bobSnap.Entries, 1)
	assert.Equal(t, uint(4), bobSnap.Entries[0].Partner.ID)
	for _, entry := range bobSnap.Entries {
		assert.NotEqual(t, uint(2), entry.Partner.ID, "entry from the previous identity leaked")
	}
}

func TestCooldownServesCachedSnapshotAndInvalidateForcesRebuild(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newChatService(t, db, time.Hour)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "p1")
	seedMatch(t, db, me.ID, 2, time.Now().UTC().Add(-time.Hour))
	ch := channel.DeriveUsers(me.ID, 2)

	first, err := svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	require.Zero(t, first.TotalUnread)

	// A new message inside the cooldown window is not picked up...
	seedMessage(t, db, ch, 2, "ping", time.Now().UTC(), false)
	cached, err := svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, first.BuiltAt, cached.BuiltAt)
	assert.Zero(t, cached.TotalUnread)

	// ...until the push event invalidates the snapshot.
	svc.Invalidate(me.ID)
	fresh, err := svc.ChatList(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.TotalUnread)
	assert.Equal(t, "ping", fresh.Entries[0].LastMessage)
}

func TestTotalUnreadMirrorsToRedis(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	matches := services.NewMatchService(db, nil, nil)
	svc := services.NewChatService(db, redisc.NewFromAddr(mr.Addr()), matches, 0)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "p1")
	seedMatch(t, db, me.ID, 2, time.Now().UTC().Add(-time.Hour))
	ch := channel.DeriveUsers(me.ID, 2)
	seedMessage(t, db, ch, 2, "hello", time.Now().UTC(), false)

	_, err = svc.ChatList(ctx, me.ID)
	require.NoError(t, err)

	got, err := mr.Get("unread:total:1")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	total, err := svc.TotalUnread(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
