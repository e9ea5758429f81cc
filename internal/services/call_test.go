package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartlink/internal/channel"
	redisc "heartlink/internal/redis"
	"heartlink/internal/services"
)

func newCallService(t *testing.T) (*services.CallService, string) {
	t.Helper()
	db := setupDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	matches := services.NewMatchService(db, nil, nil)
	chat := services.NewChatService(db, nil, matches, 0)
	svc := services.NewCallService(redisc.NewFromAddr(mr.Addr()), chat, nil, time.Hour)

	seedUser(t, db, 1, "caller")
	seedUser(t, db, 2, "callee")
	seedUser(t, db, 3, "outsider")
	seedMatch(t, db, 1, 2, time.Now().UTC())

	return svc, channel.DeriveUsers(1, 2)
}

func TestCallLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, ch := newCallService(t)

	room, err := svc.Start(ctx, 1, ch)
	require.NoError(t, err)
	assert.Equal(t, ch, room.ChannelID)
	assert.ElementsMatch(t, []uint{1}, room.Members)

	room, err = svc.Join(ctx, 2, room.CallID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2}, room.Members)

	require.NoError(t, svc.Leave(ctx, 1, room.CallID))

	// Last participant leaving ends the call.
	require.NoError(t, svc.Leave(ctx, 2, room.CallID))
	_, err = svc.Join(ctx, 1, room.CallID)
	assert.ErrorIs(t, err, services.ErrCallNotFound)
}

func TestCallAccessControl(t *testing.T) {
	ctx := context.Background()
	svc, ch := newCallService(t)

	// Only channel participants may start or join.
	_, err := svc.Start(ctx, 3, ch)
	assert.ErrorIs(t, err, services.ErrChannelAccess)

	room, err := svc.Start(ctx, 1, ch)
	require.NoError(t, err)

	_, err = svc.Join(ctx, 3, room.CallID)
	assert.ErrorIs(t, err, services.ErrChannelAccess)

	_, err = svc.Join(ctx, 1, "no-such-call")
	assert.ErrorIs(t, err, services.ErrCallNotFound)
}
