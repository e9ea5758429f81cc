package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"heartlink/internal/models"
	"heartlink/internal/services"
)

func newDeckService(t *testing.T, db *gorm.DB, size int) *services.DeckService {
	t.Helper()
	matches := services.NewMatchService(db, nil, nil)
	return services.NewDeckService(db, matches, size)
}

func TestNewDeckExcludesSwipedBlockedAndSelf(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newDeckService(t, db, 20)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "fresh")
	seedUser(t, db, 3, "already-liked")
	seedUser(t, db, 4, "already-passed")
	seedUser(t, db, 5, "blocked-by-me")
	seedUser(t, db, 6, "blocked-me")
	inactive := seedUser(t, db, 7, "inactive")
	require.NoError(t, db.Model(&inactive).Update("is_active", false).Error)

	require.NoError(t, db.Create(&models.Like{LikerID: me.ID, LikedID: 3}).Error)
	require.NoError(t, db.Create(&models.Pass{PasserID: me.ID, PassedID: 4}).Error)
	require.NoError(t, db.Create(&models.BlockedUser{BlockerID: me.ID, BlockedID: 5}).Error)
	require.NoError(t, db.Create(&models.BlockedUser{BlockerID: 6, BlockedID: me.ID}).Error)

	deck, err := svc.NewDeck(ctx, me.ID, services.DiscoverFilter{})
	require.NoError(t, err)

	ids := make([]uint, 0, len(deck.Candidates))
	for _, c := range deck.Candidates {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []uint{2}, ids)
}

func TestNewDeckAppliesFilters(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newDeckService(t, db, 20)

	me := seedUser(t, db, 1, "me")

	young := seedUser(t, db, 2, "young-woman")
	require.NoError(t, db.Model(&young).Updates(map[string]interface{}{
		"gender":        "female",
		"date_of_birth": time.Now().AddDate(-22, 0, 0),
	}).Error)

	older := seedUser(t, db, 3, "older-woman")
	require.NoError(t, db.Model(&older).Updates(map[string]interface{}{
		"gender":        "female",
		"date_of_birth": time.Now().AddDate(-45, 0, 0),
	}).Error)

	man := seedUser(t, db, 4, "man")
	require.NoError(t, db.Model(&man).Update("gender", "male").Error)

	gender := "female"
	ageMin, ageMax := 20, 30
	deck, err := svc.NewDeck(ctx, me.ID, services.DiscoverFilter{
		Gender: &gender,
		AgeMin: &ageMin,
		AgeMax: &ageMax,
	})
	require.NoError(t, err)

	require.Len(t, deck.Candidates, 1)
	assert.Equal(t, uint(2), deck.Candidates[0].ID)
}

func TestNewDeckRejectsInvalidFilter(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newDeckService(t, db, 20)
	seedUser(t, db, 1, "me")

	bad := "alien"
	_, err := svc.NewDeck(ctx, 1, services.DiscoverFilter{Gender: &bad})
	assert.Error(t, err)

	min, max := 40, 20
	_, err = svc.NewDeck(ctx, 1, services.DiscoverFilter{AgeMin: &min, AgeMax: &max})
	assert.Error(t, err)
}

func TestSwipeCursorAdvancesByExactlyOne(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newDeckService(t, db, 20)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "c1")
	seedUser(t, db, 3, "c2")
	seedUser(t, db, 4, "c3")

	deck, err := svc.NewDeck(ctx, me.ID, services.DiscoverFilter{})
	require.NoError(t, err)
	require.Len(t, deck.Candidates, 3)

	// Cursor advances by one per swipe, like or pass, match or not.
	likeResult, err := svc.Like(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, likeResult.Cursor)
	assert.False(t, likeResult.Matched)

	passResult, err := svc.Pass(me.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, passResult.Cursor)

	likeResult, err = svc.Like(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, likeResult.Cursor)
	assert.Equal(t, 0, likeResult.Remaining)

	// Exhausted: the deck never rewinds or refetches on its own.
	_, err = svc.Like(ctx, me.ID)
	assert.ErrorIs(t, err, services.ErrDeckExhausted)
	_, err = svc.Pass(me.ID)
	assert.ErrorIs(t, err, services.ErrDeckExhausted)
	_, err = svc.Current(me.ID)
	assert.ErrorIs(t, err, services.ErrDeckExhausted)
}

func TestSwipeLikePersistsExactlyOneLikeAndPassNone(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newDeckService(t, db, 20)

	me := seedUser(t, db, 1, "me")
	seedUser(t, db, 2, "c1")
	seedUser(t, db, 3, "c2")

	_, err := svc.NewDeck(ctx, me.ID, services.DiscoverFilter{})
	require.NoError(t, err)

	_, err = svc.Like(ctx, me.ID)
	require.NoError(t, err)

	var likeCount int64
	db.Model(&models.Like{}).Count(&likeCount)
	assert.Equal(t, int64(1), likeCount)

	// Pass is local state only: no like, no pass row.
	_, err = svc.Pass(me.ID)
	require.NoError(t, err)

	var passCount int64
	db.Model(&models.Pass{}).Count(&passCount)
	db.Model(&models.Like{}).Count(&likeCount)
	assert.Equal(t, int64(0), passCount)
	assert.Equal(t, int64(1), likeCount)
}

func TestSwipeLikeReportsMatchWithPartnerProfile(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	svc := newDeckService(t, db, 20)

	me := seedUser(t, db, 1, "me")
	partner := seedUser(t, db, 2, "partner")
	// The candidate already liked me.
	require.NoError(t, db.Create(&models.Like{LikerID: partner.ID, LikedID: me.ID}).Error)

	_, err := svc.NewDeck(ctx, me.ID, services.DiscoverFilter{})
	require.NoError(t, err)

	result, err := svc.Like(ctx, me.ID)
	require.NoError(t, err)
	require.True(t, result.Matched)
	require.NotNil(t, result.Partner)
	assert.Equal(t, partner.ID, result.Partner.ID)
	assert.Equal(t, 1, result.Cursor)
}

func TestDeckRequiresExplicitCreation(t *testing.T) {
	db := setupDB(t)
	svc := newDeckService(t, db, 20)
	seedUser(t, db, 1, "me")

	_, err := svc.Current(1)
	assert.ErrorIs(t, err, services.ErrNoDeck)

	_, err = svc.Pass(1)
	assert.ErrorIs(t, err, services.ErrNoDeck)
}
