package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"heartlink/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrNoDeck        = errors.New("no active deck, request a new one")
	ErrDeckExhausted = errors.New("no more candidates")
)

// DiscoverFilter narrows the candidate query for a new deck.
type DiscoverFilter struct {
	Gender *string `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	AgeMin *int    `json:"age_min,omitempty" validate:"omitempty,gte=18,lte=100"`
	AgeMax *int    `json:"age_max,omitempty" validate:"omitempty,gte=18,lte=100"`
}

// Deck is an ordered candidate list with a forward-only cursor. The cursor
// advances by exactly one per swipe and never moves back; when it reaches
// the end the deck is exhausted and a new deck is an explicit request.
type Deck struct {
	ID         string        `json:"id"`
	UserID     uint          `json:"user_id"`
	Candidates []models.User `json:"candidates"`
	Cursor     int           `json:"cursor"`
	CreatedAt  time.Time     `json:"created_at"`
}

type SwipeResult struct {
	Matched   bool         `json:"matched"`
	Partner   *models.User `json:"partner,omitempty"`
	Cursor    int          `json:"cursor"`
	Remaining int          `json:"remaining"`
}

// DeckService keeps one active deck per user. A like makes exactly one
// persistence call; a pass makes none.
type DeckService struct {
	db       *gorm.DB
	matches  *MatchService
	size     int
	validate *validator.Validate

	mu    sync.Mutex
	decks map[uint]*Deck
}

func NewDeckService(db *gorm.DB, matches *MatchService, size int) *DeckService {
	return &DeckService{
		db:       db,
		matches:  matches,
		size:     size,
		validate: validator.New(),
		decks:    make(map[uint]*Deck),
	}
}

// NewDeck fetches a fresh candidate list and replaces any existing deck
// for the user.
func (s *DeckService) NewDeck(ctx context.Context, userID uint, filter DiscoverFilter) (*Deck, error) {
	if err := s.validate.Struct(filter); err != nil {
		return nil, fmt.Errorf("invalid discover filter: %w", err)
	}
	if filter.AgeMin != nil && filter.AgeMax != nil && *filter.AgeMin > *filter.AgeMax {
		return nil, fmt.Errorf("invalid discover filter: age_min exceeds age_max")
	}

	candidates, err := s.discover(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	deck := &Deck{
		ID:         uuid.New().String(),
		UserID:     userID,
		Candidates: candidates,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.decks[userID] = deck
	s.mu.Unlock()

	return deck, nil
}

// Current returns the candidate under the cursor without advancing.
func (s *DeckService) Current(userID uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deck, ok := s.decks[userID]
	if !ok {
		return nil, ErrNoDeck
	}
	if deck.Cursor >= len(deck.Candidates) {
		return nil, ErrDeckExhausted
	}
	candidate := deck.Candidates[deck.Cursor]
	return &candidate, nil
}

// Like persists a like for the candidate under the cursor and advances.
// The cursor advances even when persistence fails; the failure is logged
// and swallowed rather than stalling the deck.
func (s *DeckService) Like(ctx context.Context, userID uint) (*SwipeResult, error) {
	candidate, cursor, remaining, err := s.take(userID)
	if err != nil {
		return nil, err
	}

	result := &SwipeResult{Cursor: cursor, Remaining: remaining}
	likeResult, err := s.matches.Like(ctx, userID, candidate.ID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":   userID,
			"target_id": candidate.ID,
		}).Warn("swipe like failed to persist")
	} else if likeResult.Matched {
		result.Matched = true
		result.Partner = likeResult.Partner
	}
	return result, nil
}

// Pass advances the cursor. Local state only, no persistence.
func (s *DeckService) Pass(userID uint) (*SwipeResult, error) {
	_, cursor, remaining, err := s.take(userID)
	if err != nil {
		return nil, err
	}
	return &SwipeResult{Cursor: cursor, Remaining: remaining}, nil
}

// Drop discards the user's deck, e.g. on logout.
func (s *DeckService) Drop(userID uint) {
	s.mu.Lock()
	delete(s.decks, userID)
	s.mu.Unlock()
}

// take pops the candidate under the cursor and advances by exactly one.
func (s *DeckService) take(userID uint) (*models.User, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deck, ok := s.decks[userID]
	if !ok {
		return nil, 0, 0, ErrNoDeck
	}
	if deck.Cursor >= len(deck.Candidates) {
		return nil, deck.Cursor, 0, ErrDeckExhausted
	}
	candidate := deck.Candidates[deck.Cursor]
	deck.Cursor++
	return &candidate, deck.Cursor, len(deck.Candidates) - deck.Cursor, nil
}

// discover builds the candidate list: active profiles the user has not
// swiped on, excluding blocks in either direction.
func (s *DeckService) discover(ctx context.Context, userID uint, filter DiscoverFilter) ([]models.User, error) {
	query := s.db.WithContext(ctx).Model(&models.User{}).
		Preload("ProfilePhotos").Preload("Hobbies").
		Where("id <> ? AND is_active = ?", userID, true).
		Where("id NOT IN (?)", s.db.Model(&models.Like{}).Select("liked_id").Where("liker_id = ?", userID)).
		Where("id NOT IN (?)", s.db.Model(&models.Pass{}).Select("passed_id").Where("passer_id = ?", userID)).
		Where("id NOT IN (?)", s.db.Model(&models.BlockedUser{}).Select("blocked_id").Where("blocker_id = ?", userID)).
		Where("id NOT IN (?)", s.db.Model(&models.BlockedUser{}).Select("blocker_id").Where("blocked_id = ?", userID))

	if filter.Gender != nil {
		query = query.Where("gender = ?", *filter.Gender)
	}
	now := time.Now()
	if filter.AgeMin != nil {
		query = query.Where("date_of_birth <= ?", now.AddDate(-*filter.AgeMin, 0, 0))
	}
	if filter.AgeMax != nil {
		query = query.Where("date_of_birth >= ?", now.AddDate(-*filter.AgeMax-1, 0, 0))
	}

	var candidates []models.User
	if err := query.Order("last_seen DESC NULLS LAST").Limit(s.size).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}
	return candidates, nil
}
