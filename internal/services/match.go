package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"heartlink/internal/channel"
	"heartlink/internal/models"
	"heartlink/internal/websocket"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrBlocked       = errors.New("cannot like blocked user")
	ErrMatchNotFound = errors.New("match not found")
	ErrSelfLike      = errors.New("cannot like yourself")
)

// MatchService owns likes, passes and matches. A match materializes in the
// same transaction as the reciprocal like, with the pair normalized so the
// unique index makes duplicate matches impossible.
type MatchService struct {
	db   *gorm.DB
	hub  *websocket.Hub
	push *PushService
}

func NewMatchService(db *gorm.DB, hub *websocket.Hub, push *PushService) *MatchService {
	return &MatchService{db: db, hub: hub, push: push}
}

type LikeResult struct {
	Matched bool          `json:"matched"`
	Match   *models.Match `json:"match,omitempty"`
	Partner *models.User  `json:"partner,omitempty"`
}

// MatchedProfile annotates a partner profile with the match record's id and
// creation time, so consumers sort by match recency rather than by the
// partner's account age.
type MatchedProfile struct {
	MatchID   uint        `json:"match_id"`
	User      models.User `json:"user"`
	CreatedAt time.Time   `json:"created_at"`
}

// Like persists a directed like and detects reciprocity. A duplicate like is
// success: the existing state is reported and no second like or match row is
// ever written.
func (s *MatchService) Like(ctx context.Context, actorID, targetID uint) (*LikeResult, error) {
	if actorID == targetID {
		return nil, ErrSelfLike
	}

	var target models.User
	if err := s.db.WithContext(ctx).
		Preload("ProfilePhotos").Preload("Hobbies").
		Where("id = ? AND is_active = ?", targetID, true).
		First(&target).Error; err != nil {
		return nil, ErrUserNotFound
	}

	var blocked models.BlockedUser
	if err := s.db.WithContext(ctx).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)",
			actorID, targetID, targetID, actorID).
		First(&blocked).Error; err == nil {
		return nil, ErrBlocked
	}

	var existing models.Like
	if err := s.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", actorID, targetID).
		First(&existing).Error; err == nil {
		// Idempotent resubmission: report the current state of the pair.
		result := &LikeResult{}
		if match, err := s.matchForPair(ctx, actorID, targetID); err == nil {
			result.Matched = true
			result.Match = match
			result.Partner = &target
		}
		return result, nil
	}

	result := &LikeResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		like := models.Like{LikerID: actorID, LikedID: targetID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
			return fmt.Errorf("failed to create like: %w", err)
		}

		var mutual models.Like
		if err := tx.Where("liker_id = ? AND liked_id = ?", targetID, actorID).
			First(&mutual).Error; err != nil {
			return nil // no reciprocal like yet
		}

		u1, u2 := orderPair(actorID, targetID)
		match := models.Match{User1ID: u1, User2ID: u2, IsActive: true}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&match).Error; err != nil {
			return fmt.Errorf("failed to create match: %w", err)
		}
		if match.ID == 0 {
			// Conflict path: the match already existed, load it.
			if err := tx.Where("user1_id = ? AND user2_id = ?", u1, u2).
				First(&match).Error; err != nil {
				return fmt.Errorf("failed to load match: %w", err)
			}
		}

		result.Matched = true
		result.Match = &match
		result.Partner = &target
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Matched {
		s.announceMatch(ctx, result.Match, actorID, targetID)
	}

	return result, nil
}

// Pass records an explicit rejection so discovery stops surfacing the
// profile. Duplicate passes are idempotent.
func (s *MatchService) Pass(ctx context.Context, actorID, targetID uint) error {
	if actorID == targetID {
		return ErrSelfLike
	}
	pass := models.Pass{PasserID: actorID, PassedID: targetID}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&pass).Error
}

// Matches returns the caller's active matches, partner profile and hobbies
// included, newest match first.
func (s *MatchService) Matches(ctx context.Context, userID uint) ([]MatchedProfile, error) {
	var matches []models.Match
	if err := s.db.WithContext(ctx).
		Where("(user1_id = ? OR user2_id = ?) AND is_active = ?", userID, userID, true).
		Preload("User1.ProfilePhotos").Preload("User1.Hobbies").
		Preload("User2.ProfilePhotos").Preload("User2.Hobbies").
		Order("created_at DESC").
		Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch matches: %w", err)
	}

	profiles := make([]MatchedProfile, 0, len(matches))
	for i := range matches {
		profiles = append(profiles, MatchedProfile{
			MatchID:   matches[i].ID,
			User:      matches[i].Partner(userID),
			CreatedAt: matches[i].CreatedAt,
		})
	}
	return profiles, nil
}

// Unmatch deactivates the match. Messages stay in place; the conversation
// simply stops being listed.
func (s *MatchService) Unmatch(ctx context.Context, userID, matchID uint) (*models.Match, error) {
	var match models.Match
	if err := s.db.WithContext(ctx).
		Where("id = ? AND (user1_id = ? OR user2_id = ?) AND is_active = ?",
			matchID, userID, userID, true).
		First(&match).Error; err != nil {
		return nil, ErrMatchNotFound
	}

	match.IsActive = false
	if err := s.db.WithContext(ctx).Save(&match).Error; err != nil {
		return nil, fmt.Errorf("failed to unmatch: %w", err)
	}

	if s.hub != nil {
		partnerID := match.User1ID
		if partnerID == userID {
			partnerID = match.User2ID
		}
		s.hub.NotifyUser(partnerID, websocket.Event{
			Type:      websocket.EventUnmatch,
			ChannelID: channel.DeriveUsers(match.User1ID, match.User2ID),
		})
	}

	return &match, nil
}

func (s *MatchService) matchForPair(ctx context.Context, a, b uint) (*models.Match, error) {
	u1, u2 := orderPair(a, b)
	var match models.Match
	if err := s.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ? AND is_active = ?", u1, u2, true).
		First(&match).Error; err != nil {
		return nil, err
	}
	return &match, nil
}

func (s *MatchService) announceMatch(ctx context.Context, match *models.Match, actorID, targetID uint) {
	channelID := channel.DeriveUsers(match.User1ID, match.User2ID)

	for _, pair := range [][2]uint{{actorID, targetID}, {targetID, actorID}} {
		userID := pair[0]
		notification := models.Notification{
			UserID: userID,
			Type:   "match",
			Title:  "New Match!",
			Body:   "You have a new match! Start chatting now.",
			Data:   `{"match_id": ` + strconv.FormatUint(uint64(match.ID), 10) + `}`,
		}
		if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
			logrus.WithError(err).Warn("failed to store match notification")
		}

		if s.hub != nil {
			s.hub.NotifyUser(userID, websocket.Event{
				Type:      websocket.EventMatch,
				ChannelID: channelID,
				UserID:    pair[1],
				Payload:   map[string]any{"match_id": match.ID},
			})
		}
		if s.push != nil {
			s.push.SendToUser(ctx, userID, notification.Title, notification.Body,
				map[string]string{"match_id": strconv.FormatUint(uint64(match.ID), 10)})
		}
	}
}

func orderPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}
