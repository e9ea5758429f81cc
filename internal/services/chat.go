package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"heartlink/internal/channel"
	"heartlink/internal/models"
	redisc "heartlink/internal/redis"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Last-message previews shown in the conversation list.
const (
	PlaceholderNewMatch   = "Bắt đầu cuộc trò chuyện của bạn!"
	PlaceholderAttachment = "[Tệp đính kèm]"
	PlaceholderRecalled   = "Tin nhắn đã được thu hồi"
)

// ChatEntry is the per-conversation view model. It is derived on every
// aggregation pass and never persisted.
type ChatEntry struct {
	MatchID         uint        `json:"match_id"`
	ChannelID       string      `json:"channel_id"`
	Partner         models.User `json:"partner"`
	LastMessage     string      `json:"last_message"`
	LastMessageAt   time.Time   `json:"last_message_at"`
	LastMessageMine bool        `json:"last_message_mine"`
	UnreadCount     int64       `json:"unread_count"`
}

// ChatSnapshot is one consistent aggregation pass for a single identity.
// Invariant: TotalUnread equals the sum of Unread's values. Once a
// snapshot has been handed out it is never mutated; folds swap in a copy.
type ChatSnapshot struct {
	Identity    uint             `json:"identity"`
	Entries     []ChatEntry      `json:"entries"`
	Unread      map[string]int64 `json:"unread"`
	TotalUnread int64            `json:"total_unread"`
	BuiltAt     time.Time        `json:"built_at"`
}

// clone copies the entry slice and unread map so the copy can be edited
// while snapshots already served to callers stay frozen.
func (s *ChatSnapshot) clone() *ChatSnapshot {
	next := &ChatSnapshot{
		Identity:    s.Identity,
		Entries:     make([]ChatEntry, len(s.Entries)),
		Unread:      make(map[string]int64, len(s.Unread)),
		TotalUnread: s.TotalUnread,
		BuiltAt:     s.BuiltAt,
	}
	copy(next.Entries, s.Entries)
	for k, v := range s.Unread {
		next.Unread[k] = v
	}
	return next
}

// ChatService aggregates match records with live channel state into the
// conversation list. Refreshes are single-flight per identity and guarded
// by a cooldown window that absorbs event bursts; push events invalidate
// the snapshot so the next read rebuilds immediately.
type ChatService struct {
	db       *gorm.DB
	cache    *redisc.Client
	matches  *MatchService
	cooldown time.Duration

	mu        sync.Mutex
	snapshots map[uint]*ChatSnapshot
	locks     map[uint]*sync.Mutex
}

func NewChatService(db *gorm.DB, cache *redisc.Client, matches *MatchService, cooldown time.Duration) *ChatService {
	return &ChatService{
		db:        db,
		cache:     cache,
		matches:   matches,
		cooldown:  cooldown,
		snapshots: make(map[uint]*ChatSnapshot),
		locks:     make(map[uint]*sync.Mutex),
	}
}

// ChatList serves the cached snapshot while it is inside the cooldown
// window, otherwise rebuilds. A snapshot is only ever served to the
// identity it was built for.
func (s *ChatService) ChatList(ctx context.Context, userID uint) (*ChatSnapshot, error) {
	if snap := s.cached(userID); snap != nil && time.Since(snap.BuiltAt) < s.cooldown {
		return snap, nil
	}
	return s.Refresh(ctx, userID)
}

// Refresh rebuilds the snapshot unconditionally. Concurrent refreshes for
// the same identity serialize; the second caller gets the fresh result of
// the first instead of racing it.
func (s *ChatService) Refresh(ctx context.Context, userID uint) (*ChatSnapshot, error) {
	lock := s.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	// Another refresh may have completed while this one waited.
	if snap := s.cached(userID); snap != nil && time.Since(snap.BuiltAt) < s.cooldown {
		return snap, nil
	}

	snap, err := s.build(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.snapshots[userID] = snap
	s.mu.Unlock()

	s.mirrorTotal(ctx, userID, snap.TotalUnread)
	return snap, nil
}

// Invalidate drops the cached snapshot so the next ChatList call rebuilds
// regardless of the cooldown. Called on push events: new message, read
// receipt, match, unmatch.
func (s *ChatService) Invalidate(userID uint) {
	s.mu.Lock()
	delete(s.snapshots, userID)
	s.mu.Unlock()
}

// Forget drops all aggregator state for an identity, including its
// refresh lock. Called on logout so nothing computed for the previous
// identity can ever be served after a sign-in switch.
func (s *ChatService) Forget(userID uint) {
	s.mu.Lock()
	delete(s.snapshots, userID)
	delete(s.locks, userID)
	s.mu.Unlock()
}

// MarkAsRead confirms read receipts in the database first, then folds the
// confirmed zero into the cached snapshot without waiting for a full
// refresh. A failed write returns the error and leaves local state alone,
// so the view never silently diverges from server truth.
func (s *ChatService) MarkAsRead(ctx context.Context, userID uint, channelID string) error {
	if !s.userInChannel(ctx, userID, channelID) {
		return ErrMatchNotFound
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("channel_id = ? AND sender_id <> ? AND is_read = ?", channelID, userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}

	// Fold into a copy and swap it in; snapshots already served to other
	// requests keep their pre-fold counts instead of changing underfoot.
	s.mu.Lock()
	if snap, ok := s.snapshots[userID]; ok && snap.Identity == userID {
		next := snap.clone()
		if _, present := next.Unread[channelID]; present {
			next.Unread[channelID] = 0
		}
		var total int64
		for _, n := range next.Unread {
			total += n
		}
		next.TotalUnread = total
		for i := range next.Entries {
			if next.Entries[i].ChannelID == channelID {
				next.Entries[i].UnreadCount = 0
			}
		}
		s.snapshots[userID] = next
	}
	s.mu.Unlock()

	s.mirrorTotal(ctx, userID, -1)
	return nil
}

// TotalUnread reads the cheap badge counter, falling back to a full
// aggregation when no snapshot exists yet.
func (s *ChatService) TotalUnread(ctx context.Context, userID uint) (int64, error) {
	if snap := s.cached(userID); snap != nil {
		return snap.TotalUnread, nil
	}
	snap, err := s.Refresh(ctx, userID)
	if err != nil {
		return 0, err
	}
	return snap.TotalUnread, nil
}

// build is one aggregation pass: matches, derived channel ids, then a
// batched stats query across every channel at once. Any failure aborts the
// whole pass; there is no partial merge.
func (s *ChatService) build(ctx context.Context, userID uint) (*ChatSnapshot, error) {
	profiles, err := s.matches.Matches(ctx, userID)
	if err != nil {
		return nil, err
	}

	channelIDs := make([]string, 0, len(profiles))
	channelByMatch := make(map[uint]string, len(profiles))
	for _, p := range profiles {
		id := channel.DeriveUsers(userID, p.User.ID)
		channelIDs = append(channelIDs, id)
		channelByMatch[p.MatchID] = id
	}

	unread, lastByChannel, err := s.channelStats(ctx, userID, channelIDs)
	if err != nil {
		return nil, err
	}

	snap := &ChatSnapshot{
		Identity: userID,
		Entries:  make([]ChatEntry, 0, len(profiles)),
		Unread:   make(map[string]int64, len(profiles)),
		BuiltAt:  time.Now(),
	}

	for _, p := range profiles {
		channelID := channelByMatch[p.MatchID]
		entry := ChatEntry{
			MatchID:   p.MatchID,
			ChannelID: channelID,
			Partner:   p.User,
		}

		if last, ok := lastByChannel[channelID]; ok {
			entry.LastMessage = preview(last)
			entry.LastMessageAt = last.CreatedAt
			entry.LastMessageMine = last.SenderID == userID
			entry.UnreadCount = unread[channelID]
		} else {
			// No messages yet: seed with the match's own timestamp so a
			// fresh match sorts by match recency.
			entry.LastMessage = PlaceholderNewMatch
			entry.LastMessageAt = p.CreatedAt
		}

		snap.Unread[channelID] = entry.UnreadCount
		snap.TotalUnread += entry.UnreadCount
		snap.Entries = append(snap.Entries, entry)
	}

	sort.SliceStable(snap.Entries, func(i, j int) bool {
		return snap.Entries[i].LastMessageAt.After(snap.Entries[j].LastMessageAt)
	})

	return snap, nil
}

// channelStats fetches unread counts and last messages for all channels in
// two grouped queries, never per-channel.
func (s *ChatService) channelStats(ctx context.Context, userID uint, channelIDs []string) (map[string]int64, map[string]models.Message, error) {
	unread := make(map[string]int64, len(channelIDs))
	lastByChannel := make(map[string]models.Message, len(channelIDs))
	if len(channelIDs) == 0 {
		return unread, lastByChannel, nil
	}

	var unreadRows []struct {
		ChannelID string
		Count     int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("channel_id, COUNT(*) AS count").
		Where("channel_id IN ? AND sender_id <> ? AND is_read = ? AND is_recalled = ?",
			channelIDs, userID, false, false).
		Group("channel_id").
		Scan(&unreadRows).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	for _, row := range unreadRows {
		unread[row.ChannelID] = row.Count
	}

	latestIDs := s.db.Model(&models.Message{}).
		Select("MAX(id)").
		Where("channel_id IN ?", channelIDs).
		Group("channel_id")

	var lastMessages []models.Message
	if err := s.db.WithContext(ctx).
		Where("id IN (?)", latestIDs).
		Find(&lastMessages).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to fetch last messages: %w", err)
	}
	for _, msg := range lastMessages {
		lastByChannel[msg.ChannelID] = msg
	}

	return unread, lastByChannel, nil
}

func (s *ChatService) cached(userID uint) *ChatSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[userID]
	if !ok || snap.Identity != userID {
		return nil
	}
	return snap
}

func (s *ChatService) lockFor(userID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// userInChannel verifies the caller is a participant of the channel by
// re-deriving the ids of their active matches.
func (s *ChatService) userInChannel(ctx context.Context, userID uint, channelID string) bool {
	_, ok := s.partnerInChannel(ctx, userID, channelID)
	return ok
}

// partnerInChannel resolves the other participant of a channel the caller
// belongs to.
func (s *ChatService) partnerInChannel(ctx context.Context, userID uint, channelID string) (uint, bool) {
	var matches []models.Match
	if err := s.db.WithContext(ctx).
		Where("(user1_id = ? OR user2_id = ?) AND is_active = ?", userID, userID, true).
		Find(&matches).Error; err != nil {
		return 0, false
	}
	for i := range matches {
		if channel.DeriveUsers(matches[i].User1ID, matches[i].User2ID) == channelID {
			partnerID := matches[i].User1ID
			if partnerID == userID {
				partnerID = matches[i].User2ID
			}
			return partnerID, true
		}
	}
	return 0, false
}

// mirrorTotal keeps the badge counter in redis. total < 0 recomputes from
// the cached snapshot. Best effort; the snapshot stays authoritative.
func (s *ChatService) mirrorTotal(ctx context.Context, userID uint, total int64) {
	if s.cache == nil {
		return
	}
	if total < 0 {
		snap := s.cached(userID)
		if snap == nil {
			return
		}
		total = snap.TotalUnread
	}
	key := "unread:total:" + strconv.FormatUint(uint64(userID), 10)
	if err := s.cache.Set(ctx, key, total, 24*time.Hour); err != nil {
		logrus.WithError(err).Debug("failed to mirror unread total")
	}
}

func preview(msg models.Message) string {
	if msg.IsRecalled {
		return PlaceholderRecalled
	}
	switch msg.Type {
	case models.MessageTypeAttachment, models.MessageTypeImage:
		return PlaceholderAttachment
	default:
		return msg.Content
	}
}
