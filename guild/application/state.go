package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/happyfeetx/kiosk/guild/domain"
	"github.com/sirupsen/logrus"
)

// State is the process-wide cache of guild configuration and moderation data.
// Every shard session shares the one instance; reads are synchronous map
// lookups and never touch the database. Configuration and moderation-set
// mutations write through to the repository before the cache is updated;
// message counters are cache-only and reconciled by FlushMessageCounts on the
// database sync interval.
type State struct {
	repo domain.Repository

	mu              sync.RWMutex
	configs         map[string]*domain.Config
	blockedUsers    map[string]struct{}
	blockedChannels map[string]struct{}
	filters         map[string]map[string]struct{}
	textReactions   map[string]map[string]string
	emojiReactions  map[string]map[string]string

	countMu       sync.Mutex
	messageCounts map[string]int64
}

func NewState(repo domain.Repository) *State {
	return &State{
		repo:            repo,
		configs:         make(map[string]*domain.Config),
		blockedUsers:    make(map[string]struct{}),
		blockedChannels: make(map[string]struct{}),
		filters:         make(map[string]map[string]struct{}),
		textReactions:   make(map[string]map[string]string),
		emojiReactions:  make(map[string]map[string]string),
		messageCounts:   make(map[string]int64),
	}
}

// Hydrate loads every cached collection from the repository. Called once at
// startup before any shard session starts handling events.
func (s *State) Hydrate(ctx context.Context) error {
	configs, err := s.repo.AllConfigs(ctx)
	if err != nil {
		return fmt.Errorf("hydrate guild configs: %w", err)
	}
	users, err := s.repo.BlockedUsers(ctx)
	if err != nil {
		return fmt.Errorf("hydrate blocked users: %w", err)
	}
	channels, err := s.repo.BlockedChannels(ctx)
	if err != nil {
		return fmt.Errorf("hydrate blocked channels: %w", err)
	}
	filters, err := s.repo.Filters(ctx)
	if err != nil {
		return fmt.Errorf("hydrate filters: %w", err)
	}
	textReactions, err := s.repo.TextReactions(ctx)
	if err != nil {
		return fmt.Errorf("hydrate text reactions: %w", err)
	}
	emojiReactions, err := s.repo.EmojiReactions(ctx)
	if err != nil {
		return fmt.Errorf("hydrate emoji reactions: %w", err)
	}
	counts, err := s.repo.MessageCounts(ctx)
	if err != nil {
		return fmt.Errorf("hydrate message counts: %w", err)
	}

	s.mu.Lock()
	s.configs = make(map[string]*domain.Config, len(configs))
	for _, c := range configs {
		s.configs[c.GuildID] = c
	}
	s.blockedUsers = make(map[string]struct{}, len(users))
	for _, id := range users {
		s.blockedUsers[id] = struct{}{}
	}
	s.blockedChannels = make(map[string]struct{}, len(channels))
	for _, id := range channels {
		s.blockedChannels[id] = struct{}{}
	}
	s.filters = make(map[string]map[string]struct{})
	for _, f := range filters {
		s.addFilterLocked(f)
	}
	s.textReactions = make(map[string]map[string]string)
	for _, r := range textReactions {
		s.addTextReactionLocked(r)
	}
	s.emojiReactions = make(map[string]map[string]string)
	for _, r := range emojiReactions {
		s.addEmojiReactionLocked(r)
	}
	s.mu.Unlock()

	s.countMu.Lock()
	s.messageCounts = make(map[string]int64, len(counts))
	for _, c := range counts {
		s.messageCounts[c.UserID] = c.Count
	}
	s.countMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"guilds":   len(configs),
		"blocked":  len(users) + len(channels),
		"filters":  len(filters),
		"counters": len(counts),
	}).Info("shared state hydrated")
	return nil
}

// Config returns the cached configuration for a guild, or the documented
// default when the guild has no explicit record. It never fails.
func (s *State) Config(guildID string) *domain.Config {
	s.mu.RLock()
	cfg, ok := s.configs[guildID]
	s.mu.RUnlock()
	if !ok {
		return domain.DefaultConfig(guildID)
	}
	return cfg
}

// Prefix returns the guild's command prefix override, or empty when the
// global default applies.
func (s *State) Prefix(guildID string) string {
	return s.Config(guildID).Prefix
}

// UpdateConfig applies mutate to the persisted record inside a transaction,
// then swaps the cached entry. A store failure leaves the cache untouched and
// propagates so the caller can report it.
func (s *State) UpdateConfig(ctx context.Context, guildID string, mutate func(*domain.Config)) (*domain.Config, error) {
	cfg, err := s.repo.UpdateConfig(ctx, guildID, mutate)
	if err != nil {
		return nil, fmt.Errorf("update guild config %s: %w", guildID, err)
	}

	s.mu.Lock()
	s.configs[guildID] = cfg
	s.mu.Unlock()
	return cfg, nil
}

// Blocked users and channels

func (s *State) IsBlockedUser(userID string) bool {
	s.mu.RLock()
	_, ok := s.blockedUsers[userID]
	s.mu.RUnlock()
	return ok
}

func (s *State) IsBlockedChannel(channelID string) bool {
	s.mu.RLock()
	_, ok := s.blockedChannels[channelID]
	s.mu.RUnlock()
	return ok
}

// BlockUser adds a user to the blocked set. Blocking an already-blocked user
// is a no-op success.
func (s *State) BlockUser(ctx context.Context, userID string) error {
	if err := s.repo.BlockUser(ctx, userID); err != nil {
		return fmt.Errorf("block user %s: %w", userID, err)
	}
	s.mu.Lock()
	s.blockedUsers[userID] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *State) UnblockUser(ctx context.Context, userID string) error {
	if err := s.repo.UnblockUser(ctx, userID); err != nil {
		return fmt.Errorf("unblock user %s: %w", userID, err)
	}
	s.mu.Lock()
	delete(s.blockedUsers, userID)
	s.mu.Unlock()
	return nil
}

func (s *State) BlockChannel(ctx context.Context, channelID string) error {
	if err := s.repo.BlockChannel(ctx, channelID); err != nil {
		return fmt.Errorf("block channel %s: %w", channelID, err)
	}
	s.mu.Lock()
	s.blockedChannels[channelID] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *State) UnblockChannel(ctx context.Context, channelID string) error {
	if err := s.repo.UnblockChannel(ctx, channelID); err != nil {
		return fmt.Errorf("unblock channel %s: %w", channelID, err)
	}
	s.mu.Lock()
	delete(s.blockedChannels, channelID)
	s.mu.Unlock()
	return nil
}

// Filters

// MatchesFilter reports whether any of the guild's filter triggers occurs in
// content. Called on every inbound message.
func (s *State) MatchesFilter(guildID, content string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for trigger := range s.filters[guildID] {
		if containsWord(content, trigger) {
			return true
		}
	}
	return false
}

func (s *State) GuildFilters(guildID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.filters[guildID]))
	for trigger := range s.filters[guildID] {
		out = append(out, trigger)
	}
	return out
}

func (s *State) AddFilter(ctx context.Context, f domain.Filter) error {
	if err := s.repo.AddFilter(ctx, f); err != nil {
		return fmt.Errorf("add filter: %w", err)
	}
	s.mu.Lock()
	s.addFilterLocked(f)
	s.mu.Unlock()
	return nil
}

func (s *State) RemoveFilter(ctx context.Context, f domain.Filter) error {
	if err := s.repo.RemoveFilter(ctx, f); err != nil {
		return fmt.Errorf("remove filter: %w", err)
	}
	s.mu.Lock()
	delete(s.filters[f.GuildID], f.Trigger)
	s.mu.Unlock()
	return nil
}

// Reactions

// TextResponse returns the configured response for the first trigger found in
// content, if any.
func (s *State) TextResponse(guildID, content string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for trigger, response := range s.textReactions[guildID] {
		if containsWord(content, trigger) {
			return response, true
		}
	}
	return "", false
}

// EmojiResponse returns the configured emoji for the first trigger found in
// content, if any.
func (s *State) EmojiResponse(guildID, content string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for trigger, emoji := range s.emojiReactions[guildID] {
		if containsWord(content, trigger) {
			return emoji, true
		}
	}
	return "", false
}

func (s *State) AddTextReaction(ctx context.Context, r domain.TextReaction) error {
	if err := s.repo.AddTextReaction(ctx, r); err != nil {
		return fmt.Errorf("add text reaction: %w", err)
	}
	s.mu.Lock()
	s.addTextReactionLocked(r)
	s.mu.Unlock()
	return nil
}

func (s *State) RemoveTextReaction(ctx context.Context, guildID, trigger string) error {
	if err := s.repo.RemoveTextReaction(ctx, guildID, trigger); err != nil {
		return fmt.Errorf("remove text reaction: %w", err)
	}
	s.mu.Lock()
	delete(s.textReactions[guildID], trigger)
	s.mu.Unlock()
	return nil
}

func (s *State) AddEmojiReaction(ctx context.Context, r domain.EmojiReaction) error {
	if err := s.repo.AddEmojiReaction(ctx, r); err != nil {
		return fmt.Errorf("add emoji reaction: %w", err)
	}
	s.mu.Lock()
	s.addEmojiReactionLocked(r)
	s.mu.Unlock()
	return nil
}

func (s *State) RemoveEmojiReaction(ctx context.Context, guildID, trigger string) error {
	if err := s.repo.RemoveEmojiReaction(ctx, guildID, trigger); err != nil {
		return fmt.Errorf("remove emoji reaction: %w", err)
	}
	s.mu.Lock()
	delete(s.emojiReactions[guildID], trigger)
	s.mu.Unlock()
	return nil
}

// Message counters

// IncrementMessageCount bumps the cached counter for a user. No I/O happens
// here; the periodic flush reconciles with the store.
func (s *State) IncrementMessageCount(userID string) {
	s.countMu.Lock()
	s.messageCounts[userID]++
	s.countMu.Unlock()
}

// MessageCount returns the cached counter value.
func (s *State) MessageCount(userID string) int64 {
	s.countMu.Lock()
	defer s.countMu.Unlock()
	return s.messageCounts[userID]
}

// FlushMessageCounts writes every cached counter that diverges from its
// stored value. It works on a snapshot taken at call time: an increment that
// lands mid-flush keeps the cache ahead of the store and is picked up by the
// next flush. Returns the number of rows written.
func (s *State) FlushMessageCounts(ctx context.Context) (int, error) {
	s.countMu.Lock()
	snapshot := make(map[string]int64, len(s.messageCounts))
	for id, n := range s.messageCounts {
		snapshot[id] = n
	}
	s.countMu.Unlock()

	if len(snapshot) == 0 {
		return 0, nil
	}

	written := 0
	for userID, count := range snapshot {
		stored, err := s.repo.MessageCount(ctx, userID)
		if err != nil {
			return written, fmt.Errorf("read message count %s: %w", userID, err)
		}
		if stored == count {
			continue
		}
		if err := s.repo.SetMessageCount(ctx, userID, count); err != nil {
			return written, fmt.Errorf("write message count %s: %w", userID, err)
		}
		written++
	}
	return written, nil
}

// --- internal ---

func (s *State) addFilterLocked(f domain.Filter) {
	set, ok := s.filters[f.GuildID]
	if !ok {
		set = make(map[string]struct{})
		s.filters[f.GuildID] = set
	}
	set[f.Trigger] = struct{}{}
}

func (s *State) addTextReactionLocked(r domain.TextReaction) {
	set, ok := s.textReactions[r.GuildID]
	if !ok {
		set = make(map[string]string)
		s.textReactions[r.GuildID] = set
	}
	set[r.Trigger] = r.Response
}

func (s *State) addEmojiReactionLocked(r domain.EmojiReaction) {
	set, ok := s.emojiReactions[r.GuildID]
	if !ok {
		set = make(map[string]string)
		s.emojiReactions[r.GuildID] = set
	}
	set[r.Trigger] = r.Emoji
}
