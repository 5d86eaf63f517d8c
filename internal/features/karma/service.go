// Package karma: service.go is the voting engine: it turns reactions into
// votes and keeps the aggregates in step with them.
package karma

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/common"
	"rubbergod.cz/discord-bot/internal/config"
)

// MaxStart bounds leaderboard offsets from above, exclusive.
const MaxStart = 100000000

// revoteGrace is how long after a revote the echoed "all reactions
// removed" event is ignored for that message.
const revoteGrace = time.Minute

// Service manages karma voting.
type Service struct {
	store    Store
	session  chat.Session
	emojis   EmojiTable
	channels map[string]bool
	pageSize int

	// every mutation of one message runs under its lock
	locks *common.KeyedMutex

	// messages whose reactions the bot cleared in Revote
	mu      sync.Mutex
	revoted map[string]time.Time
	now     func() time.Time
}

// NewService creates the karma engine.
func NewService(store Store, session chat.Session, cfg *config.Config) *Service {
	channels := make(map[string]bool, len(cfg.KarmaChannelIDs))
	for _, id := range cfg.KarmaChannelIDs {
		channels[id] = true
	}
	pageSize := cfg.LeaderboardPageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Service{
		store:    store,
		session:  session,
		emojis:   EmojiTable(cfg.KarmaEmojis),
		channels: channels,
		pageSize: pageSize,
		locks:    common.NewKeyedMutex(),
		revoted:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// eligible reports whether votes on the message count.
func (s *Service) eligible(ctx context.Context, m *discordgo.Message) (bool, error) {
	if len(s.channels) == 0 || s.channels[m.ChannelID] {
		return true, nil
	}
	return s.store.IsOpen(ctx, m.ID)
}

// HandleReactionAdd records the vote behind a reaction. Reactions that do
// not count are ignored without error.
func (s *Service) HandleReactionAdd(ctx context.Context, r chat.Reaction) error {
	value, ok := s.emojis.Value(r.Emoji)
	if !ok || r.UserID == s.session.BotID() {
		return nil
	}

	logger := log.WithFields(log.Fields{
		"component":  "karma",
		"message_id": r.MessageID,
		"voter_id":   r.UserID,
		"emoji":      r.Emoji,
	})

	m, err := s.session.Message(r.ChannelID, r.MessageID)
	if err != nil {
		logger.WithError(err).Debug("Message of reaction not available")
		return nil
	}
	if m.Author == nil || m.Author.ID == r.UserID {
		logger.Debug("Self vote ignored")
		return nil
	}
	if m.ChannelID == "" {
		m.ChannelID = r.ChannelID
	}
	ok, err = s.eligible(ctx, m)
	if err != nil {
		return fmt.Errorf("eligibility check: %w", err)
	}
	if !ok {
		return nil
	}

	unlock := s.locks.Lock(r.MessageID)
	defer unlock()

	previous, changed, err := s.store.Cast(ctx, Vote{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		VoterID:   r.UserID,
		Value:     value,
	})
	if err != nil {
		return fmt.Errorf("cast vote: %w", err)
	}
	if changed {
		logger.WithFields(log.Fields{
			"author_id": m.Author.ID,
			"previous":  previous,
			"value":     value,
		}).Debug("Vote recorded")
	}
	return nil
}

// HandleReactionRemove withdraws the vote when it still carries the value
// of the removed emoji.
func (s *Service) HandleReactionRemove(ctx context.Context, r chat.Reaction) error {
	value, ok := s.emojis.Value(r.Emoji)
	if !ok || r.UserID == s.session.BotID() {
		return nil
	}

	unlock := s.locks.Lock(r.MessageID)
	defer unlock()

	removed, err := s.store.Retract(ctx, r.MessageID, r.UserID, value)
	if err != nil {
		return fmt.Errorf("retract vote: %w", err)
	}
	if removed {
		log.WithFields(log.Fields{
			"component":  "karma",
			"message_id": r.MessageID,
			"voter_id":   r.UserID,
			"value":      value,
		}).Debug("Vote withdrawn")
	}
	return nil
}

// HandleReactionsCleared drops the votes of a message whose reactions were
// all removed.
func (s *Service) HandleReactionsCleared(ctx context.Context, messageID string) error {
	unlock := s.locks.Lock(messageID)
	defer unlock()

	if s.takeRevoted(messageID) {
		log.WithField("message_id", messageID).Debug("Reactions cleared by revote, votes kept")
		return nil
	}

	n, err := s.store.ClearMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("clear votes: %w", err)
	}
	if n > 0 {
		log.WithFields(log.Fields{"message_id": messageID, "votes": n}).Info("Votes cleared with reactions")
	}
	return nil
}

// Open makes m eligible for voting and seeds it with the vote emojis.
func (s *Service) Open(ctx context.Context, m *discordgo.Message, openedBy string) error {
	unlock := s.locks.Lock(m.ID)
	defer unlock()

	if err := s.store.OpenMessage(ctx, m.ID, m.ChannelID, authorID(m), openedBy); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreWrite, err)
	}
	s.seed(m)
	return nil
}

// Revote forgets every vote on m and starts the voting over. It returns
// how many votes were dropped.
func (s *Service) Revote(ctx context.Context, m *discordgo.Message, openedBy string) (int, error) {
	unlock := s.locks.Lock(m.ID)
	defer unlock()

	n, err := s.store.ClearMessage(ctx, m.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrStoreWrite, err)
	}
	if err := s.store.OpenMessage(ctx, m.ID, m.ChannelID, authorID(m), openedBy); err != nil {
		return n, fmt.Errorf("%w: %v", common.ErrStoreWrite, err)
	}
	if err := s.session.RemoveAllReactions(m.ChannelID, m.ID); err != nil {
		log.WithError(err).WithField("message_id", m.ID).Debug("Could not clear reactions")
	} else {
		s.markRevoted(m.ID)
		m.Reactions = nil
	}
	s.seed(m)
	return n, nil
}

// markRevoted remembers that the bot itself cleared the reactions of
// messageID. Expired marks are dropped on the way.
func (s *Service) markRevoted(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, at := range s.revoted {
		if now.Sub(at) > revoteGrace {
			delete(s.revoted, id)
		}
	}
	s.revoted[messageID] = now
}

// takeRevoted consumes a fresh revote mark of messageID.
func (s *Service) takeRevoted(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.revoted[messageID]
	if !ok {
		return false
	}
	delete(s.revoted, messageID)
	return s.now().Sub(at) <= revoteGrace
}

// seed adds the vote emojis the bot has not added yet. Failures are ignored.
func (s *Service) seed(m *discordgo.Message) {
	present := make(map[string]bool)
	for _, r := range m.Reactions {
		if r.Me && r.Emoji != nil {
			present[r.Emoji.APIName()] = true
		}
	}
	for _, e := range s.emojis.Sorted() {
		if present[e.Emoji] {
			continue
		}
		if err := s.session.AddReaction(m.ChannelID, m.ID, e.Emoji); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"message_id": m.ID,
				"emoji":      e.Emoji,
			}).Debug("Could not add vote reaction")
		}
	}
}

// Leaderboard returns one page starting at the 1-based position start.
func (s *Service) Leaderboard(ctx context.Context, column Column, dir Direction, start int) ([]Entry, error) {
	if start <= 0 || start >= MaxStart {
		return nil, common.ErrOffsetRange
	}
	entries, err := s.store.Leaderboard(ctx, column, dir, start-1, s.pageSize)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = start + i
	}
	return entries, nil
}

// Get returns the totals of userID.
func (s *Service) Get(ctx context.Context, userID string) (Totals, error) {
	return s.store.Totals(ctx, userID)
}

// Give adds amount of karma to each user. A failed write is reported as
// ErrStoreWrite together with the users already credited.
func (s *Service) Give(ctx context.Context, userIDs []string, amount int) ([]string, error) {
	done := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if err := s.store.Give(ctx, id, amount); err != nil {
			return done, fmt.Errorf("%w: %v", common.ErrStoreWrite, err)
		}
		done = append(done, id)
	}
	return done, nil
}

// MessageKarma returns the live votes of a message.
func (s *Service) MessageKarma(ctx context.Context, messageID string) (Tally, error) {
	return s.store.Tally(ctx, messageID)
}

// EmojiValues lists the vote emojis, highest weight first.
func (s *Service) EmojiValues() []EmojiValue {
	return s.emojis.Sorted()
}

func authorID(m *discordgo.Message) string {
	if m.Author == nil {
		return ""
	}
	return m.Author.ID
}
