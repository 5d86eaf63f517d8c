// Package jobs runs the background tasks (cron).
// scheduler.go sets up the schedule: cooldown cleanup every few minutes
// and the daily nameday post.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/bot/middleware"
	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/common"
	"rubbergod.cz/discord-bot/internal/config"
	"rubbergod.cz/discord-bot/internal/features/librarian"
)

const cleanupSpec = "*/5 * * * *"

// NamedaySource produces the text of today's nameday greeting.
type NamedaySource interface {
	NamedayText(ctx context.Context, lang string) (string, error)
}

// Scheduler runs the background tasks.
type Scheduler struct {
	cron        *cron.Cron
	cfg         *config.Config
	session     chat.Session
	rateLimiter *middleware.RateLimiter
	nameday     NamedaySource
}

// NewScheduler creates the scheduler in the guild's time zone.
// nameday may be nil, the nameday post is then skipped.
func NewScheduler(cfg *config.Config, session chat.Session, rateLimiter *middleware.RateLimiter, nameday NamedaySource) *Scheduler {
	loc := common.LoadLocation(cfg.AppTimezone)

	return &Scheduler{
		cron:        cron.New(cron.WithLocation(loc)),
		cfg:         cfg,
		session:     session,
		rateLimiter: rateLimiter,
		nameday:     nameday,
	}
}

// Start registers every job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(cleanupSpec, func() { s.CleanupCooldowns() }); err != nil {
		return fmt.Errorf("cooldown cleanup job: %w", err)
	}

	if s.nameday != nil && s.cfg.NamedayChannelID != "" {
		if _, err := s.cron.AddFunc(s.cfg.NamedayCron, func() {
			if err := s.PostNameday(ctx); err != nil {
				log.WithError(err).Error("[CRON] Nameday post failed")
			}
		}); err != nil {
			return fmt.Errorf("nameday job %q: %w", s.cfg.NamedayCron, err)
		}
	}

	s.cron.Start()
	log.WithField("tz", s.cfg.AppTimezone).Info("Scheduler started")
	return nil
}

// CleanupCooldowns forgets users whose cooldown windows are empty.
func (s *Scheduler) CleanupCooldowns() {
	if s.rateLimiter == nil {
		return
	}
	removed := s.rateLimiter.Cleanup()
	log.WithFields(log.Fields{
		"removed": removed,
		"tracked": s.rateLimiter.Len(),
	}).Debug("[CRON] Cooldowns cleaned up")
}

// PostNameday sends today's Czech nameday greeting to the nameday channel.
func (s *Scheduler) PostNameday(ctx context.Context) error {
	text, err := s.nameday.NamedayText(ctx, librarian.LangCzech)
	if err != nil {
		return fmt.Errorf("could not fetch nameday: %w", err)
	}
	if _, err := s.session.SendMessage(s.cfg.NamedayChannelID, text); err != nil {
		return fmt.Errorf("could not post nameday: %w", err)
	}
	log.WithField("channel_id", s.cfg.NamedayChannelID).Info("[CRON] Nameday posted")
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}
