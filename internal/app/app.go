// Package app wires every component of the application together.
// app.go is the composition root: it opens the store, builds the
// repositories, services and handlers and hands them to the bot.
package app

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/bot"
	"rubbergod.cz/discord-bot/internal/bot/filters"
	"rubbergod.cz/discord-bot/internal/bot/middleware"
	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/common"
	"rubbergod.cz/discord-bot/internal/config"
	"rubbergod.cz/discord-bot/internal/db/postgres"
	"rubbergod.cz/discord-bot/internal/db/sqlite"
	"rubbergod.cz/discord-bot/internal/features/directory"
	"rubbergod.cz/discord-bot/internal/features/karma"
	"rubbergod.cz/discord-bot/internal/features/librarian"
	"rubbergod.cz/discord-bot/internal/features/roles"
	"rubbergod.cz/discord-bot/internal/jobs"
)

const userAgent = "rubbergod-discord-bot"

// App holds every component of the application.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler

	close func()
}

// stores are the persistence backends picked by DB_DRIVER.
type stores struct {
	karma     karma.Store
	directory directory.Store
	close     func()
}

// New creates and initializes the application.
// The order matters: components depend on each other.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Database ===
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Discord session ===
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("could not create discord session: %w", err)
	}
	session := chat.NewDiscord(dg)

	loc := common.LoadLocation(cfg.AppTimezone)
	now := common.Clock(loc)
	fetcher := common.NewFetcher(cfg.HTTPTimeout, map[string]string{"User-Agent": userAgent})

	// === 3. Services ===
	karmaService := karma.NewService(st.karma, session, cfg)
	rolesService := roles.NewService(session, cfg)
	directoryService := directory.NewService(st.directory, session, cfg, now)
	librarianService := librarian.NewService(fetcher, cfg, now)

	// === 4. Handlers ===
	karmaHandler := karma.NewHandler(karmaService, cfg)
	directoryHandler := directory.NewHandler(directoryService)
	librarianHandler := librarian.NewHandler(librarianService)

	// === 5. Filters and cooldowns ===
	chatFilter := filters.NewGuildFilter(cfg.GuildID, session)
	rateLimiter := NewRateLimiter(cfg)

	// === 6. Bot ===
	b := bot.New(
		dg, session, cfg,
		karmaService, rolesService,
		chatFilter, rateLimiter,
		karmaHandler, directoryHandler, librarianHandler,
	)

	// === 7. Scheduler ===
	scheduler := jobs.NewScheduler(cfg, session, rateLimiter, librarianService)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		close:     st.close,
	}, nil
}

// NewRateLimiter builds the command cooldowns from the configuration.
func NewRateLimiter(cfg *config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(
		map[string]middleware.Limit{
			karma.CooldownKarma: {
				Requests: cfg.CooldownKarmaRequests,
				Window:   cfg.CooldownKarmaWindow,
			},
			karma.CooldownLeaderboard: {
				Requests: cfg.CooldownLeaderboardRequests,
				Window:   cfg.CooldownLeaderboardWindow,
			},
		},
		middleware.Limit{
			Requests: cfg.CooldownDefaultRequests,
			Window:   cfg.CooldownDefaultWindow,
		},
	)
}

// Run starts the scheduler and serves Discord events until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	defer a.Scheduler.Stop()

	return a.Bot.Start(ctx)
}

// Close releases the database.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

// Migrate brings the schema of the configured database up to date.
func Migrate(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	st.close()
	log.WithField("driver", cfg.DBDriver).Info("Database schema is up to date")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.DBDriver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("could not connect to the database: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		return &stores{
			karma:     karma.NewRepository(pool),
			directory: directory.NewRepository(pool),
			close:     pool.Close,
		}, nil

	case "sqlite":
		models := append(karma.SQLiteModels(), directory.SQLiteModels()...)
		db, err := sqlite.Open(cfg.SQLitePath, models...)
		if err != nil {
			return nil, err
		}
		return &stores{
			karma:     karma.NewSQLiteRepository(db),
			directory: directory.NewSQLiteRepository(db),
			close: func() {
				if sqlDB, err := db.DB(); err == nil {
					sqlDB.Close()
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.DBDriver)
}

