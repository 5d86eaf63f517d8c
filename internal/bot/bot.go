// Package bot is the core of the bot: Discord session lifecycle, event
// dispatch, command access control and cooldowns.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/bot/filters"
	"rubbergod.cz/discord-bot/internal/bot/middleware"
	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/config"
	"rubbergod.cz/discord-bot/internal/features/karma"
	"rubbergod.cz/discord-bot/internal/features/roles"
)

const (
	msgUnknownCommand = "<@%s> Unknown command. Type `%shelp` for the list of commands."
	msgNoRights       = "<@%s> You do not have the rights for this command."
	msgGuildOnly      = "<@%s> This command only works on the server."
	msgCooldown       = "<@%s> Slow down, try again in %s."
	msgFailed         = "The command failed, the error was logged."
)

// DefaultBucket is the cooldown bucket of commands that name none.
const DefaultBucket = "default"

// Intents are the gateway events the bot subscribes to.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Feature is anything that contributes commands.
type Feature interface {
	Commands() []*chat.Command
}

// Bot is the main structure tying the components together.
type Bot struct {
	dg      *discordgo.Session
	session chat.Session
	cfg     *config.Config

	settings    *chat.Settings
	chatFilter  *filters.GuildFilter
	rateLimiter *middleware.RateLimiter
	parser      *CommandParser
	registry    *Registry
	modRoles    map[string]bool

	karmaService *karma.Service
	rolesService *roles.Service

	// bounds the number of events handled at once
	inflight chan struct{}
}

// New creates the bot. dg may be nil when the bot is only used to
// dispatch events, as in tests. karmaService and rolesService are
// optional.
func New(
	dg *discordgo.Session,
	session chat.Session,
	cfg *config.Config,
	karmaService *karma.Service,
	rolesService *roles.Service,
	chatFilter *filters.GuildFilter,
	rateLimiter *middleware.RateLimiter,
	features ...Feature,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}
	modRoles := make(map[string]bool, len(cfg.ModRoleIDs))
	for _, id := range cfg.ModRoleIDs {
		modRoles[id] = true
	}

	b := &Bot{
		dg:      dg,
		session: session,
		cfg:     cfg,
		settings: &chat.Settings{
			Prefix:      cfg.CommandPrefix,
			Delay:       cfg.EmbedDelay,
			ColorBase:   cfg.ColorBase,
			ColorError:  cfg.ColorError,
			ColorNotify: cfg.ColorNotify,
			BotRooms:    cfg.BotRoomIDs,
		},
		chatFilter:   chatFilter,
		rateLimiter:  rateLimiter,
		parser:       NewCommandParser(cfg.CommandPrefix),
		registry:     NewRegistry(),
		modRoles:     modRoles,
		karmaService: karmaService,
		rolesService: rolesService,
		inflight:     make(chan struct{}, maxInFlight),
	}
	for _, f := range features {
		b.registry.Register(f.Commands()...)
	}
	b.registry.Register(&chat.Command{Name: "help", Help: "List the commands.", Run: b.handleHelp})
	return b
}

// Settings returns the presentation settings used for replies.
func (b *Bot) Settings() *chat.Settings {
	return b.settings
}

// Start connects to the gateway and serves events until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	if b.dg == nil {
		return fmt.Errorf("bot has no discord session")
	}
	b.dg.Identify.Intents = Intents
	b.dg.StateEnabled = true

	b.dg.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.spawn(ctx, func(ctx context.Context) { b.HandleMessage(ctx, m.Message) })
	})
	b.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
		b.spawn(ctx, func(ctx context.Context) { b.HandleReactionAdd(ctx, r.MessageReaction, r.Member) })
	})
	b.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
		b.spawn(ctx, func(ctx context.Context) { b.HandleReactionRemove(ctx, r.MessageReaction) })
	})
	b.dg.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionRemoveAll) {
		b.spawn(ctx, func(ctx context.Context) { b.HandleReactionsCleared(ctx, r.MessageReaction) })
	})
	b.dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.WithFields(log.Fields{
			"user":   r.User.Username,
			"guilds": len(r.Guilds),
		}).Info("Connected to Discord")
	})

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("could not open discord session: %w", err)
	}
	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"prefix":       b.cfg.CommandPrefix,
	}).Info("Bot started and waiting for events...")

	<-ctx.Done()
	log.Info("Bot is stopping (ctx done)...")
	return b.dg.Close()
}

// spawn runs fn on its own goroutine once an in-flight slot is free.
func (b *Bot) spawn(ctx context.Context, fn func(ctx context.Context)) {
	select {
	case b.inflight <- struct{}{}:
	case <-ctx.Done():
		return
	}
	go func() {
		defer func() { <-b.inflight }()
		fn(ctx)
	}()
}

// HandleMessage serves one created message: role messages get their
// reactions, commands are dispatched.
func (b *Bot) HandleMessage(ctx context.Context, m *discordgo.Message) {
	entry := middleware.EventLogger("message_create", log.Fields{"message_id": m.ID})
	defer middleware.RecoverFromPanic(entry)

	if m.Author == nil {
		return
	}
	if b.rolesService != nil && b.cfg.FeatureRolesEnabled && m.GuildID != "" {
		b.safely(entry, "roles", func() { b.rolesService.HandleMessage(ctx, m) })
	}
	if m.Author.Bot {
		return
	}

	words, isCommand := b.parser.ParseCommand(m.Content)
	if !isCommand {
		return
	}
	middleware.LogMessage(entry, m)

	// Access check (configured guild or DM of a member)
	if !b.chatFilter.CheckAccess(m) {
		return
	}

	c := chat.NewContext(ctx, b.session, b.settings, entry.WithField("user_id", m.Author.ID), m)
	if c.Member == nil && m.GuildID != "" {
		if member, err := b.session.Member(m.GuildID, m.Author.ID); err == nil {
			c.Member = member
		}
	}

	match, ok := b.registry.Resolve(words)
	if !ok {
		entry.WithField("cmd", words[0]).Debug("Unknown command")
		c.Send(msgUnknownCommand, c.AuthorID(), b.settings.Prefix)
		return
	}
	c.Path = match.Path
	c.Args = match.Args
	c.Log = c.Log.WithField("cmd", c.Command())

	b.dispatch(c, match)
}

// dispatch checks access and cooldown, then runs the command.
func (b *Bot) dispatch(c *chat.Context, match Match) {
	cmd := match.Command
	guildOnly := match.Root.GuildOnly || cmd.GuildOnly
	privileged := match.Root.Privileged || cmd.Privileged

	if (guildOnly || privileged) && c.GuildID == "" {
		c.Send(msgGuildOnly, c.AuthorID())
		return
	}
	if privileged && !b.isModerator(c) {
		c.Log.Info("Privileged command refused")
		c.Send(msgNoRights, c.AuthorID())
		return
	}

	bucket := match.Root.Cooldown
	if bucket == "" {
		bucket = DefaultBucket
	}
	if allowed, wait := b.rateLimiter.Allow(bucket, c.AuthorID()); !allowed {
		c.Log.WithField("bucket", bucket).Debug("rate limited")
		if m := c.Send(msgCooldown, c.AuthorID(), wait.Round(time.Second)); m != nil {
			c.DeleteLater(m.ChannelID, m.ID, b.settings.Delay)
		}
		return
	}

	if cmd.Run == nil {
		c.SendCard(cmd.Usage(c), false)
		return
	}

	c.Log.WithField("args", c.Args).Debug("routing command")
	if err := cmd.Run(c); err != nil {
		c.Log.WithError(err).Error("Command failed")
		c.Error(msgFailed)
	}
}

// isModerator reports whether the invoking member is the admin or holds a
// moderator role.
func (b *Bot) isModerator(c *chat.Context) bool {
	if c.AuthorID() == b.cfg.AdminID {
		return true
	}
	if c.Member == nil {
		return false
	}
	for _, r := range c.Member.Roles {
		if b.modRoles[r] {
			return true
		}
	}
	return false
}

func (b *Bot) handleHelp(c *chat.Context) error {
	card := c.Card(0)
	for _, cmd := range b.registry.Commands() {
		if cmd.Privileged && !b.isModerator(c) {
			continue
		}
		card.Field(b.settings.Prefix+cmd.Name, cmd.Help, true)
	}
	c.SendCard(card, true)
	c.RoomCheck()
	return nil
}

// reaction reduces a gateway reaction event.
func reaction(r *discordgo.MessageReaction, member *discordgo.Member) chat.Reaction {
	return chat.Reaction{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.APIName(),
		Member:    member,
	}
}

// HandleReactionAdd feeds an added reaction to karma and roles.
func (b *Bot) HandleReactionAdd(ctx context.Context, r *discordgo.MessageReaction, member *discordgo.Member) {
	entry := middleware.EventLogger("reaction_add", log.Fields{"message_id": r.MessageID, "user_id": r.UserID})
	defer middleware.RecoverFromPanic(entry)

	if !b.chatFilter.AllowGuild(r.GuildID) {
		return
	}
	ev := reaction(r, member)
	if b.karmaService != nil && b.cfg.FeatureKarmaEnabled {
		b.safely(entry, "karma", func() {
			if err := b.karmaService.HandleReactionAdd(ctx, ev); err != nil {
				entry.WithError(err).Error("Karma vote failed")
			}
		})
	}
	if b.rolesService != nil && b.cfg.FeatureRolesEnabled {
		b.safely(entry, "roles", func() { b.rolesService.Add(ctx, ev) })
	}
}

// HandleReactionRemove feeds a removed reaction to karma and roles.
func (b *Bot) HandleReactionRemove(ctx context.Context, r *discordgo.MessageReaction) {
	entry := middleware.EventLogger("reaction_remove", log.Fields{"message_id": r.MessageID, "user_id": r.UserID})
	defer middleware.RecoverFromPanic(entry)

	if !b.chatFilter.AllowGuild(r.GuildID) {
		return
	}
	ev := reaction(r, nil)
	if b.karmaService != nil && b.cfg.FeatureKarmaEnabled {
		b.safely(entry, "karma", func() {
			if err := b.karmaService.HandleReactionRemove(ctx, ev); err != nil {
				entry.WithError(err).Error("Karma retract failed")
			}
		})
	}
	if b.rolesService != nil && b.cfg.FeatureRolesEnabled {
		b.safely(entry, "roles", func() { b.rolesService.Remove(ctx, ev) })
	}
}

// HandleReactionsCleared drops the votes of a message whose reactions
// were all removed.
func (b *Bot) HandleReactionsCleared(ctx context.Context, r *discordgo.MessageReaction) {
	entry := middleware.EventLogger("reaction_remove_all", log.Fields{"message_id": r.MessageID})
	defer middleware.RecoverFromPanic(entry)

	if !b.chatFilter.AllowGuild(r.GuildID) || b.karmaService == nil || !b.cfg.FeatureKarmaEnabled {
		return
	}
	if err := b.karmaService.HandleReactionsCleared(ctx, r.MessageID); err != nil {
		entry.WithError(err).Error("Clearing votes failed")
	}
}

// safely runs fn in its own recovery scope so one feature cannot take
// down the others.
func (b *Bot) safely(entry *log.Entry, component string, fn func()) {
	defer middleware.RecoverFromPanic(entry.WithField("feature", component))
	fn()
}
