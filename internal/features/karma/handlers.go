// Package karma: handlers.go serves the karma and leaderboard commands.
package karma

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/common"
	"rubbergod.cz/discord-bot/internal/config"
)

const (
	msgInvalidCommand     = "<@%s> Unknown karma command. Try `karma`, `karma stalk`, `karma get`, `karma vote`, `karma revote`, `karma give` or `karma message`."
	msgMemberNotFound     = "<@%s> Member not found."
	msgVoteRoomOnly       = "<@%s> Voting can only be started in <#%s>."
	msgInsufficientRights = "<@%s> You do not have the rights for this."
	msgMessageFormat      = "<@%s> Point to a message with a link, `channelID-messageID`, its id, or reply to it."
	msgOffsetError        = "<@%s> The start has to be a number from 1 to 99999999."
	msgGiveFormat         = "<@%s> Usage: `karma give <amount> <member...>`, amount is a non-zero number."
	msgGiveFailed         = "Karma could not be saved: %d of %d members were credited before the failure."
	msgGiveSuccess        = "%s karma given to %s."
	msgStoreError         = "The karma database did not accept the change."
)

// Cooldown buckets of the karma commands.
const (
	CooldownKarma       = "karma"
	CooldownLeaderboard = "leaderboard"
)

type board struct {
	name   string
	title  string
	column Column
	dir    Direction
}

var boards = []board{
	{name: "leaderboard", title: "Karma leaderboard", column: ColumnReceived, dir: Desc},
	{name: "bajkarboard", title: "Karma bajkarboard", column: ColumnReceived, dir: Asc},
	{name: "givingboard", title: "Karma givingboard", column: ColumnGiven, dir: Desc},
	{name: "ishaboard", title: "Karma ishaboard", column: ColumnGiven, dir: Asc},
}

// Handler serves karma commands.
type Handler struct {
	service       *Service
	voteChannelID string
	adminID       string
}

// NewHandler creates the karma command handler.
func NewHandler(service *Service, cfg *config.Config) *Handler {
	return &Handler{
		service:       service,
		voteChannelID: cfg.VoteChannelID,
		adminID:       cfg.AdminID,
	}
}

// Commands returns the command table of the feature.
func (h *Handler) Commands() []*chat.Command {
	karma := &chat.Command{
		Name:     "karma",
		Help:     "Show your karma.",
		Cooldown: CooldownKarma,
		Run:      h.HandleKarma,
		Subcommands: []*chat.Command{
			{Name: "stalk", Help: "Show the karma of another member.", Run: h.HandleStalk},
			{Name: "get", Help: "List the vote emojis and their values.", GuildOnly: true, Run: h.HandleGet},
			{Name: "vote", Help: "Open a message for karma voting.", GuildOnly: true, Run: h.HandleVote},
			{Name: "revote", Help: "Drop all votes of a message and vote again.", GuildOnly: true, Run: h.HandleRevote},
			{Name: "give", Help: "Give karma to members.", Run: h.HandleGive},
			{Name: "message", Help: "Show the karma of a message.", Run: h.HandleMessage},
		},
	}

	cmds := []*chat.Command{karma}
	for _, b := range boards {
		b := b
		cmds = append(cmds, &chat.Command{
			Name:     b.name,
			Help:     b.title,
			Cooldown: CooldownLeaderboard,
			Run: func(c *chat.Context) error {
				return h.HandleLeaderboard(c, b)
			},
		})
	}
	return cmds
}

// HandleKarma: "karma" with no subcommand shows the caller's own karma.
func (h *Handler) HandleKarma(c *chat.Context) error {
	if len(c.Args) > 0 {
		c.Send(msgInvalidCommand, c.AuthorID())
		return nil
	}
	t, err := h.service.Get(c.Ctx, c.AuthorID())
	if err != nil {
		return err
	}
	c.Send("<@%s> %s", c.AuthorID(), describe(t))
	c.RoomCheck()
	return nil
}

// HandleStalk: "karma stalk <member>".
func (h *Handler) HandleStalk(c *chat.Context) error {
	member, err := c.ResolveMember(c.Rest(0))
	if err != nil {
		c.Send(msgMemberNotFound, c.AuthorID())
		return nil
	}
	t, err := h.service.Get(c.Ctx, member.User.ID)
	if err != nil {
		return err
	}
	c.Send("**%s**: %s", displayName(member.Nick, member.User.Username, member.User.ID), describe(t))
	c.RoomCheck()
	return nil
}

// HandleGet: "karma get" lists the vote emojis.
func (h *Handler) HandleGet(c *chat.Context) error {
	var b strings.Builder
	for _, e := range h.service.EmojiValues() {
		fmt.Fprintf(&b, "%s %s\n", Mention(e.Emoji), common.FormatSigned(e.Value))
	}
	card := c.Card(0)
	card.Field("Vote emojis", b.String(), false)
	c.SendCard(card, false)
	c.RoomCheck()
	return nil
}

// allowedToVote reports whether the invocation may open a vote.
func (h *Handler) allowedToVote(c *chat.Context) bool {
	return c.AuthorID() == h.adminID || (h.voteChannelID != "" && c.ChannelID == h.voteChannelID)
}

// HandleVote: "karma vote <msg>".
func (h *Handler) HandleVote(c *chat.Context) error {
	if !h.allowedToVote(c) {
		c.Send(msgVoteRoomOnly, c.AuthorID(), h.voteChannelID)
		return nil
	}
	target, err := c.ResolveMessage(c.Rest(0))
	c.DeleteCommand()
	if err != nil {
		c.Send(msgMessageFormat, c.AuthorID())
		return nil
	}
	if err := h.service.Open(c.Ctx, target, c.AuthorID()); err != nil {
		if errors.Is(err, common.ErrStoreWrite) {
			c.Error(msgStoreError)
			return nil
		}
		return err
	}
	c.Log.WithField("message_id", target.ID).Info("Voting opened")
	return nil
}

// HandleRevote: "karma revote <msg>".
func (h *Handler) HandleRevote(c *chat.Context) error {
	if !h.allowedToVote(c) {
		c.Send(msgVoteRoomOnly, c.AuthorID(), h.voteChannelID)
		return nil
	}
	target, err := c.ResolveMessage(c.Rest(0))
	c.DeleteCommand()
	if err != nil {
		c.Send(msgMessageFormat, c.AuthorID())
		return nil
	}
	n, err := h.service.Revote(c.Ctx, target, c.AuthorID())
	if err != nil {
		if errors.Is(err, common.ErrStoreWrite) {
			c.Error(msgStoreError)
			return nil
		}
		return err
	}
	c.Log.WithFields(log.Fields{"message_id": target.ID, "dropped": n}).Info("Voting restarted")
	return nil
}

// HandleGive: "karma give <amount> <member...>", admin only.
func (h *Handler) HandleGive(c *chat.Context) error {
	if c.AuthorID() != h.adminID {
		c.Send(msgInsufficientRights, c.AuthorID())
		return nil
	}
	if len(c.Args) < 2 {
		c.Send(msgGiveFormat, c.AuthorID())
		return nil
	}
	amount, err := strconv.Atoi(c.Args[0])
	if err != nil || amount == 0 {
		c.Send(msgGiveFormat, c.AuthorID())
		return nil
	}

	ids := make([]string, 0, len(c.Args)-1)
	for _, arg := range c.Args[1:] {
		member, err := c.ResolveMember(arg)
		if err != nil {
			c.Send(msgMemberNotFound, c.AuthorID())
			return nil
		}
		ids = append(ids, member.User.ID)
	}

	done, err := h.service.Give(c.Ctx, ids, amount)
	if err != nil {
		c.Log.WithError(err).WithField("amount", amount).Error("Karma give failed")
		c.Error(fmt.Sprintf(msgGiveFailed, len(done), len(ids)))
		return nil
	}

	mentions := make([]string, len(done))
	for i, id := range done {
		mentions[i] = "<@" + id + ">"
	}
	c.Send(msgGiveSuccess, common.FormatSigned(amount), strings.Join(mentions, ", "))
	return nil
}

// HandleMessage: "karma message <msg>".
func (h *Handler) HandleMessage(c *chat.Context) error {
	target, err := c.ResolveMessage(c.Rest(0))
	if err != nil {
		c.Send(msgMessageFormat, c.AuthorID())
		return nil
	}
	t, err := h.service.MessageKarma(c.Ctx, target.ID)
	if err != nil {
		return err
	}

	card := c.Card(0)
	card.Description = fmt.Sprintf("https://discord.com/channels/%s/%s/%s", c.GuildID, target.ChannelID, target.ID)
	if target.Author != nil {
		card.Field("Author", "<@"+target.Author.ID+">", true)
	}
	card.Field("Positive", strconv.Itoa(t.Positive), true)
	card.Field("Negative", strconv.Itoa(t.Negative), true)
	card.Field("Total", common.FormatSigned(t.Total), true)
	card.Field("Voters", strconv.Itoa(t.Voters), true)
	c.SendCard(card, false)
	c.RoomCheck()
	return nil
}

// HandleLeaderboard renders one page of a leaderboard.
func (h *Handler) HandleLeaderboard(c *chat.Context, b board) error {
	start := 1
	if arg := c.Arg(0); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil {
			c.Send(msgOffsetError, c.AuthorID())
			return nil
		}
		start = n
	}

	entries, err := h.service.Leaderboard(c.Ctx, b.column, b.dir, start)
	if errors.Is(err, common.ErrOffsetRange) {
		c.Send(msgOffsetError, c.AuthorID())
		return nil
	}
	if err != nil {
		return err
	}

	var lines strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&lines, "%d – <@%s>: **%d**\n", e.Rank, e.UserID, e.Value)
	}
	if lines.Len() == 0 {
		lines.WriteString("Nobody here yet.")
	}

	card := c.Card(0)
	card.Description = fmt.Sprintf("**%s** (%s)", b.title, b.column)
	card.Field(fmt.Sprintf("From %d", start), lines.String(), false)
	c.SendCard(card, false)
	c.RoomCheck()
	return nil
}

func describe(t Totals) string {
	if t.ReceivedRank == 0 {
		return "no karma yet."
	}
	return fmt.Sprintf("karma **%d** (#%d), given **%d** (#%d).",
		t.Received, t.ReceivedRank, t.Given, t.GivenRank)
}

func displayName(nick, username, id string) string {
	switch {
	case nick != "":
		return nick
	case username != "":
		return username
	default:
		return id
	}
}
