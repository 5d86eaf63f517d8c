// Package directory: handlers.go serves the moderator lookups: whois,
// database, guild and channelinfo.
package directory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"rubbergod.cz/discord-bot/internal/chat"
	"rubbergod.cz/discord-bot/internal/common"
)

const (
	msgMissing       = "_(missing)_"
	msgNotFound      = "No user with this login is in the database."
	msgNotInGuild    = "The user is in the database but not on the server."
	msgMemberInvalid = "Member not found."
	msgRoleInvalid   = "Role not found."
	msgDuplicate     = "This member is already in the database."
	msgWriteError    = "Could not write to the database."
	msgRoleError     = "Roles could not be assigned, the database row was removed again."
	msgDeleteError   = "Nothing was removed from the database."
	msgDeleteSuccess = "%s removed from the database."
	msgInvalidKey    = "The key has to be one of `login`, `group`, `status` or `comment`."
	msgInvalidValue  = "Invalid value for this key."
	msgUpdateSuccess = "Database updated."
	msgInvalidState  = "The state has to be one of %s."

	usageAdd    = "Usage: `database add <member> <login> <group role>`"
	usageRemove = "Usage: `database remove <member>`"
	usageUpdate = "Usage: `database update <member> <key> <value>`"
	usageEmail  = "Usage: `whois email <login>`"
	usageLogins = "Usage: `whois logins <prefix>`"

	maxLoginField  = 1000
	maxLoginFields = 5
)

// unverified is accepted by "database show" in place of unknown.
const unverified = "unverified"

// Handler serves the directory commands. Every command is moderator-only.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Commands returns the command table of the feature.
func (h *Handler) Commands() []*chat.Command {
	return []*chat.Command{
		{
			Name:       "whois",
			Aliases:    []string{"gdo"},
			Help:       "Look up members in the directory.",
			Privileged: true,
			GuildOnly:  true,
			Subcommands: []*chat.Command{
				{Name: "member", Aliases: []string{"tag", "user", "id"}, Help: "Show a member and their row.", Run: h.HandleWhoisMember},
				{Name: "email", Aliases: []string{"login", "xlogin"}, Help: "Find the member with a login.", Run: h.HandleWhoisEmail},
				{Name: "logins", Aliases: []string{"emails"}, Help: "List logins starting with a prefix.", Run: h.HandleWhoisLogins},
			},
		},
		{
			Name:       "database",
			Aliases:    []string{"db"},
			Help:       "Manage the directory.",
			Privileged: true,
			GuildOnly:  true,
			Subcommands: []*chat.Command{
				{Name: "add", Help: "Add a verified member.", Run: h.HandleAdd},
				{Name: "remove", Aliases: []string{"delete"}, Help: "Remove the row of a member.", Run: h.HandleRemove},
				{Name: "update", Help: "Change login, group, status or comment.", Run: h.HandleUpdate},
				{Name: "show", Help: "List rows with a state.", Run: h.HandleShow},
			},
		},
		{
			Name:       "guild",
			Aliases:    []string{"server"},
			Help:       "Show general guild information.",
			Privileged: true,
			GuildOnly:  true,
			Run:        h.HandleGuild,
		},
		{
			Name:       "channelinfo",
			Aliases:    []string{"ci"},
			Help:       "Show channel overwrites and webhooks.",
			Privileged: true,
			GuildOnly:  true,
			Run:        h.HandleChannelInfo,
		},
	}
}

// HandleWhoisMember: "whois member <member>".
func (h *Handler) HandleWhoisMember(c *chat.Context) error {
	member, err := c.ResolveMember(c.Arg(0))
	if err != nil {
		c.Error(msgMemberInvalid)
		return nil
	}
	u, err := h.service.Get(c.Ctx, member.User.ID)
	if err != nil {
		return err
	}
	c.SendCard(h.whoisCard(c, member, u), false)
	c.Log.WithField("target_id", member.User.ID).Info("Directory lookup for member")
	return nil
}

// HandleWhoisEmail: "whois email <login>".
func (h *Handler) HandleWhoisEmail(c *chat.Context) error {
	login := c.Arg(0)
	if login == "" {
		c.Error(usageEmail)
		return nil
	}
	u, err := h.service.GetByLogin(c.Ctx, login)
	if errors.Is(err, common.ErrUserNotFound) {
		c.Notify(msgNotFound)
		return nil
	}
	if err != nil {
		return err
	}
	member, err := c.Session.Member(c.GuildID, u.DiscordID)
	if err != nil {
		c.Notify(msgNotInGuild)
		return nil
	}
	if member.User == nil {
		member.User = &discordgo.User{ID: u.DiscordID}
	}
	c.SendCard(h.whoisCard(c, member, u), false)
	c.Log.WithField("login", login).Info("Directory lookup for login")
	return nil
}

// HandleWhoisLogins: "whois logins <prefix>".
func (h *Handler) HandleWhoisLogins(c *chat.Context) error {
	prefix := c.Arg(0)
	if prefix == "" {
		c.Error(usageLogins)
		return nil
	}
	users, err := h.service.GetByPrefix(c.Ctx, prefix)
	if err != nil {
		return err
	}

	var fields []string
	var field strings.Builder
	for _, u := range users {
		name := ""
		if m, err := c.Session.Member(c.GuildID, u.DiscordID); err == nil && m.User != nil {
			name = m.User.Username
		}
		line := fmt.Sprintf("`%-10s` … %s", name, h.service.Email(u))
		if field.Len()+len(line) > maxLoginField {
			fields = append(fields, field.String())
			field.Reset()
		}
		field.WriteString("\n" + line)
	}
	fields = append(fields, field.String())

	card := c.Card(0)
	card.Description = common.Plural(len(users), "result", "results") + " found."
	for i, f := range fields {
		if i == maxLoginFields {
			card.Field("Too many results", "The rest was omitted, use a longer prefix.", false)
			break
		}
		card.Field("", f, false)
	}
	c.SendCard(card, false)
	c.Log.WithField("prefix", prefix).Info("Directory lookup for login prefix")
	return nil
}

// HandleAdd: "database add <member> <login> <group role>".
func (h *Handler) HandleAdd(c *chat.Context) error {
	if len(c.Args) < 3 {
		c.Error(usageAdd)
		return nil
	}
	member, err := c.ResolveMember(c.Args[0])
	if err != nil {
		c.Error(msgMemberInvalid)
		return nil
	}
	group, err := h.resolveRole(c, c.Rest(2))
	if err != nil {
		c.Error(msgRoleInvalid)
		return nil
	}

	u, err := h.service.Add(c.Ctx, member, c.Args[1], group)
	switch {
	case errors.Is(err, common.ErrDuplicateUser):
		c.Error(msgDuplicate)
		return nil
	case errors.Is(err, common.ErrRoleAssignment):
		c.Log.WithError(err).Error("Directory add rolled back")
		c.Error(msgRoleError)
		return nil
	case errors.Is(err, common.ErrStoreWrite):
		c.Log.WithError(err).Error("Directory add failed")
		c.Error(msgWriteError)
		return nil
	case err != nil:
		return err
	}

	c.SendCard(h.whoisCard(c, member, u), false)
	c.Log.WithFields(log.Fields{"target_id": member.User.ID, "group": group.Name}).Info("Member added to directory")
	return nil
}

// HandleRemove: "database remove <member>".
func (h *Handler) HandleRemove(c *chat.Context) error {
	id, err := chat.ParseUserID(c.Arg(0))
	if err != nil {
		c.Error(usageRemove)
		return nil
	}
	n, err := h.service.Remove(c.Ctx, id)
	if err != nil {
		c.Log.WithError(err).Error("Directory remove failed")
		c.Error(msgWriteError)
		return nil
	}
	if n < 1 {
		c.Error(msgDeleteError)
		return nil
	}
	c.Send(msgDeleteSuccess, common.Plural(n, "user", "users"))
	c.Log.WithField("target_id", id).Info("Member removed from directory")
	return nil
}

// HandleUpdate: "database update <member> <key> <value...>".
func (h *Handler) HandleUpdate(c *chat.Context) error {
	if len(c.Args) < 3 {
		c.Error(usageUpdate)
		return nil
	}
	id, err := chat.ParseUserID(c.Args[0])
	if err != nil {
		c.Error(msgMemberInvalid)
		return nil
	}
	key := c.Args[1]
	value, err := h.service.Update(c.Ctx, id, key, c.Rest(2))
	switch {
	case errors.Is(err, common.ErrInvalidKey):
		c.Error(msgInvalidKey)
		return nil
	case errors.Is(err, common.ErrInvalidGroup), errors.Is(err, common.ErrInvalidStatus):
		c.Error(msgInvalidValue)
		return nil
	case errors.Is(err, common.ErrUserNotFound):
		c.Error(msgNotFound)
		return nil
	case errors.Is(err, common.ErrStoreWrite):
		c.Log.WithError(err).Error("Directory update failed")
		c.Error(msgWriteError)
		return nil
	case err != nil:
		return err
	}

	c.Send(msgUpdateSuccess)
	c.Log.WithFields(log.Fields{"target_id": id, "key": key, "value": value}).Info("Directory row updated")
	return nil
}

// HandleShow: "database show <state>". The card expires.
func (h *Handler) HandleShow(c *chat.Context) error {
	param := strings.ToLower(c.Arg(0))
	if param == unverified {
		param = string(StatusUnknown)
	}
	status, err := ParseStatus(param)
	if err != nil {
		names := []string{"`" + unverified + "`"}
		for _, st := range Statuses {
			names = append(names, "`"+string(st)+"`")
		}
		c.Error(fmt.Sprintf(msgInvalidState, strings.Join(names, ", ")))
		return nil
	}

	users, err := h.service.FilterStatus(c.Ctx, status)
	if err != nil {
		return err
	}

	card := c.Card(0)
	card.Field("Result", common.Plural(len(users), "user", "users")+" found", false)
	if len(users) > 0 {
		card.Field(strings.Repeat("-", 60), "LIST:", false)
	}
	for _, u := range users {
		var name string
		if m, err := c.Session.Member(c.GuildID, u.DiscordID); err == nil && m.User != nil {
			name = fmt.Sprintf("**%s**, %s", m.User.Username, u.DiscordID)
		} else {
			name = fmt.Sprintf("**%s**, %s _(not on server)_", u.DiscordID, u.Group)
		}
		date := common.FormatStamp(u.Changed)
		if date == "" {
			date = "_(none)_"
		}
		card.Field(name, fmt.Sprintf("%s\nLast action on %s", h.service.Email(u), date), true)
	}
	c.SendCard(card, true)
	c.DeleteCommand()
	return nil
}

// HandleGuild: "guild".
func (h *Handler) HandleGuild(c *chat.Context) error {
	g, err := c.Session.Guild(c.GuildID)
	if err != nil {
		return fmt.Errorf("could not load guild %s: %w", c.GuildID, err)
	}

	card := c.Card(0)
	card.Field("Guild **"+g.Name+"**",
		fmt.Sprintf("Created %s, owned by <@%s>", common.SnowflakeDate(g.ID), g.OwnerID), false)

	states := make([]string, 0, len(Statuses))
	for _, st := range Statuses {
		n, err := h.service.CountStatus(c.Ctx, st)
		if err != nil {
			return err
		}
		states = append(states, fmt.Sprintf("**%d** %s", n, st))
	}
	card.Field("Verification states", strings.Join(states, ", "), false)

	groups := make([]string, 0, len(h.service.Groups()))
	for _, name := range h.service.Groups() {
		n, err := h.service.CountGroup(c.Ctx, name)
		if err != nil {
			return err
		}
		groups = append(groups, fmt.Sprintf("**%s** %d", name, n))
	}
	card.Field("Roles", fmt.Sprintf("Total count %d\n%s", len(g.Roles), strings.Join(groups, ", ")), false)

	var categories, text, voice int
	for _, ch := range g.Channels {
		switch ch.Type {
		case discordgo.ChannelTypeGuildCategory:
			categories++
		case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
			text++
		case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
			voice++
		}
	}
	card.Field(fmt.Sprintf("%d categories", categories),
		fmt.Sprintf("%d text channels, %d voice channels", text, voice), true)
	card.Field("Users",
		fmt.Sprintf("Total count **%d**, %d boosters", g.MemberCount, g.PremiumSubscriptionCount), true)
	if g.Icon != "" {
		card.Thumbnail(g.IconURL(""))
	}
	c.SendCard(card, false)
	return nil
}

// HandleChannelInfo: "channelinfo [channel]".
func (h *Handler) HandleChannelInfo(c *chat.Context) error {
	channelID := c.ChannelID
	if arg := c.Arg(0); arg != "" {
		id, ok := chat.ParseChannelID(arg)
		if !ok {
			c.Error("Channel not found.")
			return nil
		}
		channelID = id
	}
	ch, err := c.Session.Channel(channelID)
	if err != nil {
		c.Error("Channel not found.")
		return nil
	}
	hooks, err := c.Session.Webhooks(ch.ID)
	if err != nil {
		c.Log.WithError(err).Debug("Could not list webhooks")
	}

	var roles, users []string
	for _, ow := range ch.PermissionOverwrites {
		switch ow.Type {
		case discordgo.PermissionOverwriteTypeRole:
			roles = append(roles, fmt.Sprintf("%d) <@&%s> (Permissions value: %d)", len(roles)+1, ow.ID, ow.Allow))
		case discordgo.PermissionOverwriteTypeMember:
			users = append(users, fmt.Sprintf("%d) <@%s> (Permissions value: %d)", len(users)+1, ow.ID, ow.Allow))
		}
	}

	var desc strings.Builder
	desc.WriteString("```css\nRole overwrites```")
	desc.WriteString(strings.Join(roles, "\n"))
	if len(users) > 0 {
		desc.WriteString("\n\n```css\nUser overwrites```")
		desc.WriteString(strings.Join(users, "\n"))
	}

	card := c.Card(0)
	card.Title = fmt.Sprintf("Information about `#%s`", ch.Name)
	card.Description = common.Truncate(desc.String(), 4000)
	card.Footer = &discordgo.MessageEmbedFooter{Text: "Channel ID: " + ch.ID}
	card.Field("Channel topic", ch.Topic, true)
	card.Field("Webhooks", strconv.Itoa(len(hooks)), true)
	c.SendCard(card, false)
	return nil
}

// whoisCard describes a member together with their directory row.
func (h *Handler) whoisCard(c *chat.Context, member *discordgo.Member, u *User) *chat.Card {
	card := c.Card(0)
	card.Title = "Whois"
	card.Description = "<@" + member.User.ID + ">"
	if url := member.User.AvatarURL(""); url != "" {
		card.Thumbnail(url)
	}

	name := member.Nick
	if name == "" {
		name = member.User.Username
	}
	joined := msgMissing
	if !member.JoinedAt.IsZero() {
		joined = member.JoinedAt.Format("2006-01-02")
	}
	card.Field("Information", fmt.Sprintf("Name: %s\nAccount since: %s\nMember since: %s",
		name, common.SnowflakeDate(member.User.ID), joined), false)

	if u != nil {
		card.Field("E-mail", orMissing(h.service.Email(*u)), true)
		card.Field("Code", orMissing(u.Code), true)
		card.Field("Status", orMissing(string(u.Status)), true)
		card.Field("Group", orMissing(u.Group), true)
		card.Field("Changed", orMissing(common.FormatStamp(u.Changed)), true)
		if u.Comment != "" {
			card.Field("Comment", u.Comment, false)
		}
	}

	roles := make([]string, 0, len(member.Roles))
	for i := len(member.Roles) - 1; i >= 0; i-- {
		roles = append(roles, "<@&"+member.Roles[i]+">")
	}
	card.Field("Roles", orMissing(strings.Join(roles, ", ")), false)
	return card
}

// resolveRole finds a guild role by mention, id or case-insensitive name.
func (h *Handler) resolveRole(c *chat.Context, arg string) (*discordgo.Role, error) {
	g, err := c.Session.Guild(c.GuildID)
	if err != nil {
		return nil, err
	}
	id, isID := chat.ParseRoleID(arg)
	for _, r := range g.Roles {
		if (isID && r.ID == id) || strings.EqualFold(r.Name, arg) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: role %q", common.ErrNotFound, arg)
}

func orMissing(s string) string {
	if s == "" {
		return msgMissing
	}
	return s
}
