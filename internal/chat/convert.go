package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"rubbergod.cz/discord-bot/internal/common"
)

var (
	userMention    = regexp.MustCompile(`^<@!?(\d+)>$`)
	roleMention    = regexp.MustCompile(`^<@&(\d+)>$`)
	channelMention = regexp.MustCompile(`^<#(\d+)>$`)
	messageLink    = regexp.MustCompile(`^https?://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/channels/(?:\d+|@me)/(\d+)/(\d+)/?$`)
	channelMessage = regexp.MustCompile(`^(\d+)-(\d+)$`)
)

// MessageRef points to a message in a channel.
type MessageRef struct {
	ChannelID string
	MessageID string
}

func isSnowflake(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil && s != "0"
}

// ParseUserID accepts a user mention or a bare id.
func ParseUserID(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if m := userMention.FindStringSubmatch(arg); m != nil {
		return m[1], nil
	}
	if isSnowflake(arg) {
		return arg, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrInvalidMember, arg)
}

// ParseRoleID accepts a role mention or a bare id.
func ParseRoleID(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if m := roleMention.FindStringSubmatch(arg); m != nil {
		return m[1], true
	}
	return arg, isSnowflake(arg)
}

// ParseChannelID accepts a channel mention or a bare id.
func ParseChannelID(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if m := channelMention.FindStringSubmatch(arg); m != nil {
		return m[1], true
	}
	return arg, isSnowflake(arg)
}

// ParseMessageRef accepts a message link, "channelID-messageID" or a bare
// message id, which is looked up in channelID.
func ParseMessageRef(arg, channelID string) (MessageRef, error) {
	arg = strings.TrimSpace(arg)
	if m := messageLink.FindStringSubmatch(arg); m != nil {
		return MessageRef{ChannelID: m[1], MessageID: m[2]}, nil
	}
	if m := channelMessage.FindStringSubmatch(arg); m != nil {
		return MessageRef{ChannelID: m[1], MessageID: m[2]}, nil
	}
	if isSnowflake(arg) {
		return MessageRef{ChannelID: channelID, MessageID: arg}, nil
	}
	return MessageRef{}, fmt.Errorf("%w: %q", common.ErrInvalidMessageRef, arg)
}

// ResolveMember turns the argument into a guild member.
func (c *Context) ResolveMember(arg string) (*discordgo.Member, error) {
	id, err := ParseUserID(arg)
	if err != nil {
		return nil, err
	}
	m, err := c.Session.Member(c.GuildID, id)
	if err != nil || m == nil {
		return nil, fmt.Errorf("%w: %s is not a member", common.ErrInvalidMember, id)
	}
	if m.User == nil {
		m.User = &discordgo.User{ID: id}
	}
	return m, nil
}

// ResolveMessage fetches the message the argument points to. Without an
// argument the message the command replies to is used.
func (c *Context) ResolveMessage(arg string) (*discordgo.Message, error) {
	var ref MessageRef
	switch {
	case arg != "":
		var err error
		if ref, err = ParseMessageRef(arg, c.ChannelID); err != nil {
			return nil, err
		}
	case c.Message != nil && c.Message.MessageReference != nil:
		ref = MessageRef{
			ChannelID: c.Message.MessageReference.ChannelID,
			MessageID: c.Message.MessageReference.MessageID,
		}
		if ref.ChannelID == "" {
			ref.ChannelID = c.ChannelID
		}
	default:
		return nil, fmt.Errorf("%w: missing argument", common.ErrInvalidMessageRef)
	}
	m, err := c.Session.Message(ref.ChannelID, ref.MessageID)
	if err != nil || m == nil {
		return nil, fmt.Errorf("%w: message %s not found", common.ErrInvalidMessageRef, ref.MessageID)
	}
	if m.ChannelID == "" {
		m.ChannelID = ref.ChannelID
	}
	return m, nil
}
