package query

import (
	"fmt"
	"strings"

	"github.com/Ashishkumar667/ms-tools/resolve"
)

const (
	TypeResolveTeam    = "mstools.query.resolve.team"
	TypeResolveChannel = "mstools.query.resolve.channel"
	TypeResolveUser    = "mstools.query.resolve.user"
	TypeResolveChat    = "mstools.query.resolve.chat"
	TypeFindMeeting    = "mstools.query.resolve.meeting"
)

// ResolveTeamMessage maps a team name or GUID to its directory ID.
type ResolveTeamMessage struct {
	Token      string
	Identifier string
}

func (ResolveTeamMessage) Type() string { return TypeResolveTeam }

func (m ResolveTeamMessage) Validate() error {
	return validateLookup(m.Token, m.Identifier)
}

// ResolveChannelMessage maps a channel name or thread ID within a team.
type ResolveChannelMessage struct {
	Token      string
	TeamID     string
	Identifier string
}

func (ResolveChannelMessage) Type() string { return TypeResolveChannel }

func (m ResolveChannelMessage) Validate() error {
	return validateLookup(m.Token, m.Identifier)
}

// ResolveUserMessage maps an email, display name, principal name, or GUID
// to a user ID.
type ResolveUserMessage struct {
	Token      string
	Identifier string
}

func (ResolveUserMessage) Type() string { return TypeResolveUser }

func (m ResolveUserMessage) Validate() error {
	return validateLookup(m.Token, m.Identifier)
}

// ResolveChatMessage maps a chat topic or thread ID to a chat ID.
type ResolveChatMessage struct {
	Token      string
	Identifier string
}

func (ResolveChatMessage) Type() string { return TypeResolveChat }

func (m ResolveChatMessage) Validate() error {
	return validateLookup(m.Token, m.Identifier)
}

// FindMeetingMessage locates the most recent calendar event matching the
// supplied criteria. All criteria fields are optional.
type FindMeetingMessage struct {
	Token    string
	Criteria resolve.MeetingCriteria
}

func (FindMeetingMessage) Type() string { return TypeFindMeeting }

func (m FindMeetingMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return fmt.Errorf("query: token is required")
	}
	return nil
}

func validateLookup(token, identifier string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("query: token is required")
	}
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("query: identifier is required")
	}
	return nil
}
