package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/Ashishkumar667/ms-tools/resolve"
)

var (
	_ gocmd.Querier[ResolveTeamMessage, Resolution]    = (*ResolveTeamQuery)(nil)
	_ gocmd.Querier[ResolveChannelMessage, Resolution] = (*ResolveChannelQuery)(nil)
	_ gocmd.Querier[ResolveUserMessage, Resolution]    = (*ResolveUserQuery)(nil)
	_ gocmd.Querier[ResolveChatMessage, Resolution]    = (*ResolveChatQuery)(nil)
	_ gocmd.Querier[FindMeetingMessage, Resolution]    = (*FindMeetingQuery)(nil)

	_ IdentifierReader = (*resolve.Resolver)(nil)
)
