package query

import (
	"context"

	"github.com/Ashishkumar667/ms-tools/resolve"
)

// IdentifierReader is the lookup surface the resolution queries drive.
// Satisfied by *resolve.Resolver.
type IdentifierReader interface {
	ResolveTeam(ctx context.Context, token string, raw string) (string, bool, error)
	ResolveChannel(ctx context.Context, token string, teamID string, raw string) (string, bool, error)
	ResolveUser(ctx context.Context, token string, raw string) (string, bool, error)
	ResolveChat(ctx context.Context, token string, raw string) (string, bool, error)
	FindMeeting(ctx context.Context, token string, criteria resolve.MeetingCriteria) (string, bool, error)
}

// Resolution carries a lookup outcome. Found is false when nothing in the
// directory matched; transport failures surface as errors instead.
type Resolution struct {
	ID    string `json:"id"`
	Found bool   `json:"found"`
}

type ResolveTeamQuery struct {
	reader IdentifierReader
}

func NewResolveTeamQuery(reader IdentifierReader) *ResolveTeamQuery {
	return &ResolveTeamQuery{reader: reader}
}

func (q *ResolveTeamQuery) Query(ctx context.Context, msg ResolveTeamMessage) (Resolution, error) {
	if q == nil || q.reader == nil {
		return Resolution{}, queryDependencyError("query: identifier reader is required")
	}
	id, found, err := q.reader.ResolveTeam(ctx, msg.Token, msg.Identifier)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{ID: id, Found: found}, nil
}

type ResolveChannelQuery struct {
	reader IdentifierReader
}

func NewResolveChannelQuery(reader IdentifierReader) *ResolveChannelQuery {
	return &ResolveChannelQuery{reader: reader}
}

func (q *ResolveChannelQuery) Query(ctx context.Context, msg ResolveChannelMessage) (Resolution, error) {
	if q == nil || q.reader == nil {
		return Resolution{}, queryDependencyError("query: identifier reader is required")
	}
	id, found, err := q.reader.ResolveChannel(ctx, msg.Token, msg.TeamID, msg.Identifier)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{ID: id, Found: found}, nil
}

type ResolveUserQuery struct {
	reader IdentifierReader
}

func NewResolveUserQuery(reader IdentifierReader) *ResolveUserQuery {
	return &ResolveUserQuery{reader: reader}
}

func (q *ResolveUserQuery) Query(ctx context.Context, msg ResolveUserMessage) (Resolution, error) {
	if q == nil || q.reader == nil {
		return Resolution{}, queryDependencyError("query: identifier reader is required")
	}
	id, found, err := q.reader.ResolveUser(ctx, msg.Token, msg.Identifier)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{ID: id, Found: found}, nil
}

type ResolveChatQuery struct {
	reader IdentifierReader
}

func NewResolveChatQuery(reader IdentifierReader) *ResolveChatQuery {
	return &ResolveChatQuery{reader: reader}
}

func (q *ResolveChatQuery) Query(ctx context.Context, msg ResolveChatMessage) (Resolution, error) {
	if q == nil || q.reader == nil {
		return Resolution{}, queryDependencyError("query: identifier reader is required")
	}
	id, found, err := q.reader.ResolveChat(ctx, msg.Token, msg.Identifier)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{ID: id, Found: found}, nil
}

type FindMeetingQuery struct {
	reader IdentifierReader
}

func NewFindMeetingQuery(reader IdentifierReader) *FindMeetingQuery {
	return &FindMeetingQuery{reader: reader}
}

func (q *FindMeetingQuery) Query(ctx context.Context, msg FindMeetingMessage) (Resolution, error) {
	if q == nil || q.reader == nil {
		return Resolution{}, queryDependencyError("query: identifier reader is required")
	}
	id, found, err := q.reader.FindMeeting(ctx, msg.Token, msg.Criteria)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{ID: id, Found: found}, nil
}
