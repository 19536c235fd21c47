package resolve

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Ashishkumar667/ms-tools/core"
	"github.com/Ashishkumar667/ms-tools/graph"
)

// DirectoryClient is the slice of the directory API the resolver needs.
// Satisfied by *graph.Client.
type DirectoryClient interface {
	GetJSON(ctx context.Context, token string, path string, query url.Values, out any) error
}

// Resolver turns human-supplied identifiers (names, emails, meeting titles)
// into canonical directory IDs. Every lookup is case-insensitive and first
// match wins; "not found" is reported as found=false with a nil error,
// distinct from transport failures which propagate.
type Resolver struct {
	directory DirectoryClient
	observer  core.Observer
	now       func() time.Time
}

type ResolverOption func(*Resolver)

func WithResolverObserver(observer core.Observer) ResolverOption {
	return func(r *Resolver) {
		r.observer = observer
	}
}

func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewResolver(directory DirectoryClient, opts ...ResolverOption) (*Resolver, error) {
	if directory == nil {
		return nil, fmt.Errorf("resolve: directory client is required")
	}
	resolver := &Resolver{
		directory: directory,
		observer:  core.NewObserver(nil, nil),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(resolver)
	}
	return resolver, nil
}

type directoryEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type directoryEntryPage struct {
	Value []directoryEntry `json:"value"`
}

type userEntry struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

type userEntryPage struct {
	Value []userEntry `json:"value"`
}

type chatEntry struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
}

type chatEntryPage struct {
	Value []chatEntry `json:"value"`
}

// ResolveTeam resolves a team name to its group ID. Canonical GUIDs return
// unchanged without a lookup. Names search the caller's joined teams first,
// then fall back to the org-wide group listing; the org-wide pass is best
// effort and authorization failures there report not-found instead of
// erroring.
func (r *Resolver) ResolveTeam(ctx context.Context, token string, raw string) (id string, found bool, err error) {
	defer r.observeResolve(ctx, "team", &found, &err)()

	parsed := ParseIdentifier(raw, ShapeGUID)
	if parsed.Value == "" {
		return "", false, nil
	}
	if parsed.Canonical {
		return parsed.Value, true, nil
	}

	var joined directoryEntryPage
	if err := r.directory.GetJSON(ctx, token, "/me/joinedTeams", nil, &joined); err != nil {
		return "", false, err
	}
	for _, team := range joined.Value {
		if strings.EqualFold(team.DisplayName, parsed.Value) {
			return team.ID, true, nil
		}
	}

	query := url.Values{}
	query.Set("$filter", "displayName eq '"+escapeFilterValue(parsed.Value)+"'")
	query.Set("$select", "id,displayName")
	var orgWide directoryEntryPage
	if err := r.directory.GetJSON(ctx, token, "/groups", query, &orgWide); err != nil {
		if graph.IsForbidden(err) {
			return "", false, nil
		}
		return "", false, err
	}
	for _, group := range orgWide.Value {
		if strings.EqualFold(group.DisplayName, parsed.Value) {
			return group.ID, true, nil
		}
	}
	return "", false, nil
}

// ResolveChannel resolves a channel name within an already-resolved team.
func (r *Resolver) ResolveChannel(ctx context.Context, token string, teamID string, raw string) (id string, found bool, err error) {
	defer r.observeResolve(ctx, "channel", &found, &err)()

	parsed := ParseIdentifier(raw, ShapeThread)
	if parsed.Value == "" {
		return "", false, nil
	}
	if parsed.Canonical {
		return parsed.Value, true, nil
	}
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return "", false, fmt.Errorf("resolve: team scope is required for channel lookup")
	}

	var channels directoryEntryPage
	if err := r.directory.GetJSON(ctx, token, "/teams/"+url.PathEscape(teamID)+"/channels", nil, &channels); err != nil {
		return "", false, err
	}
	for _, channel := range channels.Value {
		if strings.EqualFold(channel.DisplayName, parsed.Value) {
			return channel.ID, true, nil
		}
	}
	return "", false, nil
}

// ResolveUser resolves an email or display name to a user ID. Inputs
// containing "@" try an email-prefix match before the display-name-prefix
// match; the last resort addresses the input directly as a principal name,
// where a 404 means not-found rather than an error.
func (r *Resolver) ResolveUser(ctx context.Context, token string, raw string) (id string, found bool, err error) {
	defer r.observeResolve(ctx, "user", &found, &err)()

	user, found, err := r.lookupUser(ctx, token, raw)
	if err != nil || !found {
		return "", false, err
	}
	return user.ID, true, nil
}

func (r *Resolver) lookupUser(ctx context.Context, token string, raw string) (userEntry, bool, error) {
	parsed := ParseIdentifier(raw, ShapeGUID)
	if parsed.Value == "" {
		return userEntry{}, false, nil
	}
	if parsed.Canonical {
		return userEntry{ID: parsed.Value}, true, nil
	}

	escaped := escapeFilterValue(parsed.Value)
	if strings.Contains(parsed.Value, "@") {
		user, found, err := r.queryUsers(ctx, token, "startswith(mail,'"+escaped+"')")
		if err != nil || found {
			return user, found, err
		}
	}
	user, found, err := r.queryUsers(ctx, token, "startswith(displayName,'"+escaped+"')")
	if err != nil || found {
		return user, found, err
	}

	var direct userEntry
	directErr := r.directory.GetJSON(ctx, token, "/users/"+url.PathEscape(parsed.Value), nil, &direct)
	if directErr != nil {
		if graph.IsNotFound(directErr) {
			return userEntry{}, false, nil
		}
		return userEntry{}, false, directErr
	}
	return direct, direct.ID != "", nil
}

func (r *Resolver) queryUsers(ctx context.Context, token string, filter string) (userEntry, bool, error) {
	query := url.Values{}
	query.Set("$filter", filter)
	query.Set("$select", "id,displayName,mail,userPrincipalName")
	var page userEntryPage
	if err := r.directory.GetJSON(ctx, token, "/users", query, &page); err != nil {
		return userEntry{}, false, err
	}
	if len(page.Value) == 0 {
		return userEntry{}, false, nil
	}
	return page.Value[0], true, nil
}

// ResolveChat resolves a chat topic to the conversation thread ID.
func (r *Resolver) ResolveChat(ctx context.Context, token string, raw string) (id string, found bool, err error) {
	defer r.observeResolve(ctx, "chat", &found, &err)()

	parsed := ParseIdentifier(raw, ShapeThread)
	if parsed.Value == "" {
		return "", false, nil
	}
	if parsed.Canonical {
		return parsed.Value, true, nil
	}

	var chats chatEntryPage
	if err := r.directory.GetJSON(ctx, token, "/me/chats", nil, &chats); err != nil {
		return "", false, err
	}
	for _, chat := range chats.Value {
		if strings.EqualFold(chat.Topic, parsed.Value) {
			return chat.ID, true, nil
		}
	}
	return "", false, nil
}

func (r *Resolver) observeResolve(ctx context.Context, kind string, found *bool, errOut *error) func() {
	startedAt := r.now()
	return func() {
		r.observer.ObserveOperation(ctx, startedAt, "identifier_resolve", *errOut, map[string]any{
			"kind":  kind,
			"found": *found,
		})
	}
}

// OData string literals escape single quotes by doubling them.
func escapeFilterValue(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}
