package resolve

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"
)

// MeetingCriteria narrows the caller's event list. Every field is optional;
// with no criteria set the most recent meeting wins.
type MeetingCriteria struct {
	TitleContains string
	Organizer     string
	StartedAfter  time.Time
}

type eventEntry struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	Start     eventTime      `json:"start"`
	Organizer eventOrganizer `json:"organizer"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type eventOrganizer struct {
	EmailAddress struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type eventPage struct {
	Value []eventEntry `json:"value"`
}

// FindMeeting filters the caller's events by the given criteria and returns
// the most recent match. Unlike the other kinds there is no canonical fast
// path; meetings are always located by filtering.
func (r *Resolver) FindMeeting(ctx context.Context, token string, criteria MeetingCriteria) (id string, found bool, err error) {
	defer r.observeResolve(ctx, "meeting", &found, &err)()

	matchOrganizer, organizerFound, err := r.organizerMatcher(ctx, token, criteria.Organizer)
	if err != nil {
		return "", false, err
	}
	if !organizerFound {
		return "", false, nil
	}

	query := url.Values{}
	query.Set("$select", "id,subject,start,organizer")
	var events eventPage
	if err := r.directory.GetJSON(ctx, token, "/me/events", query, &events); err != nil {
		return "", false, err
	}

	title := strings.ToLower(strings.TrimSpace(criteria.TitleContains))
	type candidate struct {
		id      string
		startAt time.Time
	}
	candidates := make([]candidate, 0, len(events.Value))
	for _, event := range events.Value {
		if title != "" && !strings.Contains(strings.ToLower(event.Subject), title) {
			continue
		}
		if !matchOrganizer(event.Organizer) {
			continue
		}
		startAt, parseErr := parseEventTime(event.Start)
		if parseErr != nil {
			continue
		}
		if !criteria.StartedAfter.IsZero() && startAt.Before(criteria.StartedAfter) {
			continue
		}
		candidates = append(candidates, candidate{id: event.ID, startAt: startAt})
	}
	if len(candidates) == 0 {
		return "", false, nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].startAt.After(candidates[j].startAt)
	})
	return candidates[0].id, true, nil
}

// organizerMatcher builds the per-event organizer predicate. An organizer
// criterion goes through the user lookup; an organizer that resolves nowhere
// means no meeting can match.
func (r *Resolver) organizerMatcher(ctx context.Context, token string, raw string) (func(eventOrganizer) bool, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return func(eventOrganizer) bool { return true }, true, nil
	}

	user, found, err := r.lookupUser(ctx, token, raw)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	addresses := make([]string, 0, 3)
	for _, value := range []string{user.Mail, user.UserPrincipalName, raw} {
		if value = strings.TrimSpace(value); value != "" {
			addresses = append(addresses, value)
		}
	}
	names := make([]string, 0, 2)
	for _, value := range []string{user.DisplayName, raw} {
		if value = strings.TrimSpace(value); value != "" {
			names = append(names, value)
		}
	}
	return func(organizer eventOrganizer) bool {
		for _, address := range addresses {
			if strings.EqualFold(organizer.EmailAddress.Address, address) {
				return true
			}
		}
		for _, name := range names {
			if strings.EqualFold(organizer.EmailAddress.Name, name) {
				return true
			}
		}
		return false
	}, true, nil
}

var eventTimeLayouts = []string{
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func parseEventTime(value eventTime) (time.Time, error) {
	raw := strings.TrimSpace(value.DateTime)
	var lastErr error
	for _, layout := range eventTimeLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
