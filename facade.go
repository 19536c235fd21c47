package mstools

import (
	"fmt"

	"github.com/Ashishkumar667/ms-tools/command"
	"github.com/Ashishkumar667/ms-tools/query"
)

// CommandQueryService is the surface the facade's handlers dispatch into.
type CommandQueryService interface {
	command.CredentialService
	query.IdentifierReader
}

type Commands struct {
	Obtain       *command.ObtainCommand
	Refresh      *command.RefreshCommand
	Evict        *command.EvictCommand
	WarmAppToken *command.WarmAppTokenCommand
}

type Queries struct {
	ResolveTeam    *query.ResolveTeamQuery
	ResolveChannel *query.ResolveChannelQuery
	ResolveUser    *query.ResolveUserQuery
	ResolveChat    *query.ResolveChatQuery
	FindMeeting    *query.FindMeetingQuery
}

// Facade bundles the command and query handlers built around one service.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("mstools: command/query service is required")
	}
	facade := &Facade{service: service}
	facade.commands = Commands{
		Obtain:       command.NewObtainCommand(service),
		Refresh:      command.NewRefreshCommand(service),
		Evict:        command.NewEvictCommand(service),
		WarmAppToken: command.NewWarmAppTokenCommand(service),
	}
	facade.queries = Queries{
		ResolveTeam:    query.NewResolveTeamQuery(service),
		ResolveChannel: query.NewResolveChannelQuery(service),
		ResolveUser:    query.NewResolveUserQuery(service),
		ResolveChat:    query.NewResolveChatQuery(service),
		FindMeeting:    query.NewFindMeetingQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
