package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/Ashishkumar667/ms-tools/core"
)

// CredentialService is the mutating surface the commands drive. Satisfied by
// the root facade.
type CredentialService interface {
	Obtain(ctx context.Context, creds core.RequestCredentials) (core.AccessCredential, error)
	Refresh(ctx context.Context, identity string) (core.AccessCredential, error)
	Evict(ctx context.Context, identity string) error
	AppToken(ctx context.Context) (core.AccessCredential, error)
}

type ObtainCommand struct {
	service CredentialService
}

func NewObtainCommand(service CredentialService) *ObtainCommand {
	return &ObtainCommand{service: service}
}

func (c *ObtainCommand) Execute(ctx context.Context, msg ObtainMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.Obtain(ctx, msg.Credentials)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshCommand struct {
	service CredentialService
}

func NewRefreshCommand(service CredentialService) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, msg RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.Refresh(ctx, msg.Identity)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type EvictCommand struct {
	service CredentialService
}

func NewEvictCommand(service CredentialService) *EvictCommand {
	return &EvictCommand{service: service}
}

func (c *EvictCommand) Execute(ctx context.Context, msg EvictMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	return c.service.Evict(ctx, msg.Identity)
}

type WarmAppTokenCommand struct {
	service CredentialService
}

func NewWarmAppTokenCommand(service CredentialService) *WarmAppTokenCommand {
	return &WarmAppTokenCommand{service: service}
}

func (c *WarmAppTokenCommand) Execute(ctx context.Context, msg WarmAppTokenMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	out, err := c.service.AppToken(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
