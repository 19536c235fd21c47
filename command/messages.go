package command

import (
	"fmt"
	"strings"

	"github.com/Ashishkumar667/ms-tools/core"
)

const (
	TypeObtain       = "mstools.command.credential.obtain"
	TypeRefresh      = "mstools.command.credential.refresh"
	TypeEvict        = "mstools.command.credential.evict"
	TypeWarmAppToken = "mstools.command.app_token.warm"
)

// ObtainMessage requests a usable delegated credential for the supplied
// request tokens.
type ObtainMessage struct {
	Credentials core.RequestCredentials
}

func (ObtainMessage) Type() string { return TypeObtain }

func (m ObtainMessage) Validate() error {
	if !m.Credentials.HasAccessToken() && !m.Credentials.HasRefreshToken() {
		return fmt.Errorf("command: access or refresh token is required")
	}
	return nil
}

// RefreshMessage forces a refresh for a stored identity.
type RefreshMessage struct {
	Identity string
}

func (RefreshMessage) Type() string { return TypeRefresh }

func (m RefreshMessage) Validate() error {
	if strings.TrimSpace(m.Identity) == "" {
		return fmt.Errorf("command: identity is required")
	}
	return nil
}

// EvictMessage drops a stored identity's credential record.
type EvictMessage struct {
	Identity string
}

func (EvictMessage) Type() string { return TypeEvict }

func (m EvictMessage) Validate() error {
	if strings.TrimSpace(m.Identity) == "" {
		return fmt.Errorf("command: identity is required")
	}
	return nil
}

// WarmAppTokenMessage acquires the application token ahead of demand.
type WarmAppTokenMessage struct{}

func (WarmAppTokenMessage) Type() string { return TypeWarmAppToken }

func (WarmAppTokenMessage) Validate() error { return nil }
