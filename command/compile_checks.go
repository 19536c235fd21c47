package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ObtainMessage]       = (*ObtainCommand)(nil)
	_ gocmd.Commander[RefreshMessage]      = (*RefreshCommand)(nil)
	_ gocmd.Commander[EvictMessage]        = (*EvictCommand)(nil)
	_ gocmd.Commander[WarmAppTokenMessage] = (*WarmAppTokenCommand)(nil)
)
