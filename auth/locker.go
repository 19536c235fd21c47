package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Ashishkumar667/ms-tools/core"
)

// MemoryIdentityLocker serializes refresh-and-persist per identity inside a
// single process. Lock blocks until the identity slot frees or ctx is done,
// so concurrent obtains for the same stale identity queue up instead of
// racing the token endpoint.
type MemoryIdentityLocker struct {
	mu    sync.Mutex
	slots map[string]*identitySlot
}

type identitySlot struct {
	sem  chan struct{}
	refs int
}

func NewMemoryIdentityLocker() *MemoryIdentityLocker {
	return &MemoryIdentityLocker{
		slots: map[string]*identitySlot{},
	}
}

func (l *MemoryIdentityLocker) Lock(ctx context.Context, identity string) (core.IdentityLockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("auth: identity locker is not configured")
	}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, fmt.Errorf("auth: identity is required for lock acquisition")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	slot, ok := l.slots[identity]
	if !ok {
		slot = &identitySlot{sem: make(chan struct{}, 1)}
		l.slots[identity] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.sem <- struct{}{}:
		return &memoryLockHandle{locker: l, identity: identity, slot: slot}, nil
	case <-ctx.Done():
		l.release(identity, slot)
		return nil, fmt.Errorf("auth: lock acquisition for identity %q canceled: %w", identity, ctx.Err())
	}
}

func (l *MemoryIdentityLocker) release(identity string, slot *identitySlot) {
	l.mu.Lock()
	slot.refs--
	if slot.refs <= 0 {
		delete(l.slots, identity)
	}
	l.mu.Unlock()
}

type memoryLockHandle struct {
	locker   *MemoryIdentityLocker
	identity string
	slot     *identitySlot
	once     sync.Once
}

func (h *memoryLockHandle) Unlock() {
	if h == nil || h.locker == nil {
		return
	}
	h.once.Do(func() {
		<-h.slot.sem
		h.locker.release(h.identity, h.slot)
	})
}

var _ core.IdentityLocker = (*MemoryIdentityLocker)(nil)
