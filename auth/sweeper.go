package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ashishkumar667/ms-tools/core"
)

// RefreshJobID identifies enqueued credential refresh work.
const RefreshJobID = "mstools.credential.refresh"

const sweepRetryDelay = 30 * time.Second

// RefreshSweeper walks the credential store and enqueues refresh work for
// every record inside the expiry margin, keeping long-lived identities warm
// between requests.
type RefreshSweeper struct {
	store    core.CredentialStore
	manager  *Manager
	enqueuer core.JobEnqueuer
	observer core.Observer
	margin   time.Duration
	now      func() time.Time
}

type SweeperOption func(*RefreshSweeper)

func WithSweeperObserver(observer core.Observer) SweeperOption {
	return func(s *RefreshSweeper) {
		s.observer = observer
	}
}

func WithSweeperMargin(margin time.Duration) SweeperOption {
	return func(s *RefreshSweeper) {
		if margin > 0 {
			s.margin = margin
		}
	}
}

func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *RefreshSweeper) {
		if now != nil {
			s.now = now
		}
	}
}

func NewRefreshSweeper(
	store core.CredentialStore,
	manager *Manager,
	enqueuer core.JobEnqueuer,
	opts ...SweeperOption,
) (*RefreshSweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("auth: credential store is required")
	}
	if manager == nil {
		return nil, fmt.Errorf("auth: credential manager is required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("auth: job enqueuer is required")
	}
	sweeper := &RefreshSweeper{
		store:    store,
		manager:  manager,
		enqueuer: enqueuer,
		observer: core.NewObserver(nil, nil),
		margin:   core.DefaultExpiryMarginSeconds * time.Second,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(sweeper)
	}
	return sweeper, nil
}

// Sweep enqueues a refresh message for every stored record that sits inside
// the expiry margin. Returns the number of enqueued jobs.
func (s *RefreshSweeper) Sweep(ctx context.Context) (enqueued int, err error) {
	if s == nil {
		return 0, fmt.Errorf("auth: sweeper is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := s.now()
	defer func() {
		s.observer.ObserveOperation(ctx, startedAt, "credential_sweep", err, map[string]any{
			"enqueued": enqueued,
		})
	}()

	records, err := s.store.List(ctx)
	if err != nil {
		return 0, core.NewStoreIOError(err, "auth: credential sweep listing failed")
	}

	now := s.now()
	for _, record := range records {
		state := core.ResolveTokenState(now, record, s.margin)
		if !core.ShouldRefresh(state) {
			continue
		}
		message := &core.JobExecutionMessage{
			JobID: RefreshJobID,
			Parameters: map[string]any{
				"identity": record.Identity,
			},
			IdempotencyKey: RefreshJobID + ":" + record.Identity,
			DedupPolicy:    "ignore",
		}
		if enqueueErr := s.enqueuer.Enqueue(ctx, message); enqueueErr != nil {
			s.observer.LogError(ctx, "refresh enqueue failed", map[string]any{
				"identity": record.Identity,
				"error":    enqueueErr.Error(),
			})
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// ProcessDelivery executes one dequeued refresh job. Unrecoverable refresh
// failures ack the delivery (the entry is already evicted); transient
// failures nack with a delay.
func (s *RefreshSweeper) ProcessDelivery(ctx context.Context, delivery core.JobDelivery) error {
	if s == nil {
		return fmt.Errorf("auth: sweeper is nil")
	}
	if delivery == nil {
		return fmt.Errorf("auth: delivery is required")
	}
	message := delivery.Message()
	if message == nil {
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "missing message"})
	}
	identity := ""
	if raw, ok := message.Parameters["identity"].(string); ok {
		identity = strings.TrimSpace(raw)
	}
	if identity == "" {
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: "missing identity parameter"})
	}

	_, err := s.manager.Refresh(ctx, identity)
	if err == nil {
		return delivery.Ack(ctx)
	}
	if core.IsTextCode(err, core.ErrorRefreshFailed) || core.IsTextCode(err, core.ErrorAuthRequired) {
		// Terminal for this identity until the caller re-consents.
		s.observer.LogError(ctx, "refresh job dropped unrecoverable identity", map[string]any{
			"identity": identity,
			"error":    err.Error(),
		})
		return delivery.Ack(ctx)
	}
	return delivery.Nack(ctx, core.JobNackOptions{
		Delay:   sweepRetryDelay,
		Requeue: true,
		Reason:  err.Error(),
	})
}
