package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Ashishkumar667/ms-tools/core"
)

type fakeEnqueuer struct {
	messages []*core.JobExecutionMessage
	err      error
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, msg *core.JobExecutionMessage) error {
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, msg)
	return nil
}

type fakeDelivery struct {
	message *core.JobExecutionMessage
	acked   bool
	nacked  bool
	nack    core.JobNackOptions
}

func (d *fakeDelivery) Message() *core.JobExecutionMessage { return d.message }

func (d *fakeDelivery) Ack(ctx context.Context) error {
	d.acked = true
	return nil
}

func (d *fakeDelivery) Nack(ctx context.Context, opts core.JobNackOptions) error {
	d.nacked = true
	d.nack = opts
	return nil
}

func newTestSweeper(t *testing.T, store core.CredentialStore, manager *Manager, enqueuer core.JobEnqueuer) *RefreshSweeper {
	t.Helper()
	sweeper, err := NewRefreshSweeper(store, manager, enqueuer, WithSweeperClock(fixedClock))
	if err != nil {
		t.Fatalf("sweeper build failed: %v", err)
	}
	return sweeper
}

func TestSweepEnqueuesOnlyRecordsInsideMargin(t *testing.T) {
	store := newFakeStore()
	store.records["stale"] = core.CredentialRecord{
		Identity:     "stale",
		AccessToken:  "token-stale",
		RefreshToken: "refresh-stale",
		ExpiresAt:    testNow.Add(30 * time.Second),
	}
	store.records["fresh"] = core.CredentialRecord{
		Identity:     "fresh",
		AccessToken:  "token-fresh",
		RefreshToken: "refresh-fresh",
		ExpiresAt:    testNow.Add(time.Hour),
	}
	store.records["no-refresh"] = core.CredentialRecord{
		Identity:    "no-refresh",
		AccessToken: "token-nr",
		ExpiresAt:   testNow.Add(30 * time.Second),
	}
	enqueuer := &fakeEnqueuer{}
	manager := newTestManager(t, store, &fakeExchanger{})
	sweeper := newTestSweeper(t, store, manager, enqueuer)

	enqueued, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if enqueued != 1 || len(enqueuer.messages) != 1 {
		t.Fatalf("expected one enqueued refresh, got %d", enqueued)
	}
	message := enqueuer.messages[0]
	if message.JobID != RefreshJobID {
		t.Fatalf("unexpected job id %q", message.JobID)
	}
	if identity, _ := message.Parameters["identity"].(string); identity != "stale" {
		t.Fatalf("expected stale identity enqueued, got %v", message.Parameters)
	}
	if message.IdempotencyKey != RefreshJobID+":stale" {
		t.Fatalf("unexpected idempotency key %q", message.IdempotencyKey)
	}
}

func TestSweepContinuesPastEnqueueFailures(t *testing.T) {
	store := newFakeStore()
	store.records["stale"] = core.CredentialRecord{
		Identity:     "stale",
		AccessToken:  "token",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Add(30 * time.Second),
	}
	enqueuer := &fakeEnqueuer{err: fmt.Errorf("queue down")}
	manager := newTestManager(t, store, &fakeExchanger{})
	sweeper := newTestSweeper(t, store, manager, enqueuer)

	enqueued, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("enqueue failures must not fail the sweep: %v", err)
	}
	if enqueued != 0 {
		t.Fatalf("expected no successful enqueues, got %d", enqueued)
	}
}

func TestSweepReportsListFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = fmt.Errorf("disk gone")
	manager := newTestManager(t, store, &fakeExchanger{})
	sweeper := newTestSweeper(t, store, manager, &fakeEnqueuer{})

	if _, err := sweeper.Sweep(context.Background()); !core.IsTextCode(err, core.ErrorStoreIO) {
		t.Fatalf("expected store io classification, got %v", err)
	}
}

func TestProcessDeliveryAcksSuccessfulRefresh(t *testing.T) {
	store := newFakeStore()
	store.records["user-1"] = core.CredentialRecord{
		Identity:     "user-1",
		AccessToken:  "token",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Add(30 * time.Second),
	}
	exchanger := &fakeExchanger{
		refreshFn: func(refreshToken string) (core.TokenResponse, error) {
			return core.TokenResponse{
				AccessToken:  "rotated",
				RefreshToken: "rotated-refresh",
				ExpiresAt:    testNow.Add(time.Hour),
			}, nil
		},
	}
	manager := newTestManager(t, store, exchanger)
	sweeper := newTestSweeper(t, store, manager, &fakeEnqueuer{})

	delivery := &fakeDelivery{message: &core.JobExecutionMessage{
		JobID:      RefreshJobID,
		Parameters: map[string]any{"identity": "user-1"},
	}}
	if err := sweeper.ProcessDelivery(context.Background(), delivery); err != nil {
		t.Fatalf("process delivery failed: %v", err)
	}
	if !delivery.acked || delivery.nacked {
		t.Fatalf("expected ack, got %+v", delivery)
	}
	if record, ok := store.record("user-1"); !ok || record.AccessToken != "rotated" {
		t.Fatalf("expected rotated record persisted, got %+v", record)
	}
}

func TestProcessDeliveryAcksUnrecoverableFailure(t *testing.T) {
	store := newFakeStore()
	store.records["user-1"] = core.CredentialRecord{
		Identity:     "user-1",
		AccessToken:  "token",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Add(30 * time.Second),
	}
	exchanger := &fakeExchanger{
		refreshFn: func(refreshToken string) (core.TokenResponse, error) {
			return core.TokenResponse{}, core.NewRefreshFailedError(fmt.Errorf("invalid_grant"), "auth: refresh grant rejected")
		},
	}
	manager := newTestManager(t, store, exchanger)
	sweeper := newTestSweeper(t, store, manager, &fakeEnqueuer{})

	delivery := &fakeDelivery{message: &core.JobExecutionMessage{
		JobID:      RefreshJobID,
		Parameters: map[string]any{"identity": "user-1"},
	}}
	if err := sweeper.ProcessDelivery(context.Background(), delivery); err != nil {
		t.Fatalf("process delivery failed: %v", err)
	}
	if !delivery.acked {
		t.Fatalf("unrecoverable refresh must ack, got %+v", delivery)
	}
	if _, ok := store.record("user-1"); ok {
		t.Fatalf("expected evicted record after rejected refresh")
	}
}

func TestProcessDeliveryNacksTransientFailure(t *testing.T) {
	store := newFakeStore()
	store.getErr = fmt.Errorf("disk wobble")
	manager := newTestManager(t, store, &fakeExchanger{})
	sweeper := newTestSweeper(t, store, manager, &fakeEnqueuer{})

	delivery := &fakeDelivery{message: &core.JobExecutionMessage{
		JobID:      RefreshJobID,
		Parameters: map[string]any{"identity": "user-1"},
	}}
	if err := sweeper.ProcessDelivery(context.Background(), delivery); err != nil {
		t.Fatalf("process delivery failed: %v", err)
	}
	if !delivery.nacked || !delivery.nack.Requeue {
		t.Fatalf("expected requeueing nack, got %+v", delivery)
	}
	if delivery.nack.Delay != sweepRetryDelay {
		t.Fatalf("unexpected retry delay %v", delivery.nack.Delay)
	}
}

func TestProcessDeliveryDeadLettersMalformedMessages(t *testing.T) {
	manager := newTestManager(t, newFakeStore(), &fakeExchanger{})
	sweeper := newTestSweeper(t, newFakeStore(), manager, &fakeEnqueuer{})

	cases := []struct {
		name    string
		message *core.JobExecutionMessage
	}{
		{name: "nil message"},
		{name: "missing identity", message: &core.JobExecutionMessage{JobID: RefreshJobID}},
		{name: "blank identity", message: &core.JobExecutionMessage{
			JobID:      RefreshJobID,
			Parameters: map[string]any{"identity": "  "},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delivery := &fakeDelivery{message: tc.message}
			if err := sweeper.ProcessDelivery(context.Background(), delivery); err != nil {
				t.Fatalf("process delivery failed: %v", err)
			}
			if !delivery.nacked || !delivery.nack.DeadLetter {
				t.Fatalf("expected dead letter nack, got %+v", delivery)
			}
		})
	}
}
