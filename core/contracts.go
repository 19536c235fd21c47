package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// CredentialStore maps caller identity to durable credential state.
// Implementations mirror every mutation to durable storage (write-through);
// Get returns found=false for unknown identities, never an error.
type CredentialStore interface {
	Get(ctx context.Context, identity string) (CredentialRecord, bool, error)
	Put(ctx context.Context, record CredentialRecord) error
	Delete(ctx context.Context, identity string) error
	List(ctx context.Context) ([]CredentialRecord, error)
}

// TokenExchanger performs token endpoint grants against the authority.
type TokenExchanger interface {
	RefreshGrant(ctx context.Context, refreshToken string) (TokenResponse, error)
	ClientCredentialsGrant(ctx context.Context) (TokenResponse, error)
}

// IdentityLocker serializes refresh-and-persist for a single identity.
// Unlock must be safe to call once per successful Lock.
type IdentityLocker interface {
	Lock(ctx context.Context, identity string) (IdentityLockHandle, error)
}

type IdentityLockHandle interface {
	Unlock()
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
