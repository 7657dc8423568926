package engine

import (
	"context"
	"encoding/base64"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"opay/errors"
	"opay/events"
	"opay/keystore"
	"opay/logx"
	"opay/monitoring"
	"opay/queue"
	"opay/signer"
	"opay/types"
)

// RemoteVerifier is the slice of the verifier client the engine drives.
type RemoteVerifier interface {
	Sync(ctx context.Context, batch []*types.TransactionPayload) ([]string, error)
	RegisterPublicKey(ctx context.Context, userID, publicKeyB64 string) error
}

// Engine orchestrates KeyStore, Signer and PendingQueue: it creates signed
// transaction records fully offline and drives the sync protocol against the
// remote verifier when triggered.
type Engine struct {
	keyStore *keystore.KeyStore
	pending  *queue.PendingQueue
	remote   RemoteVerifier
	bus      *events.EventBus

	syncInterval time.Duration
	syncInFlight atomic.Bool
}

type Config struct {
	SyncInterval time.Duration
}

func NewEngine(ks *keystore.KeyStore, pq *queue.PendingQueue, remote RemoteVerifier, bus *events.EventBus, cfg Config) *Engine {
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &Engine{
		keyStore:     ks,
		pending:      pq,
		remote:       remote,
		bus:          bus,
		syncInterval: interval,
	}
}

// CreateOfflineTransaction builds, signs and durably queues a payment
// instruction. It never performs a network call; offline execution is a hard
// requirement, not a fallback. Creation-path errors are returned to the
// caller verbatim and must be shown to the user.
func (e *Engine) CreateOfflineTransaction(ctx context.Context, senderID, receiverID string, amount decimal.Decimal) (*types.TransactionPayload, error) {
	payload := &types.TransactionPayload{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Nonce:      uuid.NewString(),
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	canonical := signer.Canonicalize(payload.SenderID, payload.ReceiverID, payload.Amount, payload.Nonce)

	priv, err := e.keyStore.LoadPrivateKey(senderID)
	if err != nil {
		return nil, err
	}

	sig, err := signer.SignBase64(priv, canonical)
	if err != nil {
		return nil, err
	}
	payload.Signature = sig

	if err := e.pending.Enqueue(payload); err != nil {
		return nil, err
	}

	monitoring.IncreaseCreatedTxCount()
	logx.Info("ENGINE", "Created offline transaction | nonce=", payload.Nonce, " sender=", senderID, " state=", types.TxStateQueued)
	return payload, nil
}

// SyncPending uploads the whole pending batch in one request and removes only
// confirmed entries. Overlapping invocations coalesce: a second trigger while
// one sync is in flight is a no-op, never a duplicate batch upload.
func (e *Engine) SyncPending(ctx context.Context) error {
	if !e.syncInFlight.CompareAndSwap(false, true) {
		logx.Debug("ENGINE", "Sync already in flight, coalescing trigger")
		return nil
	}
	defer e.syncInFlight.Store(false)

	batch, err := e.pending.ListAll()
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	monitoring.IncreaseSyncAttemptCount()
	logx.Info("ENGINE", "Attempting to sync ", len(batch), " transactions | state=", types.TxStateSyncAttempted)

	accepted, err := e.remote.Sync(ctx, batch)
	if err != nil {
		e.recordSyncFailure(err)
		logx.Warn("ENGINE", "Batch not confirmed | state=", types.TxStateSyncFailed, " size=", len(batch))
		return err
	}

	confirmed := batch
	if accepted != nil {
		acceptedSet := make(map[string]struct{}, len(accepted))
		for _, nonce := range accepted {
			acceptedSet[nonce] = struct{}{}
		}
		confirmed = confirmed[:0]
		for _, payload := range batch {
			if _, ok := acceptedSet[payload.Nonce]; ok {
				confirmed = append(confirmed, payload)
			}
		}
	}

	for _, payload := range confirmed {
		if err := e.pending.Remove(payload.Nonce); err != nil {
			return err
		}
	}

	monitoring.IncreaseConfirmedTxCount(len(confirmed))
	logx.Info("ENGINE", "Sync confirmed ", len(confirmed), " of ", len(batch), " transactions | state=", types.TxStateConfirmed)
	if e.bus != nil && len(confirmed) > 0 {
		e.bus.Publish(events.NewSyncCompleted(len(confirmed)))
	}
	return nil
}

// ProvisionKeys idempotently ensures a keypair for userID and registers the
// public key with the remote system when a new pair was generated. Requires
// connectivity only on first provisioning.
func (e *Engine) ProvisionKeys(ctx context.Context, userID string) (created bool, err error) {
	pubDER, err := e.keyStore.EnsureKeypair(userID)
	if err != nil {
		return false, err
	}
	if pubDER == nil {
		return false, nil
	}
	pubB64 := base64.StdEncoding.EncodeToString(pubDER)
	if err := e.remote.RegisterPublicKey(ctx, userID, pubB64); err != nil {
		// keypair stays usable locally; registration is retried via keygen
		logx.Warn("ENGINE", "Public key registration failed, retry with keygen: ", err)
		return true, err
	}
	return true, nil
}

// Run subscribes to boundary triggers and drives sync until ctx is done:
// an offline-to-online transition on the bus and a periodic ticker. Sync
// failures are background noise here, only logged and counted.
func (e *Engine) Run(ctx context.Context) {
	id, ch := e.bus.Subscribe()
	defer e.bus.Unsubscribe(id)

	ticker := time.NewTicker(e.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Type() == events.EventConnectivityOnline {
				logx.Info("ENGINE", "Connectivity regained, triggering sync")
				e.trySync(ctx)
			}
		case <-ticker.C:
			e.trySync(ctx)
		}
	}
}

func (e *Engine) trySync(ctx context.Context) {
	if err := e.SyncPending(ctx); err != nil {
		// retried on the next trigger, never surfaced to the user
		logx.Warn("ENGINE", "Sync attempt failed, queue retained: ", err)
	}
}

func (e *Engine) recordSyncFailure(err error) {
	switch {
	case errors.IsCode(err, errors.ErrCodeSyncUnavailable):
		monitoring.RecordSyncFailure(monitoring.SyncTokenExpired)
	case errors.IsCode(err, errors.ErrCodeSyncRejected):
		monitoring.RecordSyncFailure(monitoring.SyncRejected)
	default:
		monitoring.RecordSyncFailure(monitoring.SyncTransport)
	}
}
