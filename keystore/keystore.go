package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"sync"

	"opay/db"
	"opay/errors"
	"opay/logx"
)

const (
	privKeyPrefix = "key:"
	pubKeyPrefix  = "pub:"
)

// KeyStore owns the per-user P-256 signing keypair. All persistence is
// local-only; the private key never leaves the device store.
type KeyStore struct {
	mu         sync.RWMutex
	dbProvider db.DatabaseProvider
}

// NewKeyStore creates a key store over the shared durable provider
func NewKeyStore(dbProvider db.DatabaseProvider) (*KeyStore, error) {
	if dbProvider == nil {
		return nil, fmt.Errorf("provider cannot be nil")
	}

	return &KeyStore{
		dbProvider: dbProvider,
	}, nil
}

// EnsureKeypair provisions a keypair for userID if none exists yet. It
// returns the SPKI-encoded public key only when a new pair was generated,
// so the caller knows to register it with the remote system; nil means a
// keypair already exists and no action is needed.
func (ks *KeyStore) EnsureKeypair(userID string) ([]byte, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	exists, err := ks.dbProvider.Has(privKey(userID))
	if err != nil {
		return nil, fmt.Errorf("could not check key existence for %s: %w", userID, err)
	}
	if exists {
		return nil, nil
	}

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.NewError(errors.ErrCodeSigningFailure, errors.ErrMsgSigningFailure)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encode public key: %w", err)
	}

	// Both halves land in one atomic batch so a crash cannot leave a
	// private key without its registrable public half.
	batch := ks.dbProvider.Batch()
	defer batch.Close()
	batch.Put(privKey(userID), privDER)
	batch.Put(pubKey(userID), pubDER)
	if err := batch.Write(); err != nil {
		return nil, fmt.Errorf("failed to persist keypair for %s: %w", userID, err)
	}

	logx.Info("KEYSTORE", "Generated signing keypair | user_id=", userID)
	return pubDER, nil
}

// LoadPrivateKey loads the signing key for userID. A missing key means the
// user has never authenticated online on this device (or storage was
// cleared), so offline signing is impossible.
func (ks *KeyStore) LoadPrivateKey(userID string) (*ecdsa.PrivateKey, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	privDER, err := ks.dbProvider.Get(privKey(userID))
	if err != nil {
		return nil, fmt.Errorf("could not read key for %s: %w", userID, err)
	}
	if privDER == nil {
		return nil, errors.NewError(errors.ErrCodeKeyNotFound, errors.ErrMsgKeyNotFound)
	}

	key, err := x509.ParsePKCS8PrivateKey(privDER)
	if err != nil {
		return nil, fmt.Errorf("stored key for %s is corrupt: %w", userID, err)
	}
	ecdsaKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("stored key for %s is not an EC key", userID)
	}
	return ecdsaKey, nil
}

// PublicKey returns the stored SPKI public key for userID, for registration
// retries.
func (ks *KeyStore) PublicKey(userID string) ([]byte, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	pubDER, err := ks.dbProvider.Get(pubKey(userID))
	if err != nil {
		return nil, fmt.Errorf("could not read public key for %s: %w", userID, err)
	}
	if pubDER == nil {
		return nil, errors.NewError(errors.ErrCodeKeyNotFound, errors.ErrMsgKeyNotFound)
	}
	return pubDER, nil
}

// ParsePublicKey decodes an SPKI public key, the format handed to the
// verifier at registration.
func ParsePublicKey(pubDER []byte) (*ecdsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(pubDER)
	if err != nil {
		return nil, fmt.Errorf("invalid SPKI public key: %w", err)
	}
	ecdsaPub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not an EC key")
	}
	return ecdsaPub, nil
}

func privKey(userID string) []byte {
	return []byte(privKeyPrefix + userID)
}

func pubKey(userID string) []byte {
	return []byte(pubKeyPrefix + userID)
}
