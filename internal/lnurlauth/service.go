// Package lnurlauth implements the passwordless login correlation protocol:
// a browser requests a challenge, a wallet signs it out of band and the
// browser learns about the signature by push or by polling, then claims the
// wallet key exactly once.
package lnurlauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Default correlation entry lifetimes.
const (
	// DefaultSignedTTL evicts a signed, unclaimed entry 15 minutes after the
	// wallet signature. The clock starts at signing, not at creation.
	DefaultSignedTTL = 15 * time.Minute
	// DefaultPendingTTL bounds how long an unsigned challenge stays known.
	// The original design let unsigned challenges linger indefinitely; a
	// finite window keeps the store bounded while a browser polling an
	// expired challenge simply sees "not found" and requests a new one.
	DefaultPendingTTL = time.Hour
)

// Config holds the service settings.
type Config struct {
	// AuthOrigin is the externally reachable base URL of the login callback.
	AuthOrigin string `yaml:"auth-origin"`

	SignedTTL  time.Duration `yaml:"signed-ttl"`
	PendingTTL time.Duration `yaml:"pending-ttl"`
}

// Service correlates wallet signatures to waiting browser sessions.
type Service struct {
	store Store
	hub   *Hub
	cfg   Config
}

// NewService constructs a Service.
func NewService(store Store, hub *Hub, cfg Config) *Service {
	if cfg.SignedTTL <= 0 {
		cfg.SignedTTL = DefaultSignedTTL
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	return &Service{store: store, hub: hub, cfg: cfg}
}

// Challenge is a freshly issued login challenge.
type Challenge struct {
	// Lnurl is the wallet-encoded login URL carrying the secret.
	Lnurl string `json:"encoded"`
	// Hash is the public correlation hash the browser polls or subscribes on.
	Hash string `json:"hash"`
}

// CreateChallenge issues a new one-time login challenge. The correlation
// hash is a one-way content hash of the secret, so knowing the hash does not
// allow signing the challenge.
func (s *Service) CreateChallenge(ctx context.Context) (*Challenge, error) {
	secret := make([]byte, 32)
	if _, errRead := rand.Read(secret); errRead != nil {
		return nil, errRead
	}
	k1 := hex.EncodeToString(secret)
	sum := sha256.Sum256(secret)
	hash := hex.EncodeToString(sum[:])

	if errPut := s.store.Put(ctx, hash, Entry{K1: k1}, s.cfg.PendingTTL); errPut != nil {
		return nil, errPut
	}

	callback := fmt.Sprintf("%s/api/auth/login?tag=login&k1=%s&action=login", s.cfg.AuthOrigin, k1)
	lnurl, errEncode := EncodeLnurl(callback)
	if errEncode != nil {
		return nil, errEncode
	}
	return &Challenge{Lnurl: lnurl, Hash: hash}, nil
}

// HandleCallback processes the wallet's signed response. On success the
// correlation entry records the linking key, its eviction clock starts and a
// subscribed browser is notified immediately.
func (s *Service) HandleCallback(ctx context.Context, k1Hex, sigHex, keyHex string) error {
	secret, errDecode := hex.DecodeString(k1Hex)
	if errDecode != nil {
		return ErrUnknownChallenge
	}
	sum := sha256.Sum256(secret)
	hash := hex.EncodeToString(sum[:])

	entry, errGet := s.store.Get(ctx, hash)
	if errGet != nil {
		return errGet
	}
	if entry == nil || entry.K1 != k1Hex {
		return ErrUnknownChallenge
	}
	if errVerify := VerifySignature(k1Hex, sigHex, keyHex); errVerify != nil {
		return errVerify
	}

	entry.LinkingKey = keyHex
	entry.SignedAt = time.Now().Unix()
	if errPut := s.store.Put(ctx, hash, *entry, s.cfg.SignedTTL); errPut != nil {
		return errPut
	}

	s.hub.Notify(hash, EventLoggedIn)
	return nil
}

// Subscribe registers a websocket connection waiting for the given hash and
// pushes immediately when the challenge is already signed.
func (s *Service) Subscribe(ctx context.Context, hash string, conn *websocket.Conn) error {
	s.hub.Subscribe(hash, conn)
	entry, errGet := s.store.Get(ctx, hash)
	if errGet != nil {
		s.hub.Notify(hash, EventError)
		return errGet
	}
	if entry != nil && entry.Signed() {
		s.hub.Notify(hash, EventLoggedIn)
	}
	return nil
}

// Unsubscribe drops a disconnected websocket connection.
func (s *Service) Unsubscribe(conn *websocket.Conn) {
	s.hub.Unsubscribe(conn)
}

// Claim returns the wallet linking key for a signed challenge and deletes
// the correlation entry, making the claim one-time.
func (s *Service) Claim(ctx context.Context, hash string) (string, error) {
	entry, errGet := s.store.Get(ctx, hash)
	if errGet != nil {
		return "", errGet
	}
	if entry == nil {
		return "", ErrNotFound
	}
	if !entry.Signed() {
		return "", ErrNotYetSigned
	}
	if errDelete := s.store.Delete(ctx, hash); errDelete != nil {
		return "", errDelete
	}
	return entry.LinkingKey, nil
}
