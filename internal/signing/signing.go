// Package signing attaches a detached ed25519 signature to outbound
// processor dispatch requests, so a processor can authenticate which
// intermediary instance sent a given payment. This is service-to-service
// request signing, not end-user authentication: the spec's ingress
// endpoint (spec.md section 4.1) remains unauthenticated.
//
// Adapted from the teacher repo's internal/keys (JSON keypair loading)
// and internal/resolver (TTL-caching key lookup), generalized from a
// generic multi-key KID store to one signing key per domain.Processor.
package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

// HeaderName is the HTTP header carrying the base64-encoded detached
// signature of the request body.
const HeaderName = "X-Payment-Signature"

// keyConfig is the on-disk representation of one processor's keypair.
type keyConfig struct {
	Processor  string `json:"processor"`
	PublicKey  string `json:"publicKey"`
	PrivateKey string `json:"privateKey"`
}

type keyFile struct {
	Keys []keyConfig `json:"keys"`
}

// KeyStore holds the loaded signing keypairs, keyed by processor.
type KeyStore struct {
	private map[domain.Processor]ed25519.PrivateKey
	public  map[domain.Processor]ed25519.PublicKey
}

// LoadKeysFromFile loads a JSON keypair file shaped like:
//
//	{"keys": [{"processor": "default", "publicKey": "...", "privateKey": "..."}]}
//
// with both key fields base64-encoded, one entry per domain.Processor.
func LoadKeysFromFile(path string) (*KeyStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signing: read key file: %w", err)
	}

	var parsed keyFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("signing: decode key file: %w", err)
	}

	store := &KeyStore{
		private: make(map[domain.Processor]ed25519.PrivateKey),
		public:  make(map[domain.Processor]ed25519.PublicKey),
	}
	for _, entry := range parsed.Keys {
		p := domain.Processor(entry.Processor)
		if !p.Valid() {
			return nil, fmt.Errorf("signing: unknown processor %q in key file", entry.Processor)
		}
		priv, err := base64.StdEncoding.DecodeString(entry.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("signing: decode private key for %s: %w", p, err)
		}
		pub, err := base64.StdEncoding.DecodeString(entry.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("signing: decode public key for %s: %w", p, err)
		}
		store.private[p] = ed25519.PrivateKey(priv)
		store.public[p] = ed25519.PublicKey(pub)
	}
	return store, nil
}

// Signer signs outbound dispatch bodies with the configured per-processor
// private keys. Keys are looked up directly in the loaded KeyStore's
// in-memory maps under a read lock; there is no separate key cache.
type Signer struct {
	mu    sync.RWMutex
	store *KeyStore
}

// NewSigner wraps a loaded KeyStore.
func NewSigner(store *KeyStore) *Signer {
	return &Signer{store: store}
}

// Sign returns the base64-encoded ed25519 signature of body under p's
// private key.
func (s *Signer) Sign(p domain.Processor, body []byte) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	priv, ok := s.store.private[p]
	if !ok {
		return "", fmt.Errorf("signing: no private key configured for %s", p)
	}
	sig := ed25519.Sign(priv, body)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64-encoded detached signature against p's public
// key. Exposed for processor-side test doubles and for symmetry with the
// teacher's resolver, which was read-path only; the production binaries
// in this repo only ever sign, never verify.
func (s *Signer) Verify(p domain.Processor, body []byte, signatureB64 string) (bool, error) {
	s.mu.RLock()
	pub, ok := s.store.public[p]
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("signing: no public key configured for %s", p)
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false, fmt.Errorf("signing: decode signature: %w", err)
	}
	return ed25519.Verify(pub, body, sig), nil
}
