// Package auth guards the API with shared API keys sent in the x-api-key
// header.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// HeaderName carries the caller's API key.
const HeaderName = "X-API-Key"

// DefaultDevKey is accepted when no keys are configured.
const DefaultDevKey = "default-dev-key"

// Identity names the key a request authenticated with.
type Identity struct {
	KeyName string `json:"key_name"`
}

// Keys is a set of named API keys. Comparison is constant-time over the
// SHA-256 digests so neither key length nor content leaks through timing.
type Keys struct {
	entries []keyEntry
}

type keyEntry struct {
	name   string
	digest [sha256.Size]byte
}

// NewKeys builds a key set from name → key pairs. Blank keys are skipped; an
// empty result falls back to DefaultDevKey under the name "default".
func NewKeys(keys map[string]string) *Keys {
	k := &Keys{}
	for name, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			k.entries = append(k.entries, keyEntry{name: name, digest: sha256.Sum256([]byte(key))})
		}
	}
	if len(k.entries) == 0 {
		k.entries = append(k.entries, keyEntry{name: "default", digest: sha256.Sum256([]byte(DefaultDevKey))})
	}
	return k
}

// Verify returns the identity for key, or false. Every entry is compared.
func (k *Keys) Verify(key string) (*Identity, bool) {
	if key == "" {
		return nil, false
	}
	digest := sha256.Sum256([]byte(key))
	var match *Identity
	for _, e := range k.entries {
		if subtle.ConstantTimeCompare(digest[:], e.digest[:]) == 1 && match == nil {
			match = &Identity{KeyName: e.name}
		}
	}
	return match, match != nil
}

type identityContextKey struct{}

// GetIdentity returns the identity stored by Middleware, or nil.
func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(identityContextKey{}).(*Identity); ok {
		return id
	}
	return nil
}

// WithIdentity returns ctx carrying identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}
