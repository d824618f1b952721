package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/anonchat-server/internal/store"
	"github.com/vovakirdan/anonchat-server/internal/utils"
)

const maxFingerprintLen = 256

// IdentityRegistry maps device fingerprints to persistent user ids.
type IdentityRegistry struct {
	store store.IdentityStore
	newID func() (string, error)
	sf    singleflight.Group
}

// NewIdentityRegistry creates a registry backed by st.
func NewIdentityRegistry(st store.IdentityStore) *IdentityRegistry {
	return &IdentityRegistry{
		store: st,
		newID: utils.NewUserID,
	}
}

// RegisterDevice returns the user id bound to fingerprint, creating one on
// first contact. Repeated calls for one fingerprint return the same id.
func (r *IdentityRegistry) RegisterDevice(ctx context.Context, fingerprint string) (string, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return "", fmt.Errorf("%w: device id is required", ErrMalformedPayload)
	}
	if len(fingerprint) > maxFingerprintLen {
		return "", fmt.Errorf("%w: device id too long", ErrMalformedPayload)
	}

	// Waiters share the first caller's work, so it must outlive that caller.
	shared := context.WithoutCancel(ctx)
	ch := r.sf.DoChan(fingerprint, func() (interface{}, error) {
		return r.lookupOrCreate(shared, fingerprint)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *IdentityRegistry) lookupOrCreate(ctx context.Context, fingerprint string) (string, error) {
	ident, err := r.store.GetIdentityByFingerprint(ctx, fingerprint)
	if err == nil {
		return ident.UserID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: lookup identity: %v", ErrStoreUnavailable, err)
	}

	userID, err := r.newID()
	if err != nil {
		return "", fmt.Errorf("generate user id: %w", err)
	}

	ident, err = r.store.CreateIdentity(ctx, fingerprint, userID)
	if err != nil {
		return "", fmt.Errorf("%w: create identity: %v", ErrStoreUnavailable, err)
	}
	return ident.UserID, nil
}
