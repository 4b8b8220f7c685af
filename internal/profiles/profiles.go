// Package profiles is the identity and profile gateway, it verifies bearer
// credentials and stores the per-platform usernames and the last refreshed
// statistics of every user.
package profiles

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"cpstats-backend/internal/stats"
)

//go:embed schema.sql
var Schema string

var (
	ErrMissingCredential = errors.New("missing or malformed credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrProfileNotFound   = errors.New("profile not found")
)

// Identity is a verified caller.
type Identity struct {
	ID string
}

// Profile is everything stored about a user.
type Profile struct {
	ID string `json:"id"`
	// platforms without a username are absent
	Usernames map[stats.Platform]string `json:"usernames"`
	// the aggregate persisted by the last refresh, kept as raw json per platform
	Stats          map[stats.Platform]json.RawMessage `json:"stats"`
	StatsUpdatedAt *time.Time                         `json:"stats_updated_at"`
}

// StatsUpdate is the write-back of a refresh, it replaces the stored stats.
type StatsUpdate struct {
	Stats     stats.Aggregate
	UpdatedAt time.Time
}

// Gateway is the identity and profile collaborator of the service layer.
//
// note: fault injection point
type Gateway interface {
	// VerifyCredential returns ErrMissingCredential for an empty token and
	// ErrInvalidCredential for one that fails verification.
	VerifyCredential(ctx context.Context, token string) (Identity, error)
	// GetProfile returns ErrProfileNotFound if the identity has no profile.
	GetProfile(ctx context.Context, id string) (Profile, error)
	// UpdateProfile returns ErrProfileNotFound if the identity has no profile.
	UpdateProfile(ctx context.Context, id string, update StatsUpdate) error
	// SetUsernames creates the profile if it does not exist yet, only the
	// given platforms are changed and an empty username clears one.
	SetUsernames(ctx context.Context, id string, usernames map[stats.Platform]string) (Profile, error)
}

// BearerToken extracts the token of an `Authorization: Bearer <token>` header.
func BearerToken(header string) (string, error) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMissingCredential
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}

// Local is a Gateway backed by a Verifier and a Store living in this process.
type Local struct {
	Verifier
	*Store
}

func NewLocal(verifier Verifier, store *Store) Local {
	return Local{Verifier: verifier, Store: store}
}
