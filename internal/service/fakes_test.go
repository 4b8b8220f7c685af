package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"cpstats-backend/internal/profiles"
	"cpstats-backend/internal/stats"
)

type fakeRecord struct {
	platform stats.Platform
	Solved   int `json:"solved"`
}

func (r fakeRecord) Platform() stats.Platform {
	return r.platform
}

type fakeFetcher struct {
	platform stats.Platform
	fetch    func(ctx context.Context, username string) (stats.Record, error)
	calls    atomic.Int64
}

func (f *fakeFetcher) Platform() stats.Platform {
	return f.platform
}

func (f *fakeFetcher) Fetch(ctx context.Context, username string) (stats.Record, error) {
	f.calls.Add(1)
	return f.fetch(ctx, username)
}

func succeeding(platform stats.Platform, solved int) *fakeFetcher {
	return &fakeFetcher{
		platform: platform,
		fetch: func(context.Context, string) (stats.Record, error) {
			return fakeRecord{platform: platform, Solved: solved}, nil
		},
	}
}

func failing(platform stats.Platform, err error) *fakeFetcher {
	return &fakeFetcher{
		platform: platform,
		fetch: func(context.Context, string) (stats.Record, error) {
			return nil, err
		},
	}
}

// fakeGateway keeps profiles in memory, every token is valid and names its identity.
type fakeGateway struct {
	mutex     sync.Mutex
	profiles  map[string]profiles.Profile
	updateErr error
	reads     int
	updates   []profiles.StatsUpdate
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{profiles: map[string]profiles.Profile{}}
}

func (g *fakeGateway) VerifyCredential(ctx context.Context, token string) (profiles.Identity, error) {
	if token == "" {
		return profiles.Identity{}, profiles.ErrMissingCredential
	}
	if token == "bad" {
		return profiles.Identity{}, profiles.ErrInvalidCredential
	}
	return profiles.Identity{ID: token}, nil
}

func (g *fakeGateway) GetProfile(ctx context.Context, id string) (profiles.Profile, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.reads++
	profile, ok := g.profiles[id]
	if !ok {
		return profiles.Profile{}, profiles.ErrProfileNotFound
	}
	return profile, nil
}

func (g *fakeGateway) UpdateProfile(ctx context.Context, id string, update profiles.StatsUpdate) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.updateErr != nil {
		return g.updateErr
	}
	profile, ok := g.profiles[id]
	if !ok {
		return profiles.ErrProfileNotFound
	}
	g.updates = append(g.updates, update)

	profile.Stats = map[stats.Platform]json.RawMessage{}
	for platform, record := range update.Stats {
		serialized, err := json.Marshal(record)
		if err != nil {
			return err
		}
		profile.Stats[platform] = serialized
	}
	updatedAt := update.UpdatedAt
	profile.StatsUpdatedAt = &updatedAt
	g.profiles[id] = profile
	return nil
}

func (g *fakeGateway) SetUsernames(ctx context.Context, id string, usernames map[stats.Platform]string) (profiles.Profile, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	profile, ok := g.profiles[id]
	if !ok {
		profile = profiles.Profile{
			ID:        id,
			Usernames: map[stats.Platform]string{},
			Stats:     map[stats.Platform]json.RawMessage{},
		}
	}
	for platform, username := range usernames {
		if username == "" {
			delete(profile.Usernames, platform)
			continue
		}
		profile.Usernames[platform] = username
	}
	g.profiles[id] = profile
	return profile, nil
}
