package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cpstats-backend/internal/profiles"
	"cpstats-backend/internal/settle"
	"cpstats-backend/internal/stats"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// RefreshResult describes a completed refresh.
type RefreshResult struct {
	// platforms whose statistics were persisted
	Refreshed []stats.Platform `json:"refreshed"`
	// platforms that were attempted but failed
	Failed    []stats.Platform `json:"failed"`
	UpdatedAt time.Time        `json:"updated_at"`
	Stats     stats.Aggregate  `json:"-"`
}

// Refresh authenticates the bearer `token` and refreshes the statistics of
// the verified identity, see RefreshIdentity.
func (s Service) Refresh(ctx context.Context, token string) (RefreshResult, error) {
	identity, err := s.gateway.VerifyCredential(ctx, token)
	if err != nil {
		return RefreshResult{}, err
	}
	return s.RefreshIdentity(ctx, identity.ID)
}

type job struct {
	platform stats.Platform
	username string
}

// RefreshIdentity fetches the statistics of every platform the profile has a
// username for, concurrently, and persists whatever succeeded.
//
// Platform failures never fail the refresh, failing to load or persist the
// profile does.
func (s Service) RefreshIdentity(ctx context.Context, id string) (RefreshResult, error) {
	ctx, span := tracer.Start(ctx, "RefreshIdentity")
	defer span.End()

	profile, err := s.gateway.GetProfile(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load profile")
		s.tel.ReportDebug(report_refresh_load, id, err)
		return RefreshResult{}, err
	}

	jobs := s.jobs(profile.Usernames)
	span.SetAttributes(attribute.Int("refresh.platforms", len(jobs)))

	// a disconnecting caller should not abort fetches that are already in
	// flight, the client timeout bounds each of them instead.
	detached := context.WithoutCancel(ctx)
	ops := make([]settle.Op[stats.Record], len(jobs))
	for i, j := range jobs {
		fetcher := s.fetchers[j.platform]
		ops[i] = func(ctx context.Context) (stats.Record, error) {
			return fetcher.Fetch(ctx, j.username)
		}
	}
	results := settle.All(detached, ops)

	outcomes := make([]stats.Outcome, len(jobs))
	for i, j := range jobs {
		outcomes[i] = stats.Outcome{
			Platform: j.platform,
			Record:   results[i].Value,
			Err:      results[i].Err,
		}
	}
	aggregate := stats.Merge(outcomes, s.tel)

	result := RefreshResult{
		Refreshed: aggregate.Platforms(),
		Failed:    []stats.Platform{},
		UpdatedAt: s.clock.Now(),
		Stats:     aggregate,
	}
	for _, o := range outcomes {
		if _, ok := aggregate[o.Platform]; ok {
			continue
		}
		result.Failed = append(result.Failed, o.Platform)
		adapterFailureCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("platform", string(o.Platform)),
		))
	}
	if result.Refreshed == nil {
		result.Refreshed = []stats.Platform{}
	}
	if len(result.Failed) > 0 {
		s.tel.ReportCount(report_refresh_failures, int64(len(result.Failed)))
	}

	err = s.gateway.UpdateProfile(detached, id, profiles.StatsUpdate{
		Stats:     aggregate,
		UpdatedAt: result.UpdatedAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist stats")
		s.tel.ReportBroken(report_refresh_persist, id, err)
		return RefreshResult{}, fmt.Errorf("persist stats: %w", err)
	}

	return result, nil
}

// jobs returns one job per platform with a non-blank username and a
// registered fetcher, in the order of stats.Platforms.
func (s Service) jobs(usernames map[stats.Platform]string) []job {
	var out []job
	for _, platform := range stats.Platforms {
		username := strings.TrimSpace(usernames[platform])
		if username == "" {
			continue
		}
		if _, ok := s.fetchers[platform]; !ok {
			s.tel.ReportDebug(report_refresh_skip, string(platform), "no fetcher registered")
			continue
		}
		out = append(out, job{platform: platform, username: username})
	}
	return out
}
