package service

import (
	"context"
	"fmt"
	"strings"

	"cpstats-backend/internal/profiles"
	"cpstats-backend/internal/stats"
)

// GetProfile returns the profile of the identity behind the bearer `token`.
func (s Service) GetProfile(ctx context.Context, token string) (profiles.Profile, error) {
	identity, err := s.gateway.VerifyCredential(ctx, token)
	if err != nil {
		return profiles.Profile{}, err
	}
	return s.GetProfileIdentity(ctx, identity.ID)
}

func (s Service) GetProfileIdentity(ctx context.Context, id string) (profiles.Profile, error) {
	ctx, span := tracer.Start(ctx, "GetProfile")
	defer span.End()
	return s.gateway.GetProfile(ctx, id)
}

// SetUsernames updates the per-platform usernames of the identity behind the
// bearer `token`, creating its profile if needed.
func (s Service) SetUsernames(ctx context.Context, token string, usernames map[string]string) (profiles.Profile, error) {
	identity, err := s.gateway.VerifyCredential(ctx, token)
	if err != nil {
		return profiles.Profile{}, err
	}
	return s.SetUsernamesIdentity(ctx, identity.ID, usernames)
}

// SetUsernamesIdentity validates every platform name before writing anything,
// usernames are trimmed and an empty one clears the platform.
func (s Service) SetUsernamesIdentity(ctx context.Context, id string, usernames map[string]string) (profiles.Profile, error) {
	if strings.TrimSpace(id) == "" {
		return profiles.Profile{}, fmt.Errorf("%w: id", ErrMissingParameter)
	}

	parsed := make(map[stats.Platform]string, len(usernames))
	for name, username := range usernames {
		platform, err := stats.ParsePlatform(name)
		if err != nil {
			return profiles.Profile{}, err
		}
		if _, ok := parsed[platform]; ok {
			return profiles.Profile{}, fmt.Errorf("%w: %s", ErrDuplicatePlatform, platform)
		}
		parsed[platform] = strings.TrimSpace(username)
	}

	ctx, span := tracer.Start(ctx, "SetUsernames")
	defer span.End()

	profile, err := s.gateway.SetUsernames(ctx, id, parsed)
	if err != nil {
		return profiles.Profile{}, err
	}
	s.tel.ReportDebug(report_profile_set_fields, id, len(parsed))
	return profile, nil
}
