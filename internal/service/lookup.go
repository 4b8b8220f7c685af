package service

import (
	"context"
	"fmt"
	"strings"

	"cpstats-backend/internal/stats"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Lookup fetches the statistics of one username on one platform. Parameters
// are validated before any request is made, nothing is persisted.
func (s Service) Lookup(ctx context.Context, platformName, username string) (stats.Record, error) {
	platformName = strings.TrimSpace(platformName)
	username = strings.TrimSpace(username)
	if platformName == "" {
		return nil, fmt.Errorf("%w: platform", ErrMissingParameter)
	}
	if username == "" {
		return nil, fmt.Errorf("%w: username", ErrMissingParameter)
	}

	platform, err := stats.ParsePlatform(platformName)
	if err != nil {
		return nil, err
	}
	fetcher, ok := s.fetchers[platform]
	if !ok {
		return nil, fmt.Errorf("%w '%s'", stats.ErrUnsupportedPlatform, platform)
	}

	ctx, span := tracer.Start(ctx, "Lookup")
	defer span.End()
	span.SetAttributes(
		attribute.String("platform", string(platform)),
		attribute.String("username", username),
	)

	record, err := fetcher.Fetch(ctx, username)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.tel.ReportWarning(report_lookup_fetch, string(platform), username, err)
		return nil, err
	}
	if record == nil {
		err = fmt.Errorf("%s: no statistics returned", platform)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return record, nil
}
