// Package service implements the lookup, refresh and profile workflows on
// top of the platform scrapers and the profile gateway.
package service

import (
	"errors"
	"fmt"

	"cpstats-backend/internal/components/assert"
	"cpstats-backend/internal/components/chrono"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/profiles"
	"cpstats-backend/internal/stats"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("cpstats/service")
var meter = otel.Meter("cpstats/service")

var adapterFailureCounter, _ = meter.Int64Counter(
	"refresh.adapter_failures",
)

const (
	report_lookup_fetch       = "lookup.fetch"
	report_refresh_skip       = "refresh.skip-platform"
	report_refresh_persist    = "refresh.persist"
	report_refresh_load       = "refresh.load-profile"
	report_refresh_failures   = "refresh.failed-platforms"
	report_profile_set_fields = "profile.set-usernames"
)

var ErrMissingParameter = errors.New("missing parameter")

// ErrDuplicatePlatform is returned when two keys of a username update name the same platform.
var ErrDuplicatePlatform = errors.New("platform given more than once")

// Service owns the process wide state every workflow needs, it is built
// once at startup and shared by every request.
type Service struct {
	fetchers map[stats.Platform]stats.Fetcher
	gateway  profiles.Gateway
	tel      telemetry.API
	clock    chrono.API
}

type serviceConfig struct {
	tel   telemetry.API
	clock chrono.API
}

type Option func(cfg *serviceConfig)

func WithCustomTelemetryAPI(tel telemetry.API) Option {
	return func(cfg *serviceConfig) {
		cfg.tel = tel
	}
}

func WithCustomClock(clock chrono.API) Option {
	return func(cfg *serviceConfig) {
		cfg.clock = clock
	}
}

// New creates a Service, each fetcher is registered under its own platform
// and registering two fetchers for one platform panics.
func New(gateway profiles.Gateway, fetchers []stats.Fetcher, options ...Option) Service {
	assert.NotNil(gateway, "profile gateway")

	cfg := serviceConfig{}
	for _, opt := range options {
		opt(&cfg)
	}

	s := Service{
		fetchers: make(map[stats.Platform]stats.Fetcher, len(fetchers)),
		gateway:  gateway,
		tel:      telemetry.SlogAPI{},
		clock:    chrono.StandardImpl{},
	}
	if cfg.tel != nil {
		s.tel = cfg.tel
	}
	if cfg.clock != nil {
		s.clock = cfg.clock
	}
	s.tel = telemetry.NewScopedAPI("service", s.tel)

	for _, f := range fetchers {
		assert.NotNil(f, "fetcher")
		_, exists := s.fetchers[f.Platform()]
		if exists {
			panic(fmt.Sprintf("fetcher for %s registered twice", f.Platform()))
		}
		s.fetchers[f.Platform()] = f
	}

	return s
}

// Platforms returns the platforms with a registered fetcher in a stable order.
func (s Service) Platforms() []stats.Platform {
	var out []stats.Platform
	for _, p := range stats.Platforms {
		if _, ok := s.fetchers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
