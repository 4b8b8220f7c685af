package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cpstats-backend/internal/components/assert"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/stats"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cpstats/profiles")

const (
	report_store_decode_stats = "store.decode-stats"
	report_store_rollback     = "store.rollback"
)

var usernameColumns = map[stats.Platform]string{
	stats.LeetCode:      "leetcode_username",
	stats.CodeChef:      "codechef_username",
	stats.Codeforces:    "codeforces_username",
	stats.GeeksforGeeks: "geeksforgeeks_username",
}

// Store persists profiles in a sqlite or libsql database that has Schema applied.
type Store struct {
	db  *sql.DB
	tel telemetry.API
}

func NewStore(db *sql.DB, tel telemetry.API) *Store {
	assert.NotNil(db, "db")
	assert.NotNil(tel, "telemetry")
	return &Store{db: db, tel: telemetry.NewScopedAPI("profiles", tel)}
}

const getProfileQuery = `select
	id,
	leetcode_username,
	codechef_username,
	codeforces_username,
	geeksforgeeks_username,
	stats,
	stats_updated_at
from profiles where id = ?`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) GetProfile(ctx context.Context, id string) (Profile, error) {
	ctx, span := tracer.Start(ctx, "GetProfile")
	defer span.End()

	profile, err := s.getProfile(ctx, s.db, id)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get profile")
	}
	return profile, err
}

func (s *Store) getProfile(ctx context.Context, q queryer, id string) (Profile, error) {
	var usernames [4]string
	var rawStats sql.NullString
	var updatedAt sql.NullInt64

	out := Profile{}
	err := q.QueryRowContext(ctx, getProfileQuery, id).Scan(
		&out.ID,
		&usernames[0],
		&usernames[1],
		&usernames[2],
		&usernames[3],
		&rawStats,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("query profile: %w", err)
	}

	out.Usernames = map[stats.Platform]string{}
	for i, platform := range []stats.Platform{stats.LeetCode, stats.CodeChef, stats.Codeforces, stats.GeeksforGeeks} {
		if usernames[i] != "" {
			out.Usernames[platform] = usernames[i]
		}
	}

	out.Stats = map[stats.Platform]json.RawMessage{}
	if rawStats.Valid && rawStats.String != "" {
		err = json.Unmarshal([]byte(rawStats.String), &out.Stats)
		if err != nil {
			// a corrupt stats column is recovered by the next refresh
			s.tel.ReportBroken(report_store_decode_stats, id, err)
			out.Stats = map[stats.Platform]json.RawMessage{}
		}
	}
	if updatedAt.Valid {
		t := time.Unix(updatedAt.Int64, 0).UTC()
		out.StatsUpdatedAt = &t
	}

	return out, nil
}

const updateStatsQuery = `update profiles
set stats = ?, stats_updated_at = ?
where id = ?`

func (s *Store) UpdateProfile(ctx context.Context, id string, update StatsUpdate) error {
	ctx, span := tracer.Start(ctx, "UpdateProfile")
	defer span.End()
	span.SetAttributes(attribute.Int("stats.platforms", len(update.Stats)))

	aggregate := update.Stats
	if aggregate == nil {
		aggregate = stats.Aggregate{}
	}
	serialized, err := json.Marshal(aggregate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize stats")
		return fmt.Errorf("serialize stats: %w", err)
	}

	res, err := s.db.ExecContext(ctx, updateStatsQuery, string(serialized), update.UpdatedAt.Unix(), id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update stats")
		return fmt.Errorf("update stats: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update stats: %w", err)
	}
	if affected == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (s *Store) SetUsernames(ctx context.Context, id string, usernames map[stats.Platform]string) (Profile, error) {
	ctx, span := tracer.Start(ctx, "SetUsernames")
	defer span.End()

	for platform := range usernames {
		if _, ok := usernameColumns[platform]; !ok {
			return Profile{}, fmt.Errorf("%w '%s'", stats.ErrUnsupportedPlatform, platform)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return Profile{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		err := tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.tel.ReportWarning(report_store_rollback, err)
		}
	}()

	_, err = tx.ExecContext(ctx, "insert into profiles(id) values (?) on conflict(id) do nothing", id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create profile")
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	// iterate over Platforms rather than the map so statements run in a fixed order
	for _, platform := range stats.Platforms {
		username, ok := usernames[platform]
		if !ok {
			continue
		}
		_, err = tx.ExecContext(
			ctx,
			fmt.Sprintf("update profiles set %s = ? where id = ?", usernameColumns[platform]),
			username,
			id,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to set username")
			return Profile{}, fmt.Errorf("set %s username: %w", platform, err)
		}
	}

	profile, err := s.getProfile(ctx, tx, id)
	if err != nil {
		return Profile{}, err
	}
	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to commit")
		return Profile{}, fmt.Errorf("commit: %w", err)
	}
	return profile, nil
}
