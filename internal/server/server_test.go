package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cpstats-backend/internal/components/chrono"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/profiles"
	"cpstats-backend/internal/scrapers/codechef"
	"cpstats-backend/internal/scrapers/leetcode"
	"cpstats-backend/internal/service"
	"cpstats-backend/internal/stats"
	configlibsql "cpstats-backend/pkg/configutil/libsql"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	platform stats.Platform
	record   stats.Record
	err      error
	calls    atomic.Int64
}

func (f *fakeFetcher) Platform() stats.Platform {
	return f.platform
}

func (f *fakeFetcher) Fetch(context.Context, string) (stats.Record, error) {
	f.calls.Add(1)
	return f.record, f.err
}

type fixture struct {
	server   *httptest.Server
	verifier profiles.Verifier
	store    *profiles.Store
	leetcode *fakeFetcher
	codechef *fakeFetcher
	tel      *telemetry.RecorderAPI
}

func setup(t testing.TB) fixture {
	db, err := configlibsql.Struct{File: ":memory:"}.OpenDB(profiles.Schema)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	tel := telemetry.NewRecorderAPI()
	clock := chrono.FixedImpl{Time: epoch}
	verifier := profiles.NewVerifier("secret", "cpstats", clock)
	store := profiles.NewStore(db, tel)

	leet := &fakeFetcher{
		platform: stats.LeetCode,
		record:   leetcode.Stats{ProblemsSolved: 120, Easy: 80, Medium: 35, Hard: 5},
	}
	chef := &fakeFetcher{
		platform: stats.CodeChef,
		err:      errors.New("codechef: unexpected status 503"),
	}

	svc := service.New(
		profiles.NewLocal(verifier, store),
		[]stats.Fetcher{leet, chef},
		service.WithCustomTelemetryAPI(tel),
		service.WithCustomClock(clock),
	)
	server := httptest.NewServer(New(svc, tel, Options{}).Handler())
	t.Cleanup(server.Close)

	return fixture{
		server:   server,
		verifier: verifier,
		store:    store,
		leetcode: leet,
		codechef: chef,
		tel:      tel,
	}
}

func (f fixture) token(t testing.TB, id string) string {
	token, err := f.verifier.Issue(id, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (f fixture) do(t testing.TB, method, path, token, body string) (*http.Response, string) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	contents, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(contents)
}

func TestLookup(t *testing.T) {
	f := setup(t)

	res, body := f.do(t, http.MethodGet, "/api/stats?platform=leetcode&username=alice", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "public, max-age=3600", res.Header.Get("Cache-Control"))
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))
	require.JSONEq(t, `{"problems_solved":120,"Easy":80,"Medium":35,"Hard":5}`, body)
}

func TestLookupErrors(t *testing.T) {
	f := setup(t)

	testCases := []struct {
		query  string
		status int
	}{
		{query: "?username=alice", status: http.StatusBadRequest},
		{query: "?platform=leetcode", status: http.StatusBadRequest},
		{query: "?platform=hackerrank&username=alice", status: http.StatusBadRequest},
		{query: "?platform=codechef&username=bob", status: http.StatusInternalServerError},
	}
	for _, test := range testCases {
		res, body := f.do(t, http.MethodGet, "/api/stats"+test.query, "", "")
		require.Equal(t, test.status, res.StatusCode, test.query)
		require.Empty(t, res.Header.Get("Cache-Control"), test.query)

		var decoded errorResponse
		require.NoError(t, json.Unmarshal([]byte(body), &decoded))
		require.NotEmpty(t, decoded.Error)
	}

	require.Equal(t, int64(0), f.leetcode.calls.Load())
	require.Equal(t, int64(1), f.codechef.calls.Load())
}

func TestRefresh(t *testing.T) {
	f := setup(t)
	_, err := f.store.SetUsernames(context.Background(), "user-1", map[stats.Platform]string{
		stats.LeetCode: "alice",
		stats.CodeChef: "bob",
	})
	require.NoError(t, err)

	res, body := f.do(t, http.MethodPost, "/api/refresh", f.token(t, "user-1"), "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{
		"message": "stats refreshed",
		"refreshed": ["leetcode"],
		"failed": ["codechef"],
		"updated_at": "2024-03-01T12:00:00Z"
	}`, body)

	profile, err := f.store.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, profile.Stats, 1)
	require.Contains(t, profile.Stats, stats.LeetCode)
}

func TestRefreshErrors(t *testing.T) {
	f := setup(t)

	res, _ := f.do(t, http.MethodPost, "/api/refresh", "", "")
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = f.do(t, http.MethodPost, "/api/refresh", "not-a-jwt", "")
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	res, _ = f.do(t, http.MethodPost, "/api/refresh", f.token(t, "nobody"), "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = f.do(t, http.MethodGet, "/api/refresh", f.token(t, "nobody"), "")
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)

	require.Equal(t, int64(0), f.leetcode.calls.Load())
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	f := setup(t)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/refresh", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Token abc")
	res, err := f.server.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	require.Equal(t, "Bearer", res.Header.Get("WWW-Authenticate"))
}

func TestProfile(t *testing.T) {
	f := setup(t)
	token := f.token(t, "user-1")

	res, _ := f.do(t, http.MethodGet, "/api/profile", token, "")
	require.Equal(t, http.StatusNotFound, res.StatusCode)

	res, body := f.do(t, http.MethodPut, "/api/profile", token, `{"usernames":{"leetcode":"alice","codechef":"bob"}}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{
		"id": "user-1",
		"usernames": {"leetcode": "alice", "codechef": "bob"},
		"stats": {},
		"stats_updated_at": null
	}`, body)

	res, _ = f.do(t, http.MethodPost, "/api/refresh", token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body = f.do(t, http.MethodGet, "/api/profile", token, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{
		"id": "user-1",
		"usernames": {"leetcode": "alice", "codechef": "bob"},
		"stats": {"leetcode": {"problems_solved":120,"Easy":80,"Medium":35,"Hard":5}},
		"stats_updated_at": "2024-03-01T12:00:00Z"
	}`, body)
}

func TestSetProfileErrors(t *testing.T) {
	f := setup(t)
	token := f.token(t, "user-1")

	testCases := []struct {
		body   string
		status int
	}{
		{body: `{"usernames":`, status: http.StatusBadRequest},
		{body: `{}`, status: http.StatusBadRequest},
		{body: `{"usernames":{},"extra":1}`, status: http.StatusBadRequest},
		{body: `{"usernames":{"hackerrank":"alice"}}`, status: http.StatusBadRequest},
		{body: `{"usernames":{}} {}`, status: http.StatusBadRequest},
		{body: `{"usernames":{"leetcode":"alice","LeetCode":""}}`, status: http.StatusBadRequest},
	}
	for _, test := range testCases {
		res, _ := f.do(t, http.MethodPut, "/api/profile", token, test.body)
		require.Equal(t, test.status, res.StatusCode, test.body)
	}

	res, _ := f.do(t, http.MethodPut, "/api/profile", "", `{"usernames":{}}`)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	_, err := f.store.GetProfile(context.Background(), "user-1")
	require.ErrorIs(t, err, profiles.ErrProfileNotFound)
}

func TestHealth(t *testing.T) {
	f := setup(t)
	res, body := f.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"status":"ok"}`, body)
}

func TestRequestID(t *testing.T) {
	f := setup(t)

	res, _ := f.do(t, http.MethodGet, "/healthz", "", "")
	_, err := uuid.Parse(res.Header.Get(RequestIdHeader))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIdHeader, "trace-me")
	res, err = f.server.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, "trace-me", res.Header.Get(RequestIdHeader))
}

func TestRecovery(t *testing.T) {
	tel := telemetry.NewRecorderAPI()
	handler := Recovery(tel, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	require.Empty(t, tel.Reports(telemetry.KindWarning, report_server_write_response))
}

func TestRecoveryAfterResponseStarted(t *testing.T) {
	tel := telemetry.NewRecorderAPI()
	handler := Recovery(tel, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"partial":`))
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, `{"partial":`, rec.Body.String())
	require.Len(t, tel.Reports(telemetry.KindWarning, report_server_write_response), 1)
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, statusOf(service.ErrMissingParameter))
	require.Equal(t, http.StatusBadRequest, statusOf(service.ErrDuplicatePlatform))
	require.Equal(t, http.StatusBadRequest, statusOf(stats.ErrUnsupportedPlatform))
	require.Equal(t, http.StatusUnauthorized, statusOf(profiles.ErrMissingCredential))
	require.Equal(t, http.StatusForbidden, statusOf(profiles.ErrInvalidCredential))
	require.Equal(t, http.StatusNotFound, statusOf(profiles.ErrProfileNotFound))
	require.Equal(t, http.StatusInternalServerError, statusOf(codechef.ErrUserNotFound))
}
