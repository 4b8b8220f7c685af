package leetcode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/scrapers/scrapeutil"
	"cpstats-backend/internal/stats"

	"github.com/stretchr/testify/require"
)

func setup(t testing.TB, handler http.HandlerFunc) Scraper {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	scraper, err := NewScraper(scrapeutil.ClientOptions{BaseUrl: server.URL}, telemetry.NewRecorderAPI())
	if err != nil {
		t.Fatal(err)
	}
	return scraper
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(body))
	}
}

func TestFetch(t *testing.T) {
	var received graphqlRequest
	scraper := setup(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/graphql", r.URL.Path)

		err := json.NewDecoder(r.Body).Decode(&received)
		require.NoError(t, err)

		respond(`{"data": {"matchedUser": {"submitStatsGlobal": {"acSubmissionNum": [
			{"difficulty": "Hard", "count": 5},
			{"difficulty": "All", "count": 120},
			{"difficulty": "Medium", "count": 35},
			{"difficulty": "Easy", "count": 80}
		]}}}}`)(w, r)
	})

	record, err := scraper.Fetch(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, stats.LeetCode, record.Platform())
	require.Equal(t, Stats{ProblemsSolved: 120, Easy: 80, Medium: 35, Hard: 5}, record)

	require.Equal(t, "userProblemsSolved", received.Name)
	require.Equal(t, map[string]any{"username": "alice"}, received.Variables)
}

func TestFetchMissingBuckets(t *testing.T) {
	scraper := setup(t, respond(`{"data": {"matchedUser": {"submitStatsGlobal": {"acSubmissionNum": [
		{"difficulty": "All", "count": 3},
		{"difficulty": "Easy", "count": 3}
	]}}}}`))

	record, err := scraper.Fetch(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, Stats{ProblemsSolved: 3, Easy: 3}, record)
}

func TestFetchErrorPayload(t *testing.T) {
	scraper := setup(t, respond(`{"errors": [{"message": "That user does not exist."}], "data": {"matchedUser": null}}`))

	record, err := scraper.Fetch(context.Background(), "nobody")
	require.Nil(t, record)

	var gqlErr GraphqlError
	require.ErrorAs(t, err, &gqlErr)
	require.Equal(t, []string{"That user does not exist."}, gqlErr.Messages)
}

func TestFetchNullUser(t *testing.T) {
	scraper := setup(t, respond(`{"data": {"matchedUser": null}}`))

	_, err := scraper.Fetch(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestFetchServerError(t *testing.T) {
	scraper := setup(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := scraper.Fetch(context.Background(), "alice")
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
