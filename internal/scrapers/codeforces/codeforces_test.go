package codeforces

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/scrapers/scrapeutil"

	"github.com/stretchr/testify/require"
)

func newScraper(t testing.TB, handler http.Handler) (Scraper, *telemetry.RecorderAPI) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tel := telemetry.NewRecorderAPI()
	scraper, err := NewScraper(scrapeutil.ClientOptions{BaseUrl: server.URL}, tel)
	if err != nil {
		t.Fatal(err)
	}
	return scraper, tel
}

func serveFile(t testing.TB, path, fixture string) http.Handler {
	contents, err := os.ReadFile(fixture)
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Write(contents)
	})
	return mux
}

func TestFetchProfile(t *testing.T) {
	scraper, tel := newScraper(t, serveFile(t, "/profile/alice", "testdata/profile.html"))

	record, err := scraper.Fetch(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, Stats{
		Rating:         1843,
		MaxRating:      1902,
		Rank:           "expert",
		MaxRank:        "candidate master",
		Contribution:   12,
		ProblemsSolved: 1234,
	}, record)
	require.Empty(t, tel.Reports(telemetry.KindDebug, report_scraper_missing_fields))
}

func TestFetchUnratedDefaults(t *testing.T) {
	scraper, tel := newScraper(t, serveFile(t, "/profile/newcomer", "testdata/unrated.html"))

	record, err := scraper.Fetch(context.Background(), "newcomer")
	require.NoError(t, err)
	require.Equal(t, Stats{Rank: Unrated, MaxRank: Unrated}, record)
	require.Len(t, tel.Reports(telemetry.KindDebug, report_scraper_missing_fields), 1)
}

func TestFetchUnknownUser(t *testing.T) {
	scraper, _ := newScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		w.Write([]byte(`<html><body><div class="roundbox">Codeforces</div></body></html>`))
	}))

	_, err := scraper.Fetch(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestFetchStatusError(t *testing.T) {
	scraper, tel := newScraper(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := scraper.Fetch(context.Background(), "alice")
	var statusErr scrapeutil.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadGateway, statusErr.Status)
	require.Len(t, tel.Reports(telemetry.KindWarning, report_scraper_fetch), 1)
}
