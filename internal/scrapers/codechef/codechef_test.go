package codechef

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

func serveFixtures(t testing.TB, pages map[string]string) Scraper {
	mux := http.NewServeMux()
	for path, fixture := range pages {
		contents, err := os.ReadFile(fixture)
		if err != nil {
			t.Fatal(err)
		}
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("content-type", "text/html")
			w.Write(contents)
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	scraper, err := NewScraper(scrapeutil.ClientOptions{BaseUrl: server.URL}, telemetry.NewRecorderAPI())
	if err != nil {
		t.Fatal(err)
	}
	return scraper
}

func TestFetchProfile(t *testing.T) {
	scraper := serveFixtures(t, map[string]string{
		"/users/alice": "testdata/profile.html",
	})

	record, err := scraper.Fetch(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, Stats{
		Rating:               1843,
		HighestRating:        1902,
		Stars:                "4★",
		GlobalRank:           1234,
		CountryRank:          567,
		ProblemsSolved:       250,
		ContestsParticipated: 3,
		Badges:               2,
	}, record)
}

func TestFetchUnratedDefaults(t *testing.T) {
	scraper := serveFixtures(t, map[string]string{
		"/users/newcomer": "testdata/unrated.html",
	})

	record, err := scraper.Fetch(context.Background(), "newcomer")
	require.NoError(t, err)
	require.Equal(t, Stats{Stars: Unrated}, record)
}

func TestFetchUnknownUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		w.Write([]byte("<html><body><h1>Practice coding</h1></body></html>"))
	}))
	defer server.Close()

	scraper, err := NewScraper(scrapeutil.ClientOptions{BaseUrl: server.URL}, telemetry.NewRecorderAPI())
	require.NoError(t, err)

	_, err = scraper.Fetch(context.Background(), "nobody")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestFetchStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	scraper, err := NewScraper(scrapeutil.ClientOptions{BaseUrl: server.URL}, telemetry.NewRecorderAPI())
	require.NoError(t, err)

	_, err = scraper.Fetch(context.Background(), "alice")
	var statusErr scrapeutil.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.Status)
}
