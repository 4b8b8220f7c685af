// Package scrapers builds the fetcher of every supported platform.
package scrapers

import (
	"fmt"
	"time"

	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/scrapers/codechef"
	"cpstats-backend/internal/scrapers/codeforces"
	"cpstats-backend/internal/scrapers/geeksforgeeks"
	"cpstats-backend/internal/scrapers/leetcode"
	"cpstats-backend/internal/scrapers/scrapeutil"
	"cpstats-backend/internal/stats"
)

type Config struct {
	// per request timeout in seconds, defaults to 30
	TimeoutSeconds int    `json:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	UserAgent      string `json:"user_agent" env:"USER_AGENT"`

	// base url overrides, mostly useful for pointing at a mock
	LeetCodeUrl      string `json:"leetcode_url" env:"LEETCODE_URL"`
	CodeChefUrl      string `json:"codechef_url" env:"CODECHEF_URL"`
	CodeforcesUrl    string `json:"codeforces_url" env:"CODEFORCES_URL"`
	GeeksforGeeksUrl string `json:"geeksforgeeks_url" env:"GEEKSFORGEEKS_URL"`

	// platforms to leave out, all are enabled by default
	Disabled []string `json:"disabled" env:"DISABLED"`
}

func (c Config) options(baseUrl string) scrapeutil.ClientOptions {
	return scrapeutil.ClientOptions{
		BaseUrl:   baseUrl,
		Timeout:   time.Duration(c.TimeoutSeconds) * time.Second,
		UserAgent: c.UserAgent,
	}
}

// New returns one fetcher per enabled platform, in the order of stats.Platforms.
func New(cfg Config, tel telemetry.API) ([]stats.Fetcher, error) {
	disabled := map[stats.Platform]bool{}
	for _, name := range cfg.Disabled {
		platform, err := stats.ParsePlatform(name)
		if err != nil {
			return nil, fmt.Errorf("disabled platforms: %w", err)
		}
		disabled[platform] = true
	}

	var out []stats.Fetcher
	for _, platform := range stats.Platforms {
		if disabled[platform] {
			continue
		}

		var fetcher stats.Fetcher
		var err error
		switch platform {
		case stats.LeetCode:
			fetcher, err = leetcode.NewScraper(cfg.options(cfg.LeetCodeUrl), tel)
		case stats.CodeChef:
			fetcher, err = codechef.NewScraper(cfg.options(cfg.CodeChefUrl), tel)
		case stats.Codeforces:
			fetcher, err = codeforces.NewScraper(cfg.options(cfg.CodeforcesUrl), tel)
		case stats.GeeksforGeeks:
			fetcher, err = geeksforgeeks.NewScraper(cfg.options(cfg.GeeksforGeeksUrl), tel)
		default:
			err = fmt.Errorf("no scraper for %s", platform)
		}
		if err != nil {
			return nil, fmt.Errorf("create %s scraper: %w", platform, err)
		}
		out = append(out, fetcher)
	}
	return out, nil
}
