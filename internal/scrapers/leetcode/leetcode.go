// Package leetcode fetches a user's solved problem counts from LeetCode's
// GraphQL api.
package leetcode

import (
	"context"
	"errors"
	"fmt"

	"cpstats-backend/internal/components/assert"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/scrapers/scrapeutil"
	"cpstats-backend/internal/stats"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseUrl = "https://leetcode.com"

const report_scraper_fetch = "scraper.fetch"

var ErrUserNotFound = errors.New("leetcode: user not found")

// Stats are the accepted submission counts of a user, keys match the
// difficulty labels LeetCode uses.
type Stats struct {
	ProblemsSolved int `json:"problems_solved"`
	Easy           int `json:"Easy"`
	Medium         int `json:"Medium"`
	Hard           int `json:"Hard"`
}

func (Stats) Platform() stats.Platform {
	return stats.LeetCode
}

const problemsSolvedQuery = `query userProblemsSolved($username: String!) {
  matchedUser(username: $username) {
    submitStatsGlobal {
      acSubmissionNum {
        difficulty
        count
      }
    }
  }
}`

type problemsSolvedVariables struct {
	Username string `json:"username"`
}

type submissionCount struct {
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

type problemsSolvedData struct {
	MatchedUser *struct {
		SubmitStatsGlobal struct {
			AcSubmissionNum []submissionCount `json:"acSubmissionNum"`
		} `json:"submitStatsGlobal"`
	} `json:"matchedUser"`
}

// Scraper implements stats.Fetcher for LeetCode.
type Scraper struct {
	http *resty.Client
	tel  telemetry.API
}

func NewScraper(opts scrapeutil.ClientOptions, tel telemetry.API) (Scraper, error) {
	assert.NotNil(tel, "telemetry")
	tel = telemetry.NewScopedAPI("leetcode", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	client, err := scrapeutil.NewClient(opts, tel, "cpstats/scrapers/leetcode")
	if err != nil {
		return Scraper{}, err
	}
	client.SetHeader("referer", opts.BaseUrl)

	return Scraper{http: client, tel: tel}, nil
}

func (Scraper) Platform() stats.Platform {
	return stats.LeetCode
}

func (s Scraper) Fetch(ctx context.Context, username string) (stats.Record, error) {
	var data problemsSolvedData
	err := graphqlQuery(
		ctx,
		s.http,
		s.tel,
		"userProblemsSolved",
		problemsSolvedQuery,
		problemsSolvedVariables{Username: username},
		&data,
	)
	if err != nil {
		s.tel.ReportWarning(report_scraper_fetch, err, username)
		return nil, fmt.Errorf("leetcode: %w", err)
	}
	if data.MatchedUser == nil {
		return nil, ErrUserNotFound
	}

	return statsFromCounts(data.MatchedUser.SubmitStatsGlobal.AcSubmissionNum), nil
}

// the counts come as an unordered list, buckets that are missing stay at 0.
func statsFromCounts(counts []submissionCount) Stats {
	var out Stats
	for _, c := range counts {
		switch c.Difficulty {
		case "All":
			out.ProblemsSolved = c.Count
		case "Easy":
			out.Easy = c.Count
		case "Medium":
			out.Medium = c.Count
		case "Hard":
			out.Hard = c.Count
		}
	}
	return out
}
