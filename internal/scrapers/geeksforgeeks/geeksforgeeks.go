// Package geeksforgeeks scrapes a user's public GeeksforGeeks profile page.
//
// The profile is a Next.js page, the data it renders from is embedded as json
// in the __NEXT_DATA__ script. When that is absent the score cards of the
// rendered markup are read instead.
package geeksforgeeks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"cpstats-backend/internal/components/assert"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/scrapers/scrapeutil"
	"cpstats-backend/internal/stats"
	"cpstats-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const DefaultBaseUrl = "https://www.geeksforgeeks.org"

const (
	report_scraper_fetch          = "scraper.fetch"
	report_scraper_parse_nextdata = "scraper.parse-next-data"
	report_scraper_missing_fields = "scraper.missing-fields"
)

var ErrUserNotFound = errors.New("geeksforgeeks: user not found")

type Stats struct {
	CodingScore    int `json:"coding_score"`
	ProblemsSolved int `json:"problems_solved"`
	// empty if the user has no institute
	InstituteRank string `json:"institute_rank"`
	LongestStreak int    `json:"longest_streak"`
	School        int    `json:"school"`
	Basic         int    `json:"basic"`
	Easy          int    `json:"easy"`
	Medium        int    `json:"medium"`
	Hard          int    `json:"hard"`
}

func (Stats) Platform() stats.Platform {
	return stats.GeeksforGeeks
}

// Scraper implements stats.Fetcher for GeeksforGeeks.
type Scraper struct {
	http *resty.Client
	tel  telemetry.API
}

// NewScraper creates a scraper, the cloudflare bypass transport is always
// enabled since the profile pages sit behind cloudflare.
func NewScraper(opts scrapeutil.ClientOptions, tel telemetry.API) (Scraper, error) {
	assert.NotNil(tel, "telemetry")
	tel = telemetry.NewScopedAPI("geeksforgeeks", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	opts.CloudflareBypass = true
	client, err := scrapeutil.NewClient(opts, tel, "cpstats/scrapers/geeksforgeeks")
	if err != nil {
		return Scraper{}, err
	}
	return Scraper{http: client, tel: tel}, nil
}

func (Scraper) Platform() stats.Platform {
	return stats.GeeksforGeeks
}

func (s Scraper) Fetch(ctx context.Context, username string) (stats.Record, error) {
	doc, _, err := scrapeutil.GetDocument(ctx, s.http, "/user/"+url.PathEscape(username)+"/")
	if err != nil {
		s.tel.ReportWarning(report_scraper_fetch, err, username)
		return nil, fmt.Errorf("geeksforgeeks: %w", err)
	}

	data, ok := s.nextData(doc)
	if ok {
		return statsFromNextData(data), nil
	}

	cards := doc.Find(`[class*="scoreCard_head__"]`)
	if cards.Length() == 0 {
		return nil, ErrUserNotFound
	}
	return s.statsFromMarkup(cards), nil
}

// looseInt accepts a json number, a numeric string or anything else as 0.
type looseInt int

func (i *looseInt) UnmarshalJSON(data []byte) error {
	*i = looseInt(htmlutil.IntOr(strings.Trim(string(data), `"`), 0))
	return nil
}

// looseString accepts a json string or number, null stays empty.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	unquoted, err := strconv.Unquote(string(data))
	if err != nil {
		*s = looseString(strings.TrimSpace(string(data)))
		return nil
	}
	*s = looseString(strings.TrimSpace(unquoted))
	return nil
}

// looseCount is the number of entries of a json object, anything else
// (an empty bucket is sometimes serialized as []) counts as 0.
type looseCount int

func (c *looseCount) UnmarshalJSON(data []byte) error {
	var entries map[string]json.RawMessage
	if json.Unmarshal(data, &entries) != nil {
		*c = 0
		return nil
	}
	*c = looseCount(len(entries))
	return nil
}

// looseBuckets maps a difficulty to the number of problems solved in it,
// a value that is not an object decodes as no buckets.
type looseBuckets map[string]looseCount

func (b *looseBuckets) UnmarshalJSON(data []byte) error {
	var buckets map[string]looseCount
	if json.Unmarshal(data, &buckets) != nil {
		*b = nil
		return nil
	}
	*b = buckets
	return nil
}

type userInfo struct {
	Score               looseInt    `json:"score"`
	TotalProblemsSolved looseInt    `json:"total_problems_solved"`
	InstituteRank       looseString `json:"institute_rank"`
	LongestStreak       looseInt    `json:"pod_solved_longest_streak"`
}

type nextData struct {
	Props struct {
		PageProps struct {
			UserInfo *userInfo `json:"userInfo"`
			// difficulty -> problem id -> problem
			UserSubmissionsInfo looseBuckets `json:"userSubmissionsInfo"`
		} `json:"pageProps"`
	} `json:"props"`
}

func (s Scraper) nextData(doc *goquery.Document) (nextData, bool) {
	script := doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return nextData{}, false
	}
	var data nextData
	err := json.Unmarshal([]byte(htmlutil.GetText(script.Get(0))), &data)
	if err != nil {
		s.tel.ReportWarning(report_scraper_parse_nextdata, err)
		return nextData{}, false
	}
	if data.Props.PageProps.UserInfo == nil {
		return nextData{}, false
	}
	return data, true
}

func statsFromNextData(data nextData) Stats {
	info := data.Props.PageProps.UserInfo
	submissions := data.Props.PageProps.UserSubmissionsInfo
	return Stats{
		CodingScore:    int(info.Score),
		ProblemsSolved: int(info.TotalProblemsSolved),
		InstituteRank:  string(info.InstituteRank),
		LongestStreak:  int(info.LongestStreak),
		School:         int(submissions["School"]),
		Basic:          int(submissions["Basic"]),
		Easy:           int(submissions["Easy"]),
		Medium:         int(submissions["Medium"]),
		Hard:           int(submissions["Hard"]),
	}
}

// the rendered page only carries the headline numbers, the difficulty
// breakdown and streak stay at 0.
func (s Scraper) statsFromMarkup(cards *goquery.Selection) Stats {
	var out Stats
	var missing []string

	cards.Each(func(_ int, card *goquery.Selection) {
		label := strings.ToLower(htmlutil.SelectionText(card.Find(`[class*="scoreCard_head_left--text"]`)))
		value := htmlutil.SelectionText(card.Find(`[class*="scoreCard_head_left--score"]`))
		switch {
		case strings.Contains(label, "coding score"):
			out.CodingScore = htmlutil.IntOr(value, 0)
		case strings.Contains(label, "problem solved"), strings.Contains(label, "problems solved"):
			out.ProblemsSolved = htmlutil.IntOr(value, 0)
		case strings.Contains(label, "institute rank"):
			if _, ok := htmlutil.FirstInt(value); ok {
				out.InstituteRank = value
			}
		}
	})
	if out.CodingScore == 0 {
		missing = append(missing, "coding_score")
	}
	if out.ProblemsSolved == 0 {
		missing = append(missing, "problems_solved")
	}

	if len(missing) > 0 {
		s.tel.ReportDebug(report_scraper_missing_fields, missing)
	}
	return out
}
