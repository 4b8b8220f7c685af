// Package codeforces scrapes a user's public Codeforces profile page.
package codeforces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"cpstats-backend/internal/components/assert"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/scrapers/scrapeutil"
	"cpstats-backend/internal/stats"
	"cpstats-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const DefaultBaseUrl = "https://codeforces.com"

const (
	report_scraper_fetch          = "scraper.fetch"
	report_scraper_missing_fields = "scraper.missing-fields"
)

// Unrated is the value of Stats.Rank and Stats.MaxRank for users that never
// took part in a rated contest.
const Unrated = "unrated"

var ErrUserNotFound = errors.New("codeforces: user not found")

type Stats struct {
	Rating         int    `json:"rating"`
	MaxRating      int    `json:"max_rating"`
	Rank           string `json:"rank"`
	MaxRank        string `json:"max_rank"`
	Contribution   int    `json:"contribution"`
	ProblemsSolved int    `json:"problems_solved"`
}

func (Stats) Platform() stats.Platform {
	return stats.Codeforces
}

// Scraper implements stats.Fetcher for Codeforces.
type Scraper struct {
	http *resty.Client
	tel  telemetry.API
}

func NewScraper(opts scrapeutil.ClientOptions, tel telemetry.API) (Scraper, error) {
	assert.NotNil(tel, "telemetry")
	tel = telemetry.NewScopedAPI("codeforces", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	client, err := scrapeutil.NewClient(opts, tel, "cpstats/scrapers/codeforces")
	if err != nil {
		return Scraper{}, err
	}
	return Scraper{http: client, tel: tel}, nil
}

func (Scraper) Platform() stats.Platform {
	return stats.Codeforces
}

func (s Scraper) Fetch(ctx context.Context, username string) (stats.Record, error) {
	doc, _, err := scrapeutil.GetDocument(ctx, s.http, "/profile/"+url.PathEscape(username))
	if err != nil {
		s.tel.ReportWarning(report_scraper_fetch, err, username)
		return nil, fmt.Errorf("codeforces: %w", err)
	}
	// codeforces redirects unknown handles to the front page
	userbox := doc.Find(".userbox").First()
	if userbox.Length() == 0 {
		return nil, ErrUserNotFound
	}

	return s.parseProfile(doc, userbox), nil
}

func (s Scraper) parseProfile(doc *goquery.Document, userbox *goquery.Selection) Stats {
	out := Stats{Rank: Unrated, MaxRank: Unrated}
	var missing []string

	rank := htmlutil.SelectionText(userbox.Find(".user-rank span").First())
	if rank != "" {
		out.Rank = strings.ToLower(rank)
	}

	userbox.Find(".info ul li").Each(func(_ int, li *goquery.Selection) {
		label := htmlutil.SelectionText(li)
		switch {
		case strings.Contains(label, "Contest rating:"):
			out.Rating = htmlutil.IntOr(htmlutil.SelectionText(li.Children().Filter("span").First()), 0)

			// (max. <span>master</span>, <span>2250</span>)
			maxInfo := li.Find(".smaller span")
			if maxInfo.Length() >= 2 {
				out.MaxRank = strings.ToLower(htmlutil.SelectionText(maxInfo.Eq(0)))
				out.MaxRating = htmlutil.IntOr(htmlutil.SelectionText(maxInfo.Eq(1)), out.Rating)
			}
		case strings.Contains(label, "Contribution:"):
			out.Contribution = htmlutil.IntOr(htmlutil.SelectionText(li.Find("span").First()), 0)
		}
	})
	if out.MaxRating == 0 {
		out.MaxRating = out.Rating
	}

	solved, ok := s.problemsSolved(doc)
	if ok {
		out.ProblemsSolved = solved
	} else {
		missing = append(missing, "problems_solved")
	}

	if len(missing) > 0 {
		s.tel.ReportDebug(report_scraper_missing_fields, missing)
	}
	return out
}

// the activity frame renders one counter per period, the all time one is
// identified by its description.
func (s Scraper) problemsSolved(doc *goquery.Document) (int, bool) {
	var value int
	var found bool
	doc.Find("._UserActivityFrame_counter").EachWithBreak(func(_ int, counter *goquery.Selection) bool {
		description := strings.ToLower(htmlutil.SelectionText(counter.Find("._UserActivityFrame_counterDescription")))
		if !strings.Contains(description, "solved for all time") {
			return true
		}
		value, found = htmlutil.FirstInt(htmlutil.SelectionText(counter.Find("._UserActivityFrame_counterValue")))
		return false
	})
	return value, found
}
