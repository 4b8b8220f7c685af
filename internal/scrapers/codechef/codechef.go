// Package codechef scrapes a user's public CodeChef profile page.
package codechef

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"cpstats-backend/internal/components/assert"
	"cpstats-backend/internal/components/telemetry"
	"cpstats-backend/internal/scrapers/scrapeutil"
	"cpstats-backend/internal/stats"
	"cpstats-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const DefaultBaseUrl = "https://www.codechef.com"

const (
	report_scraper_fetch          = "scraper.fetch"
	report_scraper_parse_ratings  = "scraper.parse-ratings"
	report_scraper_missing_fields = "scraper.missing-fields"
)

// Unrated is the value of Stats.Stars for users without a rating.
const Unrated = "unrated"

var ErrUserNotFound = errors.New("codechef: user not found")

type Stats struct {
	Rating               int    `json:"rating"`
	HighestRating        int    `json:"highest_rating"`
	Stars                string `json:"stars"`
	GlobalRank           int    `json:"global_rank"`
	CountryRank          int    `json:"country_rank"`
	ProblemsSolved       int    `json:"problems_solved"`
	ContestsParticipated int    `json:"contests_participated"`
	Badges               int    `json:"badges"`
}

func (Stats) Platform() stats.Platform {
	return stats.CodeChef
}

// Scraper implements stats.Fetcher for CodeChef.
type Scraper struct {
	http *resty.Client
	tel  telemetry.API
}

func NewScraper(opts scrapeutil.ClientOptions, tel telemetry.API) (Scraper, error) {
	assert.NotNil(tel, "telemetry")
	tel = telemetry.NewScopedAPI("codechef", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	client, err := scrapeutil.NewClient(opts, tel, "cpstats/scrapers/codechef")
	if err != nil {
		return Scraper{}, err
	}
	return Scraper{http: client, tel: tel}, nil
}

func (Scraper) Platform() stats.Platform {
	return stats.CodeChef
}

func (s Scraper) Fetch(ctx context.Context, username string) (stats.Record, error) {
	doc, _, err := scrapeutil.GetDocument(ctx, s.http, "/users/"+url.PathEscape(username))
	if err != nil {
		s.tel.ReportWarning(report_scraper_fetch, err, username)
		return nil, fmt.Errorf("codechef: %w", err)
	}
	// unknown users get redirected to a page without the profile
	if doc.Find(".user-details-container").Length() == 0 {
		return nil, ErrUserNotFound
	}

	return s.parseProfile(doc), nil
}

var (
	highestRatingRegex  = regexp.MustCompile(`Highest Rating\s*(\d+)`)
	problemsSolvedRegex = regexp.MustCompile(`Total Problems Solved:\s*(\d+)`)
	allRatingRegex      = regexp.MustCompile(`(?s)var all_rating\s*=\s*(\[.*?\]);`)
)

func (s Scraper) parseProfile(doc *goquery.Document) Stats {
	out := Stats{Stars: Unrated}
	var missing []string

	rating, ok := htmlutil.FirstInt(htmlutil.SelectionText(doc.Find(".rating-number").First()))
	if ok {
		out.Rating = rating
	} else {
		missing = append(missing, "rating")
	}

	stars := doc.Find(".rating-star span").Length()
	if stars > 0 {
		out.Stars = fmt.Sprintf("%d★", stars)
	}

	groups := highestRatingRegex.FindStringSubmatch(htmlutil.SelectionText(doc.Find(".rating-header small")))
	if len(groups) == 2 {
		out.HighestRating = htmlutil.IntOr(groups[1], 0)
	} else {
		out.HighestRating = out.Rating
	}

	doc.Find(".rating-ranks ul li").Each(func(_ int, li *goquery.Selection) {
		label := strings.ToLower(htmlutil.SelectionText(li))
		value := htmlutil.IntOr(htmlutil.SelectionText(li.Find("strong").First()), 0)
		switch {
		case strings.Contains(label, "global rank"):
			out.GlobalRank = value
		case strings.Contains(label, "country rank"):
			out.CountryRank = value
		}
	})

	doc.Find("section.problems-solved h3").EachWithBreak(func(_ int, h3 *goquery.Selection) bool {
		groups := problemsSolvedRegex.FindStringSubmatch(htmlutil.SelectionText(h3))
		if len(groups) < 2 {
			return true
		}
		out.ProblemsSolved = htmlutil.IntOr(groups[1], 0)
		return false
	})
	if out.ProblemsSolved == 0 {
		missing = append(missing, "problems_solved")
	}

	out.ContestsParticipated = s.countContests(doc)
	out.Badges = doc.Find(".widget-badges .badge").Length()

	if len(missing) > 0 {
		s.tel.ReportDebug(report_scraper_missing_fields, missing)
	}
	return out
}

// the rating graph is rendered from an inline script that holds one entry per rated contest.
func (s Scraper) countContests(doc *goquery.Document) int {
	groups := htmlutil.FindInScripts(doc, allRatingRegex)
	if len(groups) < 2 {
		return 0
	}
	var contests []json.RawMessage
	err := json.Unmarshal([]byte(groups[1]), &contests)
	if err != nil {
		s.tel.ReportWarning(report_scraper_parse_ratings, fmt.Errorf("unmarshal all_rating: %w", err))
		return 0
	}
	return len(contests)
}
