// Package scrapeutil builds the HTTP clients shared in shape (not in state) by
// every platform scraper.
package scrapeutil

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"cpstats-backend/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const DefaultTimeout = time.Second * 30

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// ClientOptions configures the client of a single scraper.
type ClientOptions struct {
	BaseUrl string
	// defaults to DefaultTimeout
	Timeout time.Duration
	// defaults to a desktop browser user agent
	UserAgent string
	// wraps the transport so that requests look like they came from a browser
	// to cloudflare's bot protection
	CloudflareBypass bool
}

// NewClient creates a resty client for one scraper, every scraper owns its own
// client so that no state is shared between them.
func NewClient(opts ClientOptions, tel telemetry.API, tracerName string) (*resty.Client, error) {
	if opts.BaseUrl == "" {
		return nil, fmt.Errorf("base url is empty")
	}
	parsed, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = browserUserAgent
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsed.Hostname()))
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	telemetry.InstrumentResty(client, tel, tracerName)

	return client, nil
}

// StatusError is returned when a platform responds with a non-2xx status.
type StatusError struct {
	Url    string
	Status int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.Url, e.Status)
}

// GetDocument fetches `path` and parses the response as html.
func GetDocument(ctx context.Context, client *resty.Client, path string) (*goquery.Document, *resty.Response, error) {
	res, err := client.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch: %w", err)
	}
	if res.IsError() {
		return nil, res, StatusError{Url: res.Request.URL, Status: res.StatusCode()}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, res, fmt.Errorf("parse: %w", err)
	}
	return doc, res, nil
}
