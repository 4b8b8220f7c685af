// Package stats defines the per-platform statistics records, the adapter
// interface every platform implements and the merging of adapter outcomes
// into a single aggregate.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// Platform is the key a platform's statistics are stored under.
type Platform string

const (
	LeetCode      Platform = "leetcode"
	CodeChef      Platform = "codechef"
	Codeforces    Platform = "codeforces"
	GeeksforGeeks Platform = "geeksforgeeks"
)

// Platforms lists every supported platform in a stable order.
var Platforms = []Platform{LeetCode, CodeChef, Codeforces, GeeksforGeeks}

var ErrUnsupportedPlatform = errors.New("unsupported platform")

// minimum Jaro-Winkler similarity for a platform to be suggested
const suggestionThreshold = 0.8

// ParsePlatform resolves a platform name, names are matched case-insensitively.
func ParsePlatform(name string) (Platform, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, p := range Platforms {
		if string(p) == normalized {
			return p, nil
		}
	}

	suggestion, ok := Suggest(normalized)
	if ok {
		return "", fmt.Errorf("%w '%s', did you mean '%s'?", ErrUnsupportedPlatform, name, suggestion)
	}
	return "", fmt.Errorf("%w '%s'", ErrUnsupportedPlatform, name)
}

// Suggest returns the supported platform most similar to `name`.
func Suggest(name string) (Platform, bool) {
	var best Platform
	var bestSimilarity float64
	for _, p := range Platforms {
		similarity := matchr.JaroWinkler(name, string(p), false)
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = p
		}
	}
	if bestSimilarity < suggestionThreshold {
		return "", false
	}
	return best, true
}

// Record is the normalized statistics of a single platform.
type Record interface {
	// Platform returns the platform the record belongs to.
	Platform() Platform
}

// Fetcher turns a username into that user's statistics on one platform.
//
// note: fault injection point
type Fetcher interface {
	Platform() Platform
	// Fetch makes exactly one request to the platform, it performs no
	// validation of the username beyond letting the platform reject it.
	Fetch(ctx context.Context, username string) (Record, error)
}

// Aggregate maps a platform to its statistics, platforms that failed or were
// not requested are absent.
type Aggregate map[Platform]Record

// Platforms returns the keys of the aggregate in the order of the Platforms variable.
func (a Aggregate) Platforms() []Platform {
	var out []Platform
	for _, p := range Platforms {
		if _, ok := a[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
