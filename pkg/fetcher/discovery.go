package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/stage"
	"github.com/mmcdole/gofeed"
)

const discoveryDelay = 500 * time.Millisecond

// DiscoveryFeed is one curated launch/news feed to mine for new tools.
type DiscoveryFeed struct {
	Name     string
	URL      string
	Category string
}

// Discovery mines launch feeds for tools not yet in the catalog. An entry
// that matches an existing tool is skipped; everything else becomes a
// pending candidate for the quality gate. Known slugs are skipped by the
// candidate insert itself, so re-running a feed is a no-op.
type Discovery struct {
	store   store.Store
	client  *http.Client
	parser  *gofeed.Parser
	feeds   []DiscoveryFeed
	repoAPI string
}

// NewDiscovery creates the candidate discovery fetcher.
func NewDiscovery(s store.Store, feeds []DiscoveryFeed) *Discovery {
	return &Discovery{
		store:   s,
		client:  &http.Client{Timeout: 30 * time.Second},
		parser:  gofeed.NewParser(),
		feeds:   feeds,
		repoAPI: "https://api.github.com",
	}
}

func (d *Discovery) SourceKey() string { return "discovery" }

func (d *Discovery) Fetch(ctx context.Context) (*stage.Result, error) {
	if len(d.feeds) == 0 {
		return nil, fmt.Errorf("no discovery feeds configured")
	}

	matcher, _, err := loadMatcher(ctx, d.store)
	if err != nil {
		return nil, err
	}

	res := &stage.Result{}
	for _, feed := range d.feeds {
		parsed, err := d.fetchFeed(ctx, feed)
		if err != nil {
			res.Errorf("feed %s: %v", feed.Name, err)
			continue
		}

		for _, entry := range parsed.Items {
			res.Total++

			name := cleanLaunchTitle(entry.Title)
			if name == "" {
				res.Skipped++
				continue
			}
			if _, ok := matcher.Match(name); ok {
				res.Skipped++ // already catalogued
				continue
			}

			c := &store.Candidate{
				Slug:           slugify(name),
				Name:           name,
				URL:            entry.Link,
				Category:       feed.Category,
				DiscoveredFrom: feed.Name,
			}
			// A launch entry that points straight at a repository can be
			// enriched on the spot, so the quality gate sees real numbers
			// instead of an empty record.
			if owner, repo, ok := splitRepoURL(entry.Link); ok {
				c.RepoURL = entry.Link
				if stats, err := fetchRepoStats(ctx, d.client, d.repoAPI, "", owner, repo); err == nil {
					c.Stars = stats.stars
					c.Forks = stats.forks
					c.OpenIssues = stats.issues
				}
			}
			inserted, err := d.store.InsertCandidate(ctx, c)
			if err != nil {
				res.Errorf("candidate %s: %v", c.Slug, err)
				continue
			}
			if !inserted {
				res.Skipped++ // already discovered, possibly already rejected
				continue
			}
			res.Updated++
		}

		throttle(ctx, discoveryDelay)
	}

	return res, nil
}

func (d *Discovery) fetchFeed(ctx context.Context, feed DiscoveryFeed) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "toolrank/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return d.parser.Parse(resp.Body)
}

// cleanLaunchTitle strips the tagline launch feeds append after a dash or
// colon ("Acme AI - Generate anything" -> "Acme AI").
func cleanLaunchTitle(title string) string {
	for _, sep := range []string{" - ", " — ", ": ", " | "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
			break
		}
	}
	return strings.TrimSpace(title)
}

func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			b.WriteRune('-')
		}
	}
	return strings.Trim(strings.Join(strings.FieldsFunc(b.String(), func(r rune) bool { return r == '-' }), "-"), "-")
}
