package services

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"qatar-events-collector/internal/models"
)

// URLClassifier extracts event detail-page URLs from listing-page markdown
// for one source family. Each source has its own URL shape and exclusion
// rules; new sources plug in as new implementations without touching shared
// pipeline logic.
type URLClassifier interface {
	// Source returns the provenance tag applied to records from this source.
	Source() string
	// Matches reports whether a URL belongs to this source family.
	Matches(pageURL string) bool
	// ExtractDetailURLs returns the unique detail-page URLs found in the
	// markdown, in order of first appearance.
	ExtractDetailURLs(markdown string) []string
	// PageURL constructs the listing URL for the given 1-based page number.
	PageURL(baseURL string, page int) string
}

// NewURLClassifier returns the classifier registered under the given name,
// or nil when the name is unknown.
func NewURLClassifier(name string) URLClassifier {
	switch name {
	case "marhaba":
		return &MarhabaClassifier{}
	case "iloveqatar":
		return &ILoveQatarClassifier{}
	}
	return nil
}

// MarhabaClassifier matches Marhaba Qatar event detail pages. Marhaba detail
// URLs live under /event/ (singular), so a simple pattern match suffices.
type MarhabaClassifier struct{}

var marhabaEventURLPattern = regexp.MustCompile(`https://marhaba\.qa/event/[^)\s]+/`)

// Source implements URLClassifier.
func (c *MarhabaClassifier) Source() string { return models.SourceMarhaba }

// Matches implements URLClassifier.
func (c *MarhabaClassifier) Matches(pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	return err == nil && parsed.Host == "marhaba.qa"
}

// ExtractDetailURLs implements URLClassifier.
func (c *MarhabaClassifier) ExtractDetailURLs(markdown string) []string {
	return dedupeOrdered(marhabaEventURLPattern.FindAllString(markdown, -1))
}

// PageURL implements URLClassifier. Marhaba paginates as /page/N/.
func (c *MarhabaClassifier) PageURL(baseURL string, page int) string {
	if page <= 1 {
		return baseURL
	}
	return baseURL + "page/" + strconv.Itoa(page) + "/"
}

// ILoveQatarClassifier matches iLoveQatar event detail pages. A detail URL
// must be /events/<category>/<slug> with a known category; category pages,
// filter/tag collections and individual U-17 tournament fixtures are
// excluded.
type ILoveQatarClassifier struct{}

var (
	ilqEventURLPattern = regexp.MustCompile(`https://www\.iloveqatar\.net/events/[^)\s]+`)
	ilqGroupPattern    = regexp.MustCompile(`(^|-)group(-|\d|[a-z])`)
)

// ilqCategorySlugs is the fixed set of known iLoveQatar event categories.
var ilqCategorySlugs = map[string]bool{
	"entertainment":         true,
	"sports":                true,
	"food-dining":           true,
	"arts-culture":          true,
	"night":                 true,
	"community":             true,
	"social-responsibility": true,
	"education":             true,
	"other":                 true,
	"volunteer":             true,
}

// Source implements URLClassifier.
func (c *ILoveQatarClassifier) Source() string { return models.SourceILoveQatar }

// Matches implements URLClassifier.
func (c *ILoveQatarClassifier) Matches(pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	return err == nil && parsed.Host == "www.iloveqatar.net"
}

// ExtractDetailURLs implements URLClassifier.
func (c *ILoveQatarClassifier) ExtractDetailURLs(markdown string) []string {
	raw := ilqEventURLPattern.FindAllString(markdown, -1)

	filtered := make([]string, 0, len(raw))
	for _, u := range raw {
		if c.isDetailURL(u) && !c.isU17FixtureURL(u) {
			filtered = append(filtered, u)
		}
	}
	return dedupeOrdered(filtered)
}

// PageURL implements URLClassifier. iLoveQatar paginates with a page query
// parameter.
func (c *ILoveQatarClassifier) PageURL(baseURL string, page int) string {
	if page <= 1 {
		return baseURL
	}
	sep := "?page="
	if strings.Contains(baseURL, "?") {
		sep = "&page="
	}
	return baseURL + sep + strconv.Itoa(page)
}

// isDetailURL reports whether the URL points at a single event page rather
// than a listing, category, or taxonomy page.
func (c *ILoveQatarClassifier) isDetailURL(rawURL string) bool {
	parts, ok := pathSegments(rawURL)
	if !ok || len(parts) < 3 {
		return false
	}
	if parts[0] != "events" {
		return false
	}
	for _, part := range parts {
		if part == "filter" || part == "tag" || part == "tags" {
			return false
		}
	}
	return ilqCategorySlugs[parts[1]]
}

// isU17FixtureURL reports whether the URL is an individual fixture of a
// U-17 tournament (a single match, group stage or knockout round) rather
// than the overarching tournament event. Without this rule a tournament
// floods the dataset with one record per match.
func (c *ILoveQatarClassifier) isU17FixtureURL(rawURL string) bool {
	parts, ok := pathSegments(rawURL)
	if !ok || len(parts) < 3 || parts[0] != "events" {
		return false
	}

	slug := strings.ToLower(strings.Join(parts[2:], "/"))
	if !strings.Contains(slug, "u-17") && !strings.Contains(slug, "u17") {
		return false
	}

	if strings.Contains(slug, "-vs-") {
		return true
	}
	if ilqGroupPattern.MatchString(slug) {
		return true
	}
	for _, term := range []string{"quarter-final", "quarterfinal", "semi-final", "semifinal", "round-of-"} {
		if strings.Contains(slug, term) {
			return true
		}
	}
	return false
}

// SelectPrimaryEvent picks, from multiple records extracted off one detail
// page, the record whose name best matches the page URL's slug. Requires at
// least two shared normalized tokens; below threshold, or with no named
// candidates, the first record in extraction order wins.
func SelectPrimaryEvent(events []map[string]interface{}, pageURL string) map[string]interface{} {
	if len(events) == 0 {
		return nil
	}

	slugTokens := models.NormalizeTokens(urlSlug(pageURL))

	const threshold = 2
	var best map[string]interface{}
	bestOverlap := -1

	for _, evt := range events {
		name, _ := evt["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		overlap := 0
		for token := range models.NormalizeTokens(name) {
			if slugTokens[token] {
				overlap++
			}
		}
		if overlap > bestOverlap {
			bestOverlap = overlap
			best = evt
		}
	}

	if best == nil || bestOverlap < threshold {
		return events[0]
	}
	return best
}

var (
	websiteLabelPattern      = regexp.MustCompile(`Website:\s*\n\[* ?(https?://[^)\]\s]+)`)
	visitWebsiteLabelPattern = regexp.MustCompile(`(?i)\[\s*Visit\s+Website\s*\]\((https?://[^)\s]+)`)
)

// ExtractWebsiteURL returns the first external link following a "Website:"
// label in detail-page markdown, or empty when none is present.
func ExtractWebsiteURL(markdown string) string {
	if m := websiteLabelPattern.FindStringSubmatch(markdown); m != nil {
		return m[1]
	}
	return ""
}

// ExtractVisitWebsiteURL returns the external link labeled "Visit Website"
// in iLoveQatar detail-page markdown, or empty when none is present.
func ExtractVisitWebsiteURL(markdown string) string {
	if m := visitWebsiteLabelPattern.FindStringSubmatch(markdown); m != nil {
		return m[1]
	}
	return ""
}

// urlSlug returns the trailing path segment of a URL, used for slug-token
// matching against extracted record names.
func urlSlug(rawURL string) string {
	parts, ok := pathSegments(rawURL)
	if !ok || len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// pathSegments parses a URL and returns its non-empty path segments.
func pathSegments(rawURL string) ([]string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	var parts []string
	for _, p := range strings.Split(parsed.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts, true
}

// dedupeOrdered removes duplicates while preserving first-appearance order.
func dedupeOrdered(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	unique := make([]string, 0, len(urls))
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}
