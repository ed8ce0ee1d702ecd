package crawler

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ratingPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	datePatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
		regexp.MustCompile(`(\d{4})/(\d{1,2})/(\d{1,2})`),
		regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日`),
	}
	nameSeparators = regexp.MustCompile(`[,/|;、，；]+`)
)

var mediaRules = []struct {
	media   MediaType
	markers []string
}{
	{MediaDocumentary, []string{"documentary", "/doc/"}},
	{MediaAnime, []string{"anime"}},
	{MediaTV, []string{"/tv", "series", "/show", "episode", "season"}},
	{MediaMovie, []string{"movie", "film", "/title/"}},
}

// InferMediaType classifies a page by markers in its URL path.
func InferMediaType(rawURL string) MediaType {
	p := strings.ToLower(rawURL)
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		p = strings.ToLower(u.Path)
	}
	for _, rule := range mediaRules {
		for _, marker := range rule.markers {
			if strings.Contains(p, marker) {
				return rule.media
			}
		}
	}
	return MediaUnknown
}

// ParseRating extracts the first number in raw and clamps it to [0, 10].
// Text without a number rates 0.
func ParseRating(raw string) float64 {
	token := ratingPattern.FindString(raw)
	if token == "" {
		return 0
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0
	}
	return min(max(v, 0), 10)
}

// ParseReleaseDate tries YYYY-M-D, YYYY/M/D and YYYY年M月D日 in that order
// and returns the first calendar-valid match.
func ParseReleaseDate(raw string) *time.Time {
	for _, pattern := range datePatterns {
		m := pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if d.Year() != year || int(d.Month()) != month || d.Day() != day {
			continue
		}
		return &d
	}
	return nil
}

// SplitNames splits a delimited list of names and dedupes the result.
func SplitNames(raw string) []string {
	return DedupeStrings(nameSeparators.Split(raw, -1))
}

// DedupeStrings trims values and drops blanks and case-insensitive
// duplicates, keeping first-seen order.
func DedupeStrings(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.Join(strings.Fields(v), " ")
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
