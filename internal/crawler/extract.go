package crawler

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var attrSuffix = regexp.MustCompile(`^[A-Za-z_][\w:-]*$`)

var defaultSelectors = map[string]string{
	FieldTitle:     "h1",
	FieldPoster:    "img.poster@src",
	FieldDownloads: `a[href^="magnet:"]@href`,
}

// Extract parses body with the target's selectors into a Record.
func Extract(body []byte, target Target, pageURL string, crawledAt time.Time) (Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Record{}, fmt.Errorf("%w: read html: %w", ErrParse, err)
	}
	x := extractor{doc: doc, selectors: target.Selectors}

	rec := Record{
		Title:       x.first(FieldTitle),
		Description: x.first(FieldDescription),
		MediaType:   InferMediaType(pageURL),
		Director:    x.first(FieldDirector),
		Actors:      x.names(FieldActors),
		Genres:      x.names(FieldGenres),
		Rating:      ParseRating(x.first(FieldRating)),
		ReleaseDate: ParseReleaseDate(x.first(FieldReleaseDate)),
		PosterURL:   ResolveURL(target.BaseURL, x.firstAttr(FieldPoster, "src")),
		BackdropURL: ResolveURL(target.BaseURL, x.firstAttr(FieldBackdrop, "src")),
		Source:      target.Name,
		Metadata: Metadata{
			CrawledAt: crawledAt,
			OriginURL: pageURL,
			Target:    target.Name,
		},
	}
	rec.DownloadURLs = FilterDownloadURLs(target.BaseURL, x.allAttr(FieldDownloads, "href"))
	return rec, nil
}

// ValidateRecord enforces the required-field rules on an extracted record.
func ValidateRecord(rec Record, maxDescriptionLength int) error {
	if strings.TrimSpace(rec.Title) == "" {
		return fmt.Errorf("%w: title is empty", ErrParse)
	}
	if maxDescriptionLength > 0 && utf8.RuneCountInString(rec.Description) > maxDescriptionLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrParse, maxDescriptionLength)
	}
	if rec.Rating < 0 || rec.Rating > 10 {
		return fmt.Errorf("%w: rating %.2f out of range", ErrParse, rec.Rating)
	}
	return nil
}

type extractor struct {
	doc       *goquery.Document
	selectors map[string]string
}

func (x extractor) selector(field string) (css, attr string, ok bool) {
	raw, ok := x.selectors[field]
	if !ok {
		raw, ok = defaultSelectors[field]
	}
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return "", "", false
	}
	if i := strings.LastIndex(raw, "@"); i > 0 && attrSuffix.MatchString(raw[i+1:]) {
		return strings.TrimSpace(raw[:i]), raw[i+1:], true
	}
	return raw, "", true
}

func (x extractor) first(field string) string {
	css, attr, ok := x.selector(field)
	if !ok {
		return ""
	}
	sel := x.doc.Find(css).First()
	if attr != "" {
		v, _ := sel.Attr(attr)
		return collapse(v)
	}
	return collapse(sel.Text())
}

func (x extractor) firstAttr(field, fallback string) string {
	css, attr, ok := x.selector(field)
	if !ok {
		return ""
	}
	if attr == "" {
		attr = fallback
	}
	v, _ := x.doc.Find(css).First().Attr(attr)
	return strings.TrimSpace(v)
}

func (x extractor) allAttr(field, fallback string) []string {
	css, attr, ok := x.selector(field)
	if !ok {
		return nil
	}
	if attr == "" {
		attr = fallback
	}
	var out []string
	x.doc.Find(css).Each(func(_ int, s *goquery.Selection) {
		if v, exists := s.Attr(attr); exists {
			out = append(out, v)
		}
	})
	return out
}

func (x extractor) names(field string) []string {
	css, _, ok := x.selector(field)
	if !ok {
		return nil
	}
	var raw []string
	x.doc.Find(css).Each(func(_ int, s *goquery.Selection) {
		raw = append(raw, SplitNames(s.Text())...)
	})
	return DedupeStrings(raw)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
