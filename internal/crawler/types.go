package crawler

import (
	"errors"
	"net/http"
	"time"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

var (
	// ErrValidation reports a URL or input rejected before any network I/O.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownTarget reports a target name that is not configured.
	ErrUnknownTarget = errors.New("unknown crawl target")
	// ErrTargetDisabled reports a configured target that is switched off.
	ErrTargetDisabled = errors.New("crawl target disabled")
	// ErrFetch reports a transport failure or non-2xx response.
	ErrFetch = errors.New("fetch failed")
	// ErrParse reports a page whose extracted fields are missing or invalid.
	ErrParse = errors.New("parse failed")
)

// Selector keys understood by the extractor.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldDirector    = "director"
	FieldActors      = "actors"
	FieldGenres      = "genres"
	FieldRating      = "rating"
	FieldReleaseDate = "release_date"
	FieldPoster      = "poster"
	FieldBackdrop    = "backdrop"
	FieldDownloads   = "download_links"
)

// Target is a named site profile. Selectors map field keys to CSS selectors;
// a selector may end in "@attr" to read an attribute instead of text.
type Target struct {
	Name             string            `mapstructure:"name" json:"name"`
	BaseURL          string            `mapstructure:"base_url" json:"base_url"`
	Selectors        map[string]string `mapstructure:"selectors" json:"selectors"`
	Enabled          bool              `mapstructure:"enabled" json:"enabled"`
	MaxPages         int               `mapstructure:"max_pages" json:"max_pages"`
	RequestDelay     time.Duration     `mapstructure:"request_delay" json:"request_delay"`
	RespectRobotsTxt bool              `mapstructure:"respect_robots_txt" json:"respect_robots_txt"`
	DiscoveryPaths   []string          `mapstructure:"discovery_paths" json:"discovery_paths,omitempty"`
}

// MediaType classifies a crawled record.
type MediaType string

// Known media types.
const (
	MediaMovie       MediaType = "movie"
	MediaTV          MediaType = "tv"
	MediaAnime       MediaType = "anime"
	MediaDocumentary MediaType = "documentary"
	MediaUnknown     MediaType = "unknown"
)

// Metadata describes where and when a record was crawled.
type Metadata struct {
	CrawledAt time.Time `json:"crawled_at"`
	OriginURL string    `json:"origin_url"`
	Target    string    `json:"target"`
}

// Record is the normalized result of parsing one page.
type Record struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	MediaType    MediaType  `json:"media_type"`
	Director     string     `json:"director,omitempty"`
	Actors       []string   `json:"actors,omitempty"`
	Genres       []string   `json:"genres,omitempty"`
	ReleaseDate  *time.Time `json:"release_date,omitempty"`
	PosterURL    string     `json:"poster_url,omitempty"`
	BackdropURL  string     `json:"backdrop_url,omitempty"`
	Rating       float64    `json:"rating"`
	Source       string     `json:"source"`
	DownloadURLs []string   `json:"download_urls,omitempty"`
	Metadata     Metadata   `json:"metadata"`
}

// Result is the outcome of crawling one URL. Failures carry Err and never
// a Record.
type Result struct {
	URL       string  `json:"url"`
	Success   bool    `json:"success"`
	Record    *Record `json:"record,omitempty"`
	FromCache bool    `json:"from_cache,omitempty"`
	ProxyID   string  `json:"proxy_id,omitempty"`
	Error     string  `json:"error,omitempty"`
	Err       error   `json:"-"`
}

// BatchResult aggregates a windowed crawl. Results holds successes only.
type BatchResult struct {
	Results   []Result `json:"results"`
	Attempted int      `json:"attempted"`
	Failed    int      `json:"failed"`
	Windows   int      `json:"windows"`
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	Headers   http.Header
	Proxy     *proxypool.Record
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
