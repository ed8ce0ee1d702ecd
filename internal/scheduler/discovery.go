package scheduler

import (
	"strings"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/crawler"
)

// knownPaths lists listing pages for well-known target names.
var knownPaths = map[string][]string{
	"imdb":           {"/chart/top/", "/chart/moviemeter/", "/chart/toptv/", "/chart/tvmeter/"},
	"tmdb":           {"/movie", "/movie/top-rated", "/tv", "/tv/top-rated"},
	"douban":         {"/chart", "/tv/", "/explore"},
	"myanimelist":    {"/topanime.php", "/anime/season", "/topanime.php?type=airing"},
	"rottentomatoes": {"/browse/movies_in_theaters/", "/browse/tv_series_browse/"},
}

var genericPaths = []string{
	"/",
	"/movies",
	"/movie",
	"/tv",
	"/series",
	"/anime",
	"/documentary",
	"/latest",
	"/popular",
	"/top-rated",
}

// DiscoverURLs returns up to limit absolute URLs to crawl for target. The
// target's own discovery paths win over the built-in tables.
func DiscoverURLs(target crawler.Target, limit int) []string {
	paths := target.DiscoveryPaths
	if len(paths) == 0 {
		paths = knownPaths[strings.ToLower(target.Name)]
	}
	if len(paths) == 0 {
		paths = genericPaths
	}

	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, min(len(paths), max(limit, 0)))
	for _, p := range paths {
		if limit > 0 && len(out) >= limit {
			break
		}
		u := crawler.ResolveURL(target.BaseURL, p)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
