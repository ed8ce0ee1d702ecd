package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/crawler"
)

func TestDiscoverURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target crawler.Target
		limit  int
		want   []string
	}{
		{
			name:   "custom paths deduped",
			target: crawler.Target{Name: "x", BaseURL: "https://x.test/", DiscoveryPaths: []string{"/a", "a", "https://other.test/b"}},
			limit:  10,
			want:   []string{"https://x.test/a", "https://other.test/b"},
		},
		{
			name:   "known name",
			target: crawler.Target{Name: "IMDb", BaseURL: "https://www.imdb.com"},
			limit:  2,
			want:   []string{"https://www.imdb.com/chart/top/", "https://www.imdb.com/chart/moviemeter/"},
		},
		{
			name:   "generic fallback",
			target: crawler.Target{Name: "unknown", BaseURL: "https://films.test"},
			limit:  3,
			want:   []string{"https://films.test/", "https://films.test/movies", "https://films.test/movie"},
		},
		{
			name:   "bad base url",
			target: crawler.Target{Name: "broken", BaseURL: "::"},
			limit:  3,
			want:   []string{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DiscoverURLs(tc.target, tc.limit))
		})
	}
}

func TestDiscoverURLsGenericCount(t *testing.T) {
	t.Parallel()

	got := DiscoverURLs(crawler.Target{Name: "other", BaseURL: "https://films.test"}, 100)
	require.Len(t, got, len(genericPaths))
}
