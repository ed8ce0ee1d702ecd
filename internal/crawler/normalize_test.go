package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInferMediaType(t *testing.T) {
	t.Parallel()

	tests := map[string]MediaType{
		"https://example.com/movie/123":              MediaMovie,
		"https://example.com/title/tt0111161/":       MediaMovie,
		"https://example.com/tv/breaking-bad":        MediaTV,
		"https://example.com/series/dark/season-2":   MediaTV,
		"https://example.com/anime/one-piece":        MediaAnime,
		"https://example.com/documentary/planet":     MediaDocumentary,
		"https://example.com/about":                  MediaUnknown,
		"https://movie-site.example.com/tv/the-wire": MediaTV,
	}
	for raw, want := range tests {
		require.Equal(t, want, InferMediaType(raw), raw)
	}
}

func TestParseRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want float64
	}{
		{"8.7/10", 8.7},
		{"Rating: 7", 7},
		{"95%", 10},
		{"no score", 0},
		{"", 0},
		{"-3", 3},
	}
	for _, tc := range tests {
		require.InDelta(t, tc.want, ParseRating(tc.raw), 1e-9, tc.raw)
	}
}

func TestParseReleaseDate(t *testing.T) {
	t.Parallel()

	day := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	tests := []struct {
		raw  string
		want *time.Time
	}{
		{"Released 2021-3-7", day(2021, time.March, 7)},
		{"2019/12/25 (US)", day(2019, time.December, 25)},
		{"上映日期：2010年7月16日", day(2010, time.July, 16)},
		{"2020-02-30 or 2020/02/28", day(2020, time.February, 28)},
		{"coming soon", nil},
		{"1999", nil},
	}
	for _, tc := range tests {
		got := ParseReleaseDate(tc.raw)
		if tc.want == nil {
			require.Nil(t, got, tc.raw)
			continue
		}
		require.NotNil(t, got, tc.raw)
		require.True(t, tc.want.Equal(*got), "%s: got %v", tc.raw, got)
	}
}

func TestSplitNamesAndDedupe(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"Tom Hanks", "Robin Wright"}, SplitNames("Tom Hanks, Robin Wright / tom hanks"))
	require.Equal(t, []string{"剧情", "爱情"}, SplitNames("剧情、爱情"))
	require.Equal(t, []string{"Drama", "Sci-Fi"}, DedupeStrings([]string{" Drama ", "", "Sci-Fi", "drama"}))
	require.Empty(t, DedupeStrings(nil))
}
