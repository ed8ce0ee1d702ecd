package crawler

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const moviePage = `<html><body>
<h1 class="title">  The Matrix  </h1>
<div class="plot">A hacker learns
the truth.</div>
<span class="director">Lana Wachowski</span>
<ul class="cast"><li>Keanu Reeves</li><li>Carrie-Anne Moss</li><li>keanu reeves</li></ul>
<span class="genre">Action, Sci-Fi</span><span class="genre">Action</span>
<span class="score">8.7 / 10</span>
<span class="date">1999-3-31</span>
<img class="poster" src="/img/matrix.jpg">
<div class="hero" data-bg="https://cdn.example.net/matrix-bg.jpg"></div>
<a class="dl" href="magnet:?xt=urn:btih:matrix">magnet</a>
<a class="dl" href="/dl/matrix.torrent">torrent</a>
<a class="dl" href="mailto:admin@example.com">mail</a>
</body></html>`

func movieTarget() Target {
	return Target{
		Name:    "films",
		BaseURL: "https://films.example.com",
		Enabled: true,
		Selectors: map[string]string{
			FieldTitle:       "h1.title",
			FieldDescription: ".plot",
			FieldDirector:    ".director",
			FieldActors:      ".cast li",
			FieldGenres:      ".genre",
			FieldRating:      ".score",
			FieldReleaseDate: ".date",
			FieldPoster:      "img.poster",
			FieldBackdrop:    ".hero@data-bg",
			FieldDownloads:   "a.dl",
		},
	}
}

func TestExtractAllFields(t *testing.T) {
	t.Parallel()

	crawledAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec, err := Extract([]byte(moviePage), movieTarget(), "https://films.example.com/movie/matrix", crawledAt)
	require.NoError(t, err)

	require.Equal(t, "The Matrix", rec.Title)
	require.Equal(t, "A hacker learns the truth.", rec.Description)
	require.Equal(t, MediaMovie, rec.MediaType)
	require.Equal(t, "Lana Wachowski", rec.Director)
	require.Equal(t, []string{"Keanu Reeves", "Carrie-Anne Moss"}, rec.Actors)
	require.Equal(t, []string{"Action", "Sci-Fi"}, rec.Genres)
	require.InDelta(t, 8.7, rec.Rating, 1e-9)
	require.NotNil(t, rec.ReleaseDate)
	require.Equal(t, 1999, rec.ReleaseDate.Year())
	require.Equal(t, "https://films.example.com/img/matrix.jpg", rec.PosterURL)
	require.Equal(t, "https://cdn.example.net/matrix-bg.jpg", rec.BackdropURL)
	require.Equal(t, []string{"magnet:?xt=urn:btih:matrix", "https://films.example.com/dl/matrix.torrent"}, rec.DownloadURLs)
	require.Equal(t, "films", rec.Source)
	require.Equal(t, Metadata{CrawledAt: crawledAt, OriginURL: "https://films.example.com/movie/matrix", Target: "films"}, rec.Metadata)
}

func TestExtractMissingFieldsUseDefaults(t *testing.T) {
	t.Parallel()

	target := Target{Name: "bare", BaseURL: "https://bare.example.com"}
	rec, err := Extract([]byte(`<h1>Only Title</h1>`), target, "https://bare.example.com/x", time.Now())
	require.NoError(t, err)
	require.Equal(t, "Only Title", rec.Title)
	require.Zero(t, rec.Rating)
	require.Nil(t, rec.ReleaseDate)
	require.Empty(t, rec.DownloadURLs)
}

func TestValidateRecord(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateRecord(Record{Title: "ok", Rating: 10}, 10))
	require.True(t, errors.Is(ValidateRecord(Record{Title: "  "}, 10), ErrParse))
	require.ErrorIs(t, ValidateRecord(Record{Title: "x", Description: strings.Repeat("é", 11)}, 10), ErrParse)
	require.ErrorIs(t, ValidateRecord(Record{Title: "x", Rating: 11}, 10), ErrParse)
}
