package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

func TestTextListProviderParsesBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "proxy-crawler-test", r.Header.Get("User-Agent"))
		fmt.Fprintln(w, "10.0.0.1:8080")
		fmt.Fprintln(w, "garbage")
		fmt.Fprintln(w, "10.0.0.2:3128")
	}))
	t.Cleanup(srv.Close)

	p := NewTextListProvider("list", 1, srv.URL, proxypool.ProtocolHTTP, "proxy-crawler-test", time.Second)
	got, err := p.FetchProxies(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "list", got[0].Source)
}

func TestTextListProviderNon200(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	p := NewTextListProvider("list", 1, srv.URL, proxypool.ProtocolHTTP, "", time.Second)
	_, err := p.FetchProxies(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrProvider))
}

const proxyTable = `<html><body><table><tbody>
<tr><td>10.1.1.1</td><td>8080</td><td>US</td></tr>
<tr><td>not-an-ip</td><td>80</td><td>??</td></tr>
<tr><td> 10.1.1.2 </td><td> 3128 </td><td>DE</td></tr>
</tbody></table></body></html>`

func TestHTMLTableProviderScrapesRows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, proxyTable)
	}))
	t.Cleanup(srv.Close)

	p := NewHTMLTableProvider(HTMLTableConfig{Name: "table", Priority: 2, URL: srv.URL, Protocol: proxypool.ProtocolHTTPS})
	got, err := p.FetchProxies(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "10.1.1.2", got[1].Host)
	require.Equal(t, 3128, got[1].Port)
	require.Equal(t, proxypool.ProtocolHTTPS, got[1].Protocol)
}

func TestHTMLTableProviderHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	p := NewHTMLTableProvider(HTMLTableConfig{Name: "table", URL: srv.URL})
	_, err := p.FetchProxies(context.Background())
	require.ErrorIs(t, err, ErrProvider)
}

func TestStaticProviderSkipsInvalidEntries(t *testing.T) {
	t.Parallel()

	p := NewStaticProvider("static", 0, proxypool.ProtocolSOCKS5, []string{"10.0.0.1:1080", "bad"})
	got, err := p.FetchProxies(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, proxypool.ProtocolSOCKS5, got[0].Protocol)
}

func TestNewBuildsEachKind(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{KindText, KindHTML, KindStatic} {
		p, err := New(Source{Name: kind, Kind: kind, URL: "http://example.com/list", Priority: 4}, "ua")
		require.NoError(t, err)
		require.Equal(t, kind, p.Name())
		require.Equal(t, 4, p.Priority())
	}

	_, err := New(Source{Name: "x", Kind: "ftp"}, "")
	require.Error(t, err)

	_, err = New(Source{Name: "x", Kind: KindStatic, Protocol: "gopher"}, "")
	require.ErrorIs(t, err, proxypool.ErrUnsupportedProtocol)
}
