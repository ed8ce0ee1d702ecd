package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

func TestParseCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw      string
		ok       bool
		host     string
		port     int
		protocol proxypool.Protocol
	}{
		{raw: "192.168.1.10:8080", ok: true, host: "192.168.1.10", port: 8080, protocol: proxypool.ProtocolHTTP},
		{raw: "  10.0.0.1:3128 ", ok: true, host: "10.0.0.1", port: 3128, protocol: proxypool.ProtocolHTTP},
		{raw: "socks5://10.0.0.2:1080", ok: true, host: "10.0.0.2", port: 1080, protocol: proxypool.ProtocolSOCKS5},
		{raw: "1.2.3.4:65535", ok: true, host: "1.2.3.4", port: 65535, protocol: proxypool.ProtocolHTTP},
		{raw: "1.2.3.4:0"},
		{raw: "1.2.3.4:65536"},
		{raw: "1.2.3.4"},
		{raw: "1.2.3:80"},
		{raw: "256.1.1.1:80"},
		{raw: "proxy.example.com:8080"},
		{raw: "[::1]:8080"},
		{raw: "1.2.3.4:http"},
		{raw: "ftp://1.2.3.4:21"},
		{raw: ""},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			c, ok := ParseCandidate(tc.raw, proxypool.ProtocolHTTP, "src")
			require.Equal(t, tc.ok, ok)
			if !tc.ok {
				return
			}
			require.Equal(t, tc.host, c.Host)
			require.Equal(t, tc.port, c.Port)
			require.Equal(t, tc.protocol, c.Protocol)
			require.Equal(t, "src", c.Source)
		})
	}
}

func TestParseList(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"# free proxies",
		"10.0.0.1:8080",
		"",
		"10.0.0.2:3128 US elite",
		"not-a-proxy",
		"socks4://10.0.0.3:1080",
	}, "\n")

	got, err := ParseList(strings.NewReader(input), proxypool.ProtocolHTTPS, "list")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, proxypool.ProtocolHTTPS, got[0].Protocol)
	require.Equal(t, "10.0.0.2", got[1].Host)
	require.Equal(t, proxypool.ProtocolSOCKS4, got[2].Protocol)
	require.Equal(t, "list:10.0.0.1:8080", got[0].ID())
}
