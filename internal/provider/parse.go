package provider

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

var ipv4Pattern = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)

// ParseCandidate accepts "host:port" with an IPv4 dotted-quad host and a port
// in (0, 65535]. An optional "scheme://" prefix overrides protocol. Anything
// else is rejected with ok=false.
func ParseCandidate(raw string, protocol proxypool.Protocol, source string) (proxypool.Candidate, bool) {
	s := strings.TrimSpace(raw)
	if scheme, rest, found := strings.Cut(s, "://"); found {
		p, err := proxypool.ParseProtocol(scheme)
		if err != nil {
			return proxypool.Candidate{}, false
		}
		protocol, s = p, rest
	}
	host, portStr, found := strings.Cut(s, ":")
	if !found || !validIPv4(host) {
		return proxypool.Candidate{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return proxypool.Candidate{}, false
	}
	if protocol == "" {
		protocol = proxypool.ProtocolHTTP
	}
	return proxypool.Candidate{Host: host, Port: port, Protocol: protocol, Source: source}, true
}

func validIPv4(host string) bool {
	m := ipv4Pattern.FindStringSubmatch(host)
	if m == nil {
		return false
	}
	for _, octet := range m[1:] {
		if n, _ := strconv.Atoi(octet); n > 255 {
			return false
		}
	}
	return true
}

// ParseList reads one candidate per line. Blank lines, comments and lines that
// fail ParseCandidate are skipped; trailing columns after whitespace are ignored.
func ParseList(r io.Reader, protocol proxypool.Protocol, source string) ([]proxypool.Candidate, error) {
	var out []proxypool.Candidate
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			line = fields[0]
		}
		if c, ok := ParseCandidate(line, protocol, source); ok {
			out = append(out, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("scan proxy list: %w", err)
	}
	return out, nil
}
