package crawler

import (
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
)

// URLRules holds the static allow/deny checks applied before any fetch.
type URLRules struct {
	blocked    *domainPatternBlocklist
	paths      []string
	extensions map[string]struct{}
}

// NewURLRules builds rules from blocked domain patterns ("example.org",
// "*.ru"), disallowed path substrings and disallowed file extensions.
func NewURLRules(blockedDomains, disallowedPaths, disallowedExtensions []string) *URLRules {
	rules := &URLRules{
		blocked:    newDomainPatternBlocklist(blockedDomains),
		extensions: make(map[string]struct{}),
	}
	for _, p := range disallowedPaths {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			rules.paths = append(rules.paths, p)
		}
	}
	for _, ext := range disallowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		rules.extensions[ext] = struct{}{}
	}
	return rules
}

// Check returns an ErrValidation-wrapped error when rawURL must not be fetched.
func (r *URLRules) Check(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: parse url: %w", ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrValidation, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host in %q", ErrValidation, rawURL)
	}
	if r == nil {
		return nil
	}
	if r.blocked.IsBlocked(u.Hostname()) {
		return fmt.Errorf("%w: domain %s is blocked", ErrValidation, u.Hostname())
	}
	lowerPath := strings.ToLower(u.Path)
	if slices.ContainsFunc(r.paths, func(p string) bool { return strings.Contains(lowerPath, p) }) {
		return fmt.Errorf("%w: path %s is disallowed", ErrValidation, u.Path)
	}
	if ext := path.Ext(lowerPath); ext != "" {
		if _, denied := r.extensions[ext]; denied {
			return fmt.Errorf("%w: extension %s is disallowed", ErrValidation, ext)
		}
	}
	return nil
}

// domainPatternBlocklist stores exact hosts and suffix wildcards derived from configuration.
type domainPatternBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newDomainPatternBlocklist(patterns []string) *domainPatternBlocklist {
	matcher := &domainPatternBlocklist{
		exact: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		if suffix, ok := strings.CutPrefix(value, "*."); ok {
			matcher.addSuffix(suffix)
			continue
		}
		if suffix, ok := strings.CutPrefix(value, "."); ok {
			matcher.addSuffix(suffix)
			continue
		}
		matcher.exact[value] = struct{}{}
	}
	if len(matcher.exact) == 0 && len(matcher.suffixes) == 0 {
		return nil
	}
	return matcher
}

func (b *domainPatternBlocklist) addSuffix(suffix string) {
	if suffix == "" || slices.Contains(b.suffixes, suffix) {
		return
	}
	b.suffixes = append(b.suffixes, suffix)
}

func (b *domainPatternBlocklist) IsBlocked(host string) bool {
	if b == nil {
		return false
	}
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if _, exact := b.exact[host]; exact {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}
