package provider

import (
	"fmt"
	"time"

	"github.com/JakeFAU/realtime-proxy-crawler/internal/proxypool"
)

// Source kinds.
const (
	KindText   = "text"
	KindHTML   = "html"
	KindStatic = "static"
)

// Source is the declarative description of one provider.
type Source struct {
	Name         string
	Kind         string
	URL          string
	Priority     int
	Protocol     string
	Timeout      time.Duration
	Entries      []string
	RowSelector  string
	HostSelector string
	PortSelector string
}

// New builds the provider described by src.
func New(src Source, userAgent string) (Provider, error) {
	protocol, err := proxypool.ParseProtocol(src.Protocol)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", src.Name, err)
	}
	switch src.Kind {
	case KindText:
		return NewTextListProvider(src.Name, src.Priority, src.URL, protocol, userAgent, src.Timeout), nil
	case KindHTML:
		return NewHTMLTableProvider(HTMLTableConfig{
			Name:         src.Name,
			Priority:     src.Priority,
			URL:          src.URL,
			Protocol:     protocol,
			UserAgent:    userAgent,
			Timeout:      src.Timeout,
			RowSelector:  src.RowSelector,
			HostSelector: src.HostSelector,
			PortSelector: src.PortSelector,
		}), nil
	case KindStatic:
		return NewStaticProvider(src.Name, src.Priority, protocol, src.Entries), nil
	default:
		return nil, fmt.Errorf("provider %s: unknown kind %q", src.Name, src.Kind)
	}
}
