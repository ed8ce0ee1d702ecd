// Package crawler fetches target pages, optionally through the proxy pool,
// extracts typed records with CSS selectors, and caches the results.
package crawler
