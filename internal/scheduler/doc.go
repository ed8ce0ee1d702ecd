// Package scheduler drives crawl runs for configured targets: connectivity
// checks, URL discovery, per-URL crawls with timeouts, persistence with
// retries and saved-record notifications. Timer wires the runs and the pool
// maintenance jobs to cron specs.
package scheduler
