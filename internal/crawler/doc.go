// Package crawler defines the collaborator contracts shared by the crawl
// engine: the fetch collaborator, the clock and ID sources used for
// diagnostics, and the error taxonomy that classifies per-operation failures.
package crawler
