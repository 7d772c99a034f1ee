// Package jsonapi adapts paginated JSON listing endpoints to the crawl
// engine. Field locations are gjson paths, so one Source definition covers
// most listing APIs without code changes:
//
//   - Pager serves numbered listing pages to crawlwindow.
//   - GroupResolver resolves a group document and crawls its member pages.
//   - BatchFetcher fetches many entities by id in one request.
package jsonapi
