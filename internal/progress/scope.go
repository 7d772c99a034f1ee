package progress

import (
	"fmt"
	"time"

	"github.com/JakeFAU/crawlcoord/internal/crawler"
	iduuid "github.com/JakeFAU/crawlcoord/internal/id/uuid"
)

// Scope stamps events with the crawl id, source label and timestamp of one
// invocation before forwarding them.
type Scope struct {
	emitter Emitter
	clock   crawler.Clock
	crawlID [16]byte
	source  string
}

// NewScope binds emitter to a single crawl. A nil emitter discards events and
// a nil clock falls back to time.Now.
func NewScope(emitter Emitter, clock crawler.Clock, crawlID [16]byte, source string) Scope {
	if emitter == nil {
		emitter = Nop{}
	}
	return Scope{emitter: emitter, clock: clock, crawlID: crawlID, source: source}
}

// StartScope generates a fresh crawl id with ids (UUID v7 when nil) and binds
// a Scope to it.
func StartScope(emitter Emitter, clock crawler.Clock, ids crawler.IDGenerator, source string) (Scope, error) {
	if ids == nil {
		ids = iduuid.New()
	}
	raw, err := ids.NewID()
	if err != nil {
		return Scope{}, fmt.Errorf("new crawl id: %w", err)
	}
	crawlID, err := ParseCrawlID(raw)
	if err != nil {
		return Scope{}, err
	}
	return NewScope(emitter, clock, crawlID, source), nil
}

// Now returns the scope's notion of the current time.
func (s Scope) Now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

// CrawlID returns the bound crawl id.
func (s Scope) CrawlID() [16]byte { return s.crawlID }

// CrawlIDString returns the bound crawl id in textual UUID form.
func (s Scope) CrawlIDString() string { return Event{CrawlID: s.crawlID}.CrawlUUID().String() }

// Emit fills the scope fields and forwards evt.
func (s Scope) Emit(evt Event) {
	evt.CrawlID = s.crawlID
	evt.Source = s.source
	if evt.TS.IsZero() {
		evt.TS = s.Now()
	}
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(evt)
}

// Failure emits an operation error classified from err.
func (s Scope) Failure(operation string, phase Phase, err error, dur time.Duration) {
	s.Emit(Event{
		Stage:     StageOpError,
		Operation: operation,
		Phase:     phase,
		Kind:      crawler.Classify(err),
		Detail:    err.Error(),
		Dur:       dur,
	})
}
