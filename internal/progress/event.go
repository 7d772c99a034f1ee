package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/crawlcoord/internal/crawler"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported stages.
const (
	StageCrawlStart   Stage = "CRAWL_START"
	StageCrawlDone    Stage = "CRAWL_DONE"
	StageCrawlError   Stage = "CRAWL_ERROR"
	StageOpDone       Stage = "OP_DONE"
	StageOpError      Stage = "OP_ERROR"
	StageDataLoss     Stage = "DATA_LOSS"
	StageInconclusive Stage = "INCONCLUSIVE"
	StageBoundReached Stage = "BOUND_REACHED"
	StageDuplicate    Stage = "DUPLICATE"
	StageMissing      Stage = "MISSING"
)

// Phase names the part of an algorithm an operation belongs to.
type Phase string

// Supported phases.
const (
	PhaseFirstPage  Phase = "first_page"
	PhaseWindow     Phase = "window"
	PhaseGrouping   Phase = "grouping"
	PhaseStandalone Phase = "standalone"
)

// Event is a single diagnostic emitted by the engine.
type Event struct {
	// CrawlID identifies one crawl or fan-out invocation (16-byte UUID form).
	CrawlID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Source is the caller-supplied label of the crawled source.
	Source string
	// Operation identifies the operation inside the crawl, e.g. "page:3".
	Operation string
	// Phase is the algorithm phase the operation ran in.
	Phase Phase
	// Kind classifies the failure for error stages.
	Kind crawler.ErrorKind
	// Detail carries the underlying error text or a short note.
	Detail string
	// Items counts the items contributed by the operation.
	Items int64
	// Dur captures the operation or crawl latency.
	Dur time.Duration
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == [16]byte{} {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone:
	case StageCrawlError:
		if e.Kind == crawler.KindNone {
			return errors.New("crawl error requires kind")
		}
	case StageOpDone, StageDuplicate, StageMissing, StageDataLoss, StageInconclusive, StageBoundReached:
		if e.Operation == "" {
			return fmt.Errorf("%s requires operation", e.Stage)
		}
	case StageOpError:
		if e.Operation == "" {
			return errors.New("operation error requires operation")
		}
		if e.Kind == crawler.KindNone {
			return errors.New("operation error requires kind")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// CrawlUUID converts the binary crawl ID to uuid.UUID.
func (e Event) CrawlUUID() uuid.UUID {
	return uuid.UUID(e.CrawlID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseCrawlID converts a textual UUID into the Event form.
func ParseCrawlID(raw string) ([16]byte, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return [16]byte{}, fmt.Errorf("parse crawl id: %w", err)
	}
	return UUIDToBytes(id), nil
}
