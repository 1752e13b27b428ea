// Package report defines the event stream emitted during ingestion runs and
// the hub that fans events out to sinks while a run is still in flight.
package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported report stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageRunDone       Stage = "RUN_DONE"
	StageSourceDone    Stage = "SOURCE_DONE"
	StageSourceError   Stage = "SOURCE_ERROR"
	StageSourceSkipped Stage = "SOURCE_SKIPPED"
	StageDocChange     Stage = "DOC_CHANGE"
)

// Event captures a single milestone of an ingestion run. Source events carry
// the per-source outcome; DOC_CHANGE events carry one document observation.
type Event struct {
	// RunID uniquely identifies one ingestion cycle in 16-byte UUID form.
	RunID [16]byte `json:"run_id"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// Stage denotes which milestone occurred.
	Stage Stage `json:"stage"`
	// Source is the source name for source- and document-scoped events.
	Source string `json:"source,omitempty"`
	// URL is the source or document URL, depending on the stage.
	URL string `json:"url,omitempty"`
	// Change is the document change classification for DOC_CHANGE events.
	Change string `json:"change,omitempty"`
	// Items is the number of items a completed source produced.
	Items int `json:"items,omitempty"`
	// Dur captures execution latency for source and run completions.
	Dur time.Duration `json:"dur,omitempty"`
	// Note carries low-volume context such as error text or skip reasons.
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StageSourceDone, StageSourceError, StageSourceSkipped:
		if e.Source == "" {
			return fmt.Errorf("%s requires source", e.Stage)
		}
	case StageDocChange:
		if e.URL == "" {
			return errors.New("doc change requires url")
		}
		if e.Change == "" {
			return errors.New("doc change requires change type")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for display and storage.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// NewRunID allocates a fresh run identifier.
func NewRunID() [16]byte {
	return uuid.New()
}
