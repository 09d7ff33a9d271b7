package engine

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/nplabs/lsmkv/compaction"
)

// manifestEvent is one persisted state transition (§6's "one event per
// committed compaction" plus the flush events needed to reconstruct state
// from nothing). Exactly one of Flush/Compaction is set.
type manifestEvent struct {
	Flush      *flushEvent
	Compaction *compactionEvent
}

// flushEvent records a memtable flush landing a new SST at the head of L0
// (or, under tiered compaction, as a new tier at the head of Tiers).
type flushEvent struct {
	SSTID uint64
}

// compactionEvent is the external event named in §6: the task that ran and
// the ids of the SSTs it produced. Replaying this (by re-running the same
// strategy's ApplyResult) reconstructs the post-compaction snapshot shape
// without re-merging any data.
type compactionEvent struct {
	Task      *compaction.Task
	OutputIDs []uint64
}

// manifest is a gob-encoded append log of manifestEvents,
// replayed at startup to reconstruct storage state (§6). Grounded in the
// teacher's WAL append/ReadAll shape, generalized to gob framing since the
// payload here is a tagged struct rather than a fixed (key, value) record.
type manifest struct {
	file *os.File
	enc  *gob.Encoder
}

func openManifest(path string) (*manifest, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	return &manifest{file: f, enc: gob.NewEncoder(f)}, nil
}

// RecordFlush appends a flush event and syncs it durable.
func (m *manifest) RecordFlush(sstID uint64) error {
	if err := m.enc.Encode(manifestEvent{Flush: &flushEvent{SSTID: sstID}}); err != nil {
		return fmt.Errorf("manifest: encode flush event: %w", err)
	}
	return m.file.Sync()
}

// RecordCompaction appends a compaction event and syncs it durable.
func (m *manifest) RecordCompaction(task *compaction.Task, outputIDs []uint64) error {
	ev := manifestEvent{Compaction: &compactionEvent{Task: task, OutputIDs: outputIDs}}
	if err := m.enc.Encode(ev); err != nil {
		return fmt.Errorf("manifest: encode compaction event: %w", err)
	}
	return m.file.Sync()
}

// ReadManifest replays every event in the log in append order.
func ReadManifest(path string) ([]manifestEvent, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", path, err)
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	var events []manifestEvent
	for {
		var ev manifestEvent
		if err := dec.Decode(&ev); err != nil {
			break // EOF, or a truncated trailing record from a crashed write
		}
		events = append(events, ev)
	}
	return events, nil
}

func (m *manifest) Close() error {
	if m.file == nil {
		return nil
	}
	return m.file.Close()
}
