package engine

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/nplabs/lsmkv/compaction"
	"github.com/nplabs/lsmkv/internal/errs"
	"github.com/nplabs/lsmkv/sstable"
)

// recover reconstructs storage state from the manifest, replays any WAL
// segments left over from an unflushed memtable, and removes SST files the
// reconstructed state does not reference (§4.7's crash-semantics recovery
// pass: "a crash between steps 3 and 5 leaves orphan files ... recovery
// scans and removes files not referenced by the persisted state").
func (e *Engine) recover() error {
	events, err := ReadManifest(filepath.Join(e.config.DataDir, "MANIFEST"))
	if err != nil {
		return err
	}

	snapshot := &compaction.Snapshot{SSTables: map[uint64]*sstable.Table{}}
	var maxID uint64

	for _, ev := range events {
		switch {
		case ev.Flush != nil:
			id := ev.Flush.SSTID
			t, err := sstable.Open(id, e.pathOfSST(id), e.config.Codec)
			if err != nil {
				log.Printf("engine: recover: skipping flush event for missing sst %d: %v", id, err)
				continue
			}
			snapshot = snapshot.Clone()
			snapshot.SSTables[id] = t
			if e.config.CompactionOptions.Tiered != nil {
				snapshot.Tiers = append([]compaction.Tier{{ID: id, SSTIDs: []uint64{id}}}, snapshot.Tiers...)
			} else {
				snapshot.L0 = append([]uint64{id}, snapshot.L0...)
			}
			maxID = maxUint64(maxID, id)

		case ev.Compaction != nil:
			withOutputs := snapshot.Clone()
			for _, id := range ev.Compaction.OutputIDs {
				t, err := sstable.Open(id, e.pathOfSST(id), e.config.Codec)
				if err != nil {
					errs.Invariant("recover: compaction output sst %d missing: %v", id, err)
				}
				withOutputs.SSTables[id] = t
				maxID = maxUint64(maxID, id)
			}
			ns, deleted := compaction.Apply(e.strategy, withOutputs, ev.Compaction.Task, ev.Compaction.OutputIDs)
			for _, id := range deleted {
				if t, ok := ns.SSTables[id]; ok {
					t.Close()
					delete(ns.SSTables, id)
				}
			}
			snapshot = ns
		}
	}

	e.holder = compaction.NewStateHolder(snapshot)
	e.nextSSTID.Store(maxID + 1)

	if err := e.removeOrphanSSTs(snapshot); err != nil {
		return err
	}
	return e.recoverWALs()
}

func (e *Engine) removeOrphanSSTs(snapshot *compaction.Snapshot) error {
	files, err := os.ReadDir(e.config.DataDir)
	if err != nil {
		return fmt.Errorf("engine: list data dir: %w", err)
	}
	for _, f := range files {
		if filepath.Ext(f.Name()) != ".sst" {
			continue
		}
		var id uint64
		if _, err := fmt.Sscanf(f.Name(), "%06d.sst", &id); err != nil {
			continue
		}
		if _, referenced := snapshot.SSTables[id]; referenced {
			continue
		}
		path := filepath.Join(e.config.DataDir, f.Name())
		log.Printf("engine: recover: removing orphan sst %s", path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("engine: remove orphan sst %s: %w", path, err)
		}
	}
	return nil
}

// recoverWALs replays every leftover *.wal segment (in sequence order) into
// the active memtable, then removes them: their data now lives in the
// memtable and a fresh segment is opened by Open right after recover
// returns.
func (e *Engine) recoverWALs() error {
	files, err := os.ReadDir(e.config.DataDir)
	if err != nil {
		return fmt.Errorf("engine: list data dir: %w", err)
	}

	type seg struct {
		seq  uint64
		name string
	}
	var segs []seg
	for _, f := range files {
		if filepath.Ext(f.Name()) != ".wal" {
			continue
		}
		var seq uint64
		if _, err := fmt.Sscanf(f.Name(), "%06d.wal", &seq); err != nil {
			continue
		}
		segs = append(segs, seg{seq: seq, name: f.Name()})
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i].seq < segs[j].seq })

	var total int
	for _, s := range segs {
		path := filepath.Join(e.config.DataDir, s.name)
		w, err := newWAL(path)
		if err != nil {
			return err
		}
		entries, err := w.ReadAll()
		if err != nil {
			w.Close()
			return fmt.Errorf("engine: replay %s: %w", path, err)
		}
		for _, en := range entries {
			e.active.Put(en.Key, en.Value)
		}
		total += len(entries)
		w.Close()
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		if s.seq >= e.walSeq {
			e.walSeq = s.seq + 1
		}
	}
	if total > 0 {
		log.Printf("engine: recovered %d entries from wal", total)
	}
	return nil
}

func maxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
