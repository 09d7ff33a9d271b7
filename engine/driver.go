package engine

import (
	"log"
	"time"
)

const tickPeriod = 50 * time.Millisecond

// compactionLoop is the background driver's compaction thread (§4.8): each
// tick, if a task is warranted, run it to completion. The tick period is
// not a correctness parameter; missing one only delays work.
func (e *Engine) compactionLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-e.shutdown:
			return
		case <-ticker.C:
			if e.config.CompactionOptions.None != nil {
				continue
			}
			snapshot := e.holder.Load()
			task := e.strategy.GenerateTask(snapshot)
			if task == nil {
				continue
			}
			if err := e.executor.Execute(task, e.holder); err != nil {
				log.Printf("engine: compaction error: %v", err)
			}
		}
	}
}

// flushLoop is the background driver's flush thread (§4.8): once the
// immutable queue reaches num_memtable_limit, flush the oldest one.
func (e *Engine) flushLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-e.shutdown:
			return
		case <-ticker.C:
			e.mu.Lock()
			ready := len(e.immutables) >= e.config.NumMemtableLimit && len(e.immutables) > 0
			var mt *memtable
			if ready {
				mt = e.immutables[0]
				e.immutables = e.immutables[1:]
			}
			e.mu.Unlock()

			if mt == nil {
				continue
			}
			if err := e.flushOne(mt); err != nil {
				log.Printf("engine: flush error: %v", err)
			}
		}
	}
}
