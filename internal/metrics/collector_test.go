package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()

	c.RecordTiming(OpDBQuery, 10*time.Millisecond)
	c.RecordTiming(OpDBQuery, 30*time.Millisecond)
	c.RecordFailure(OpDBQuery, 20*time.Millisecond)

	snap := c.Snapshot()
	op, ok := snap.Operations[OpDBQuery]
	if !ok {
		t.Fatal("db_query missing from snapshot")
	}
	if op.Count != 3 {
		t.Errorf("Count = %d, want 3", op.Count)
	}
	if op.Failures != 1 {
		t.Errorf("Failures = %d, want 1", op.Failures)
	}
	if op.MinTimeMs != 10 {
		t.Errorf("MinTimeMs = %d, want 10", op.MinTimeMs)
	}
	if op.MaxTimeMs != 30 {
		t.Errorf("MaxTimeMs = %d, want 30", op.MaxTimeMs)
	}
	if op.AvgTimeMs != 20 {
		t.Errorf("AvgTimeMs = %f, want 20", op.AvgTimeMs)
	}
}

func TestSnapshotSkipsEmptyOps(t *testing.T) {
	c := NewCollector()
	snap := c.Snapshot()
	if len(snap.Operations) != 0 {
		t.Errorf("empty collector snapshot has %d ops", len(snap.Operations))
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTiming(OpAgentExecute, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if got := c.Snapshot().Operations[OpAgentExecute].Count; got != 1600 {
		t.Errorf("Count = %d, want 1600", got)
	}
}
