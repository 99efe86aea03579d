package ui

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestProgressTracker_Initial(t *testing.T) {
	p := newProgressTracker(newFakeClock().Now)

	stats := p.Stats()

	assert.Equal(t, StageDecoding, stats.Stage)
	assert.Zero(t, stats.Current)
	assert.Zero(t, stats.Progress)
	assert.Zero(t, stats.ETA)
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	// Given: a tracker with progress in the decoding stage
	clock := newFakeClock()
	p := newProgressTracker(clock.Now)
	p.SetStage(StageDecoding, 10)
	clock.Advance(time.Second)
	p.Update(5, "books.jsonl")

	// When: moving to indexing
	p.SetStage(StageIndexing, 100)

	// Then: per-stage counters start over
	stats := p.Stats()
	assert.Equal(t, StageIndexing, stats.Stage)
	assert.Equal(t, 100, stats.Total)
	assert.Zero(t, stats.Current)
	assert.Empty(t, stats.Message)
	assert.Zero(t, stats.Speed.Current)
}

func TestProgressTracker_Progress(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		current int
		want    float64
	}{
		{"no total", 0, 5, 0},
		{"half", 10, 5, 0.5},
		{"done", 10, 10, 1},
		{"overshoot is capped", 10, 12, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProgressTracker(newFakeClock().Now)
			p.SetStage(StageIndexing, tt.total)
			p.Update(tt.current, "")

			assert.InDelta(t, tt.want, p.Stats().Progress, 0.0001)
		})
	}
}

func TestProgressTracker_KeepsLastMessage(t *testing.T) {
	p := newProgressTracker(newFakeClock().Now)
	p.SetStage(StageIndexing, 10)

	p.Update(1, "chunk 1 of 2")
	p.Update(2, "")

	assert.Equal(t, "chunk 1 of 2", p.Stats().Message)
}

func TestProgressTracker_Speed(t *testing.T) {
	// Given: a tracker driven by a fake clock
	clock := newFakeClock()
	p := newProgressTracker(clock.Now)
	p.SetStage(StageIndexing, 1000)

	// When: 100 documents land in one second
	clock.Advance(time.Second)
	p.Update(100, "")

	// Then: speed is 100 docs/s
	stats := p.Stats()
	assert.InDelta(t, 100, stats.Speed.Current, 0.01)
	assert.InDelta(t, 100, stats.Speed.Avg, 0.01)
	assert.InDelta(t, 100, stats.Speed.Peak, 0.01)

	// When: the next second only brings 50
	clock.Advance(time.Second)
	p.Update(150, "")

	// Then: the average moves slowly and the peak holds
	stats = p.Stats()
	assert.InDelta(t, 50, stats.Speed.Current, 0.01)
	assert.InDelta(t, 90, stats.Speed.Avg, 0.01)
	assert.InDelta(t, 100, stats.Speed.Peak, 0.01)
}

func TestProgressTracker_SpeedSampledAtInterval(t *testing.T) {
	clock := newFakeClock()
	p := newProgressTracker(clock.Now)
	p.SetStage(StageIndexing, 1000)

	clock.Advance(100 * time.Millisecond)
	p.Update(100, "")

	assert.Zero(t, p.Stats().Speed.Current)
}

func TestProgressTracker_ETA(t *testing.T) {
	// Given: a quarter done after ten seconds
	clock := newFakeClock()
	p := newProgressTracker(clock.Now)
	p.SetStage(StageIndexing, 100)
	clock.Advance(10 * time.Second)
	p.Update(25, "")

	// Then: the first estimate is the linear one
	assert.Equal(t, 30*time.Second, p.Stats().ETA)

	// When: half done after twenty seconds
	clock.Advance(10 * time.Second)
	p.Update(50, "")

	// Then: the new estimate is smoothed against the last
	assert.Equal(t, 27*time.Second, p.Stats().ETA)
}

func TestProgressTracker_ETAZeroWhenDone(t *testing.T) {
	clock := newFakeClock()
	p := newProgressTracker(clock.Now)
	p.SetStage(StageIndexing, 10)
	clock.Advance(time.Second)
	p.Update(10, "")

	assert.Zero(t, p.Stats().ETA)
}

func TestProgressTracker_Errors(t *testing.T) {
	p := newProgressTracker(newFakeClock().Now)

	p.AddError(ErrorEvent{Position: 1, Err: errors.New("bad"), IsWarn: true})
	p.AddError(ErrorEvent{Position: 2, Err: errors.New("bad"), IsWarn: true})
	p.AddError(ErrorEvent{Position: -1, Err: errors.New("closed")})

	stats := p.Stats()
	assert.Equal(t, 2, stats.WarnCount)
	assert.Equal(t, 1, stats.ErrorCount)
}

func TestProgressTracker_Elapsed(t *testing.T) {
	clock := newFakeClock()
	p := newProgressTracker(clock.Now)

	clock.Advance(3 * time.Second)
	p.SetStage(StageIndexing, 1)

	assert.Equal(t, 3*time.Second, p.Elapsed())
}
