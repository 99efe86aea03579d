package ui

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlain() (*PlainRenderer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewPlainRenderer(NewConfig(buf, WithForcePlain(true))), buf
}

func TestPlainRenderer_StartStop(t *testing.T) {
	r, buf := newPlain()

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
	assert.Empty(t, buf.String())
}

func TestPlainRenderer_UpdateProgress(t *testing.T) {
	tests := []struct {
		name  string
		event ProgressEvent
		want  string
	}{
		{
			name:  "count and message",
			event: ProgressEvent{Stage: StageIndexing, Current: 2, Total: 3, Message: "chunk 1 of 2"},
			want:  "[INDEX] 2/3 - chunk 1 of 2\n",
		},
		{
			name:  "count only",
			event: ProgressEvent{Stage: StageIndexing, Current: 2, Total: 3},
			want:  "[INDEX] 2/3\n",
		},
		{
			name:  "message only",
			event: ProgressEvent{Stage: StageDecoding, Message: "reading books.jsonl"},
			want:  "[DECODE] reading books.jsonl\n",
		},
		{
			name:  "nothing to say",
			event: ProgressEvent{Stage: StageDecoding},
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, buf := newPlain()

			r.UpdateProgress(tt.event)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_AddError(t *testing.T) {
	tests := []struct {
		name  string
		event ErrorEvent
		want  string
	}{
		{
			name:  "document error",
			event: ErrorEvent{Position: 4, Err: errors.New("year: not an int32")},
			want:  "ERROR: document 4: year: not an int32\n",
		},
		{
			name:  "document warning",
			event: ErrorEvent{Position: 0, Err: errors.New("skipped"), IsWarn: true},
			want:  "WARN: document 0: skipped\n",
		},
		{
			name:  "chunk error",
			event: ErrorEvent{Position: -1, Err: errors.New("index closed")},
			want:  "ERROR: index closed\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, buf := newPlain()

			r.AddError(tt.event)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_Complete(t *testing.T) {
	tests := []struct {
		name  string
		stats CompletionStats
		want  string
	}{
		{
			name:  "single batch",
			stats: CompletionStats{Index: "books", Total: 3, Indexed: 3, Chunks: 1, Duration: 1500 * time.Millisecond},
			want:  "Complete: 3 of 3 documents indexed into books in 1.5s\n",
		},
		{
			name:  "chunks and failures",
			stats: CompletionStats{Index: "books", Total: 5, Indexed: 4, Failed: 1, Chunks: 3, Duration: 2 * time.Second},
			want:  "Complete: 4 of 5 documents indexed into books in 2s (3 chunks), 1 skipped\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, buf := newPlain()

			r.Complete(tt.stats)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_ConcurrentUse(t *testing.T) {
	// Given: a renderer shared by several goroutines
	r, buf := newPlain()

	// When: they all report progress
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.UpdateProgress(ProgressEvent{Stage: StageIndexing, Current: n, Total: 10})
		}(i)
	}
	wg.Wait()

	// Then: every line is written whole
	assert.Equal(t, 10, bytes.Count(buf.Bytes(), []byte("\n")))
}
