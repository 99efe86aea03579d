package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{DebounceWindow: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, opts.DebounceWindow)
	assert.Equal(t, 100, opts.EventBufferSize)
	assert.Equal(t, []string{".json", ".jsonl", ".ndjson"}, opts.Extensions)
}

func TestOptions_Accepts(t *testing.T) {
	tests := []struct {
		path string
		opts Options
		want bool
	}{
		{"/drop/books.json", Options{}, true},
		{"/drop/books.jsonl", Options{}, true},
		{"/drop/BOOKS.NDJSON", Options{}, true},
		{"/drop/books.csv", Options{}, false},
		{"/drop/.books.json", Options{}, false},
		{"/drop/books.json~", Options{}, false},
		{"/drop/books", Options{}, false},
		{"/drop/books.txt", Options{Extensions: []string{".TXT"}}, true},
		{"/drop/books.json", Options{Extensions: []string{".txt"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.opts.Accepts(tt.path))
		})
	}
}
