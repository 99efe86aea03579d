package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/textdex/internal/service"
	"github.com/Aman-CERP/textdex/internal/store"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSON(t *testing.T) {
	data, err := json.Marshal(CheckResult{Name: "data_dir", Status: StatusWarn, Message: "m"})
	require.NoError(t, err)

	assert.JSONEq(t, `{"name":"data_dir","status":"warn","message":"m","required":false}`, string(data))
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
		critical bool
	}{
		{"no results", nil, "ready", false},
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready", false},
		{"with warnings", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings", false},
		{"optional failure", []CheckResult{{Status: StatusFail}}, "ready_with_warnings", false},
		{"critical failure", []CheckResult{{Status: StatusWarn}, {Status: StatusFail, Required: true}}, "failed", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
			assert.Equal(t, tt.critical, checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestChecker_CheckDataDir(t *testing.T) {
	t.Run("creates missing root", func(t *testing.T) {
		// Given: a data root that does not exist yet
		dir := filepath.Join(t.TempDir(), "nested", "data")

		// When: checking it
		result := New().CheckDataDir(dir)

		// Then: it is created and reported writable
		assert.Equal(t, StatusPass, result.Status)
		assert.DirExists(t, dir)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "scratch file left behind")
	})

	t.Run("read-only root", func(t *testing.T) {
		if os.Getuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		dir := filepath.Join(t.TempDir(), "readonly")
		require.NoError(t, os.Mkdir(dir, 0o555))
		t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

		result := New().CheckDataDir(dir)

		assert.Equal(t, StatusFail, result.Status)
		assert.True(t, result.IsCritical())
		assert.Contains(t, result.Message, "permission denied")
	})

	t.Run("root is a file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "data")
		require.NoError(t, os.WriteFile(file, nil, 0o644))

		result := New().CheckDataDir(file)

		assert.Equal(t, StatusFail, result.Status)
		assert.Contains(t, result.Message, "cannot create data root")
	})
}

func TestChecker_CheckLock(t *testing.T) {
	dir := t.TempDir()
	checker := New()

	// Given: nobody holds the lock
	// Then: the check passes and leaves the lock free
	assert.Equal(t, StatusPass, checker.CheckLock(dir).Status)
	assert.Equal(t, StatusPass, checker.CheckLock(dir).Status)

	// Given: another owner holds it
	held := store.NewRootLock(dir)
	require.NoError(t, held.Acquire())
	t.Cleanup(func() { _ = held.Release() })

	// Then: the check warns without failing
	result := checker.CheckLock(dir)
	assert.Equal(t, StatusWarn, result.Status)
	assert.False(t, result.IsCritical())
	assert.Contains(t, result.Message, "another process")
}

func TestChecker_RunAll(t *testing.T) {
	// Given: a fresh data root
	dir := t.TempDir()

	// When: running all checks
	results := New().RunAll(context.Background(), dir)

	// Then: every system check is present
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"data_dir", "disk_space", "file_descriptors", "data_lock"}, names)
}

func TestChecker_RunAll_SkipsChecksOnBadRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	results := New().RunAll(context.Background(), file)

	require.Len(t, results, 2)
	assert.Equal(t, "data_dir", results[0].Name)
	assert.Equal(t, "file_descriptors", results[1].Name)
}

type fakeLister struct {
	infos []service.IndexInfo
	err   error
}

func (f fakeLister) ListIndices() ([]service.IndexInfo, error) {
	return f.infos, f.err
}

func TestChecker_CheckIndices(t *testing.T) {
	tests := []struct {
		name    string
		lister  fakeLister
		status  CheckStatus
		message string
	}{
		{
			name:    "empty root",
			lister:  fakeLister{},
			status:  StatusPass,
			message: "0 indices, 0 documents",
		},
		{
			name: "all mapped",
			lister: fakeLister{infos: []service.IndexInfo{
				{Name: "books", Mapped: true, Documents: 3},
			}},
			status:  StatusPass,
			message: "1 index, 3 documents",
		},
		{
			name: "unmapped",
			lister: fakeLister{infos: []service.IndexInfo{
				{Name: "books", Mapped: true, Documents: 1},
				{Name: "drafts"},
			}},
			status:  StatusWarn,
			message: "1 index without a mapping",
		},
		{
			name:    "listing fails",
			lister:  fakeLister{err: errors.New("disk gone")},
			status:  StatusFail,
			message: "disk gone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New().CheckIndices(tt.lister)

			assert.Equal(t, "indices", result.Name)
			assert.Equal(t, tt.status, result.Status)
			assert.Equal(t, tt.message, result.Message)
		})
	}
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: results of every status
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GB free"},
		{Name: "indices", Status: StatusWarn, Message: "1 index without a mapping", Details: "drafts"},
		{Name: "data_dir", Status: StatusFail, Message: "permission denied", Required: true},
	}
	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))

	// When: printing
	checker.PrintResults(results)

	// Then: each check, its details and the summary are shown
	out := buf.String()
	assert.Contains(t, out, "[PASS] disk_space: 50 GB free")
	assert.Contains(t, out, "[WARN] indices")
	assert.Contains(t, out, "      drafts")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):")
	assert.Contains(t, out, "1 warning(s):")
}

func TestCheckDiskSpace(t *testing.T) {
	// Given: an existing directory
	c := New()

	// When: checking its filesystem
	result := c.CheckDiskSpace(t.TempDir())

	// Then: the result reports free space against the minimum
	assert.Equal(t, "disk_space", result.Name)
	assert.True(t, result.Required)
	assert.Contains(t, result.Message, "(minimum: 100 MiB)")
}

func TestCheckDiskSpace_MissingPath(t *testing.T) {
	c := New()

	result := c.CheckDiskSpace(filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "failed to check disk space")
}

func TestMarker_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	// Given: a data root that never passed
	assert.True(t, LastPassed(dir).IsZero())

	// When: a passing run is recorded
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, MarkPassed(dir, now))

	// Then: the same instant reads back
	assert.True(t, now.Equal(LastPassed(dir)))
}

func TestLastPassed_CorruptMarker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MarkerFile), []byte("yesterday"), 0o644))

	assert.True(t, LastPassed(dir).IsZero())
}
