package preflight

import (
	"errors"
	"strconv"
	"strings"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/service"
	"github.com/Aman-CERP/textdex/internal/store"
)

// CheckLock reports whether another process holds the data root lock. The
// lock is released again before returning.
func (c *Checker) CheckLock(dataDir string) CheckResult {
	result := CheckResult{
		Name: "data_lock",
	}

	lock := store.NewRootLock(dataDir)
	result.Details = lock.Path()
	if err := lock.Acquire(); err != nil {
		var txErr *txerrors.Error
		if errors.As(err, &txErr) && txErr.Code == txerrors.ErrCodeRootLocked {
			result.Status = StatusWarn
			result.Message = "in use by another process"
			return result
		}
		result.Status = StatusFail
		result.Required = true
		result.Message = err.Error()
		return result
	}
	_ = lock.Release()

	result.Status = StatusPass
	result.Message = "free"
	return result
}

// IndexLister lists indices with their mapping state.
type IndexLister interface {
	ListIndices() ([]service.IndexInfo, error)
}

// CheckIndices reports indices that have no mapping yet and so reject
// documents and queries.
func (c *Checker) CheckIndices(indices IndexLister) CheckResult {
	result := CheckResult{
		Name: "indices",
	}

	infos, err := indices.ListIndices()
	if err != nil {
		result.Status = StatusFail
		result.Required = true
		result.Message = err.Error()
		return result
	}

	var unmapped []string
	var docs uint64
	for _, info := range infos {
		docs += info.Documents
		if !info.Mapped {
			unmapped = append(unmapped, info.Name)
		}
	}

	if len(unmapped) > 0 {
		result.Status = StatusWarn
		result.Message = fmtCount(len(unmapped), "index", "indices") + " without a mapping"
		result.Details = "textdex mapping set <index> <file> for: " + strings.Join(unmapped, ", ")
		return result
	}
	result.Status = StatusPass
	result.Message = fmtCount(len(infos), "index", "indices") + ", " + fmtCount(int(docs), "document", "documents")
	return result
}

func fmtCount(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
