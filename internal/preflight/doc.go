// Package preflight checks that a textdex data root is usable before
// indices are opened.
//
// The package validates:
//   - The data root exists or can be created, and is writable
//   - Disk space availability (minimum 100MB)
//   - File descriptor limits (minimum 1024)
//   - Whether another process holds the data root lock
//   - Whether every index has a mapping
//
// Use the Checker type to run the system checks:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, dataDir)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
