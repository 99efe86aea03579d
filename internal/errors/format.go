package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// classified lists sentinels that plain errors may match through Is without
// carrying an *Error in their chain.
var classified = []*Error{ErrQuerySyntax, ErrSchema, ErrFieldCoercion}

// describe returns the *Error to present for err. Plain errors matching a
// sentinel take its code; anything else is internal.
func describe(err error) *Error {
	if ae, ok := As(err); ok {
		return ae
	}
	for _, s := range classified {
		if stderrors.Is(err, s) {
			return New(s.Code, err.Error(), err)
		}
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for terminal output: the message, then
// indented hint, detail and code lines.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	ae := describe(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", ae.Message)
	if ae.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", ae.Suggestion)
	}
	for _, k := range slices.Sorted(maps.Keys(ae.Details)) {
		fmt.Fprintf(&sb, "  %s: %s\n", k, ae.Details[k])
	}
	fmt.Fprintf(&sb, "  Code: %s\n", ae.Code)
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   Category          `json:"category"`
	Severity   Severity          `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
}

// FormatJSON returns the error as a JSON object wrapped under "error", the
// form printed by the CLI when --json is set.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	ae := describe(err)

	je := jsonError{
		Code:       ae.Code,
		Message:    ae.Message,
		Category:   ae.Category,
		Severity:   ae.Severity,
		Details:    ae.Details,
		Suggestion: ae.Suggestion,
	}
	if ae.Cause != nil {
		je.Cause = ae.Cause.Error()
	}
	return json.Marshal(struct {
		Error jsonError `json:"error"`
	}{je})
}

// LogAttr returns err as a grouped slog attribute carrying its code and
// details, for use as slog.Warn("msg", errors.LogAttr(err)).
func LogAttr(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	ae, ok := As(err)
	if !ok {
		return slog.String("error", err.Error())
	}

	attrs := []any{
		slog.String("code", ae.Code),
		slog.String("message", ae.Message),
	}
	if ae.Cause != nil {
		attrs = append(attrs, slog.String("cause", ae.Cause.Error()))
	}
	for _, k := range slices.Sorted(maps.Keys(ae.Details)) {
		attrs = append(attrs, slog.String(k, ae.Details[k]))
	}
	return slog.Group("error", attrs...)
}
