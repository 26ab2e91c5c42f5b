package errors

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Detail keys that name the resource an error is about.
const (
	DetailAccountID  = "account_id"
	DetailIndexID    = "index_id"
	DetailDocumentID = "document_id"
	DetailPath       = "path"
)

// Scope locates a failure within the account/index/document hierarchy.
// Unset levels are nil.
type Scope struct {
	AccountID  *uint64 `json:"account_id,omitempty"`
	IndexID    *uint64 `json:"index_id,omitempty"`
	DocumentID *uint64 `json:"document_id,omitempty"`
	Path       string  `json:"path,omitempty"`
}

// Empty reports whether no level is set.
func (s Scope) Empty() bool {
	return s.AccountID == nil && s.IndexID == nil && s.DocumentID == nil && s.Path == ""
}

// String renders the scope outermost first, e.g. "account 0 / index 3".
func (s Scope) String() string {
	var parts []string
	if s.AccountID != nil {
		parts = append(parts, fmt.Sprintf("account %d", *s.AccountID))
	}
	if s.IndexID != nil {
		parts = append(parts, fmt.Sprintf("index %d", *s.IndexID))
	}
	if s.DocumentID != nil {
		parts = append(parts, fmt.Sprintf("document %d", *s.DocumentID))
	}
	if s.Path != "" {
		parts = append(parts, s.Path)
	}
	return strings.Join(parts, " / ")
}

// ScopeOf collects the resource ids recorded in the error's details.
// Non-numeric ids are ignored.
func ScopeOf(err error) Scope {
	se, ok := As(err)
	if !ok {
		return Scope{}
	}
	id := func(key string) *uint64 {
		v, err := strconv.ParseUint(se.Details[key], 10, 64)
		if err != nil {
			return nil
		}
		return &v
	}
	return Scope{
		AccountID:  id(DetailAccountID),
		IndexID:    id(DetailIndexID),
		DocumentID: id(DetailDocumentID),
		Path:       se.Details[DetailPath],
	}
}

// Kind names the outcome class a caller of the store reacts to.
func Kind(err error) string {
	switch GetCategory(err) {
	case CategoryNotFound:
		return "not_found"
	case CategoryIO:
		return "io_failure"
	case CategoryEngine:
		return "engine_failure"
	case CategoryValidation:
		return "rejected"
	case CategoryConfig:
		return "config"
	default:
		return "internal"
	}
}

// FormatForCLI formats an error for terminal output: the message, the
// resource it concerns, a hint and the code.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	se, ok := As(err)
	if !ok {
		se = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", se.Message)
	if scope := ScopeOf(se); !scope.Empty() {
		fmt.Fprintf(&sb, "  On: %s\n", scope)
	}
	if se.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", se.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", se.Code)
	return sb.String()
}

type jsonError struct {
	Code       string            `json:"code"`
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	Scope      *Scope            `json:"scope,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns the error object printed by commands run with --json.
// Resource ids found in the details are lifted into a typed scope.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	se, ok := As(err)
	if !ok {
		se = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       se.Code,
		Kind:       Kind(se),
		Message:    se.Message,
		Details:    se.Details,
		Suggestion: se.Suggestion,
		Retryable:  se.Retryable,
	}
	if scope := ScopeOf(se); !scope.Empty() {
		je.Scope = &scope
	}
	if se.Cause != nil {
		je.Cause = se.Cause.Error()
	}
	return json.Marshal(je)
}

// FormatForLog returns slog attributes for an error. Details become
// detail_<key> attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	se, ok := As(err)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": se.Code,
		"error_kind": Kind(se),
		"message":    se.Message,
		"retryable":  se.Retryable,
	}
	if se.Cause != nil {
		result["cause"] = se.Cause.Error()
	}
	for k, v := range se.Details {
		result["detail_"+k] = v
	}
	return result
}
