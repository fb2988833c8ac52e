package errors

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"sync"
)

// Issue is one problem found while validating a manifest or template
type Issue struct {
	Component  string
	File       string
	Field      string
	Expression string
	Message    string
	Severity   ErrorSeverity
}

// ErrorSeverity represents the severity of an error
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (i *Issue) Error() string {
	var where []string
	if i.File != "" {
		where = append(where, i.File)
	}
	if i.Component != "" {
		where = append(where, i.Component)
	}
	if i.Field != "" {
		where = append(where, i.Field)
	}
	msg := fmt.Sprintf("%s: %s", i.Severity, i.Message)
	if i.Expression != "" {
		msg += fmt.Sprintf(" (in %q)", i.Expression)
	}
	if len(where) == 0 {
		return msg
	}
	return strings.Join(where, ": ") + ": " + msg
}

// ErrorCollector collects validation issues and general errors
type ErrorCollector struct {
	issues []Issue
	errors []error
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{}
}

// Add records an issue
func (ec *ErrorCollector) Add(issue Issue) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.issues = append(ec.issues, issue)
}

// AddError adds a general error to the collector
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// Issues returns the collected issues ordered by component, then field.
func (ec *ErrorCollector) Issues() []Issue {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]Issue, len(ec.issues))
	copy(result, ec.issues)
	sort.SliceStable(result, func(a, b int) bool {
		if result[a].Component != result[b].Component {
			return result[a].Component < result[b].Component
		}
		return result[a].Field < result[b].Field
	})
	return result
}

// GetAllErrors returns all collected errors (issues first)
func (ec *ErrorCollector) GetAllErrors() []error {
	issues := ec.Issues()

	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	all := make([]error, 0, len(issues)+len(ec.errors))
	for i := range issues {
		all = append(all, &issues[i])
	}
	return append(all, ec.errors...)
}

// HasErrors reports whether anything at error severity, or any general error,
// was collected.
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	if len(ec.errors) > 0 {
		return true
	}
	for _, i := range ec.issues {
		if i.Severity >= ErrorSeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of collected issues and errors
func (ec *ErrorCollector) Len() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.issues) + len(ec.errors)
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.issues = ec.issues[:0]
	ec.errors = ec.errors[:0]
}

// ByComponent returns the issues for one component
func (ec *ErrorCollector) ByComponent(component string) []Issue {
	var out []Issue
	for _, i := range ec.Issues() {
		if i.Component == component {
			out = append(out, i)
		}
	}
	return out
}

// Err returns nil when nothing at error severity was collected, otherwise a
// validation error summarizing the collection.
func (ec *ErrorCollector) Err() error {
	if !ec.HasErrors() {
		return nil
	}
	all := ec.GetAllErrors()
	messages := make([]string, len(all))
	for i, err := range all {
		messages[i] = err.Error()
	}
	return NewValidationError(ErrCodeManifestInvalid,
		fmt.Sprintf("%d problems found", len(all))).
		WithContext("problems", messages)
}

// ErrorOverlay renders the collected problems as an HTML banner for the live
// server page.
func (ec *ErrorCollector) ErrorOverlay() string {
	all := ec.GetAllErrors()
	if len(all) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(`<div id="melodi-error-overlay" style="position:fixed;top:0;left:0;right:0;` +
		`background:#2d3748;color:#fed7d7;font-family:monospace;padding:12px;z-index:9999">`)
	sb.WriteString(`<strong>melodi: manifest problems</strong><ul>`)
	for _, err := range all {
		sb.WriteString("<li>")
		sb.WriteString(html.EscapeString(err.Error()))
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul></div>")
	return sb.String()
}
