// Package normalize maps raw upstream payloads into flat, ordered record
// sequences. Every function here is pure: no network, no store, no clock.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// maxDescriptionRunes bounds free-text description columns.
const maxDescriptionRunes = 500

// Func normalizes one endpoint's raw payload.
type Func func(body []byte) (*Result, error)

// Warning notes a record that was dropped or a field that fell back to a default.
type Warning struct {
	Entity  types.Entity
	Key     string
	Reason  string
	Dropped bool
}

func (w Warning) String() string {
	return fmt.Sprintf("%s[%s]: %s", w.Entity, w.Key, w.Reason)
}

// Result is the output of one normalizer.
type Result struct {
	Batch    types.Batch
	Warnings []Warning
}

// Dropped counts warnings that removed a record.
func (r *Result) Dropped() int {
	n := 0
	for _, w := range r.Warnings {
		if w.Dropped {
			n++
		}
	}
	return n
}

func (r *Result) warn(entity types.Entity, key, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{Entity: entity, Key: key, Reason: fmt.Sprintf(format, args...)})
}

func (r *Result) drop(entity types.Entity, key, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{Entity: entity, Key: key, Reason: fmt.Sprintf(format, args...), Dropped: true})
}

// NormalizationError reports a payload that cannot be normalized without
// inventing a value for a mandatory field. It is fatal to the run.
type NormalizationError struct {
	Endpoint string
	Field    string
	Index    int // -1 when the error concerns the whole payload
	Reason   string
	Err      error
}

func (e *NormalizationError) Error() string {
	loc := e.Endpoint
	if e.Index >= 0 {
		loc = fmt.Sprintf("%s[%d]", e.Endpoint, e.Index)
	}
	if e.Field != "" {
		loc += "." + e.Field
	}
	if e.Err != nil {
		return fmt.Sprintf("normalizing %s: %s: %v", loc, e.Reason, e.Err)
	}
	return fmt.Sprintf("normalizing %s: %s", loc, e.Reason)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// Kind identifies the error in run history.
func (e *NormalizationError) Kind() string { return "NormalizationError" }

var registry = map[string]Func{
	"agents":    Agents,
	"weapons":   Weapons,
	"maps":      Maps,
	"gamemodes": GameModes,
}

// Lookup returns the normalizer for an endpoint name.
func Lookup(endpoint string) (Func, bool) {
	fn, ok := registry[endpoint]
	return fn, ok
}

// Names returns the known endpoint names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// envelope is the wrapper every upstream endpoint returns.
type envelope[T any] struct {
	Status *int `json:"status"`
	Data   []T  `json:"data"`
	Error  Text `json:"error"`
}

func decode[T any](endpoint string, body []byte) ([]T, error) {
	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &NormalizationError{Endpoint: endpoint, Index: -1, Reason: "malformed payload", Err: err}
	}
	if env.Status == nil {
		return nil, &NormalizationError{Endpoint: endpoint, Index: -1, Field: "status", Reason: "missing envelope status"}
	}
	if *env.Status != 200 {
		msg, _ := env.Error.String()
		return nil, &NormalizationError{Endpoint: endpoint, Index: -1, Field: "status",
			Reason: fmt.Sprintf("envelope status %d %s", *env.Status, msg)}
	}
	return env.Data, nil
}

// required extracts a mandatory string field.
func required(endpoint string, index int, field string, t Text) (string, error) {
	s, ok := t.String()
	if !ok || s == "" {
		reason := "missing"
		if t.Present() {
			reason = "not a non-empty string"
		}
		return "", &NormalizationError{Endpoint: endpoint, Index: index, Field: field, Reason: reason}
	}
	return s, nil
}

// optional extracts an optional string, defaulting to "". A present value of
// the wrong type is reported through warn.
func optional(t Text, warn func(string)) string {
	s, ok := t.String()
	if !ok && t.Present() {
		warn("not a string, defaulted to empty")
	}
	return s
}

func itoa(i int) string { return strconv.Itoa(i) }

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
