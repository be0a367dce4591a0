// Package faultdata reads, validates, and re-shapes the fault
// prediction records the analytics pipeline drops in S3, turning raw
// JSON into the text documents the knowledge base ingests.
package faultdata

import (
	"sort"
	"strconv"
	"time"
)

// Record is one fault prediction sample as the analytics pipeline
// writes it. The field set varies between pipeline versions, so records
// stay schemaless and the accessors tolerate absent keys.
type Record map[string]any

// KeyFields are the fields the knowledge base pipeline leans on.
var KeyFields = []string{
	"timestamp",
	"predicted_fault",
	"fault_category",
	"recommendation_summary",
	"risk_level",
}

// Str returns the value under key rendered as a string, or "" when the
// key is absent. Numbers are formatted without a trailing zero
// fraction.
func (r Record) Str(key string) string {
	return r.StrOr(key, "")
}

// StrOr is Str with an explicit fallback for absent keys.
func (r Record) StrOr(key, fallback string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return fallback
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fallback
	}
}

// Num returns the value under key as a float64, or 0 when absent or
// not numeric.
func (r Record) Num(key string) float64 {
	if v, ok := r[key].(float64); ok {
		return v
	}
	return 0
}

// Flag reports whether the value under key is truthy. The pipeline
// writes flags as JSON booleans or 0/1 numbers depending on version.
func (r Record) Flag(key string) bool {
	switch t := r[key].(type) {
	case bool:
		return t
	case float64:
		return t != 0
	}
	return false
}

// Map returns a nested object under key, or nil.
func (r Record) Map(key string) map[string]any {
	m, _ := r[key].(map[string]any)
	return m
}

// Fields returns the record's keys sorted.
func (r Record) Fields() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FileInfo describes one object in the fault data prefix.
type FileInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ValidationReport summarizes a structural check over sampled records.
type ValidationReport struct {
	TotalFilesChecked int
	ValidFiles        int
	InvalidFiles      int
	CommonFields      []string
	SampleRecord      Record
}

// HasField reports whether field is present in every sampled record.
func (v *ValidationReport) HasField(field string) bool {
	for _, f := range v.CommonFields {
		if f == field {
			return true
		}
	}
	return false
}
