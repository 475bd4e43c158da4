// Worklogd - Developer Worklog Tracking and Tempo Reconciliation
// Copyright 2026 M. Huang (mhuang-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mhuang-dev/worklogd

package validation

import (
	"strings"
	"testing"
)

type syncPayload struct {
	Date    string  `validate:"required,datetime=2006-01-02"`
	Scope   string  `validate:"required,oneof=item day week"`
	Hours   float64 `validate:"gt=0"`
	Issue   string  `validate:"omitempty,issuekey"`
	Comment string  `validate:"max=10"`
}

func validPayload() syncPayload {
	return syncPayload{Date: "2026-08-20", Scope: "day", Hours: 1.5, Issue: "PROJ-123"}
}

func TestValidateStructAccepts(t *testing.T) {
	if err := ValidateStruct(validPayload()); err != nil {
		t.Errorf("ValidateStruct() = %v, want nil", err)
	}
}

func TestValidateStructFieldFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*syncPayload)
		field   string
		message string
	}{
		{
			name:    "missing date",
			mutate:  func(p *syncPayload) { p.Date = "" },
			field:   "Date",
			message: "Date is required",
		},
		{
			name:    "malformed date",
			mutate:  func(p *syncPayload) { p.Date = "20/08/2026" },
			field:   "Date",
			message: "Date must be a date in YYYY-MM-DD format",
		},
		{
			name:    "bad scope",
			mutate:  func(p *syncPayload) { p.Scope = "month" },
			field:   "Scope",
			message: "Scope must be one of: item day week",
		},
		{
			name:    "zero hours",
			mutate:  func(p *syncPayload) { p.Hours = 0 },
			field:   "Hours",
			message: "Hours must be greater than 0",
		},
		{
			name:    "lowercase issue key",
			mutate:  func(p *syncPayload) { p.Issue = "proj-123" },
			field:   "Issue",
			message: "Issue must be an issue key like PROJ-123",
		},
		{
			name:    "comment too long",
			mutate:  func(p *syncPayload) { p.Comment = "this comment is too long" },
			field:   "Comment",
			message: "Comment must be at most 10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			tt.mutate(&payload)

			err := ValidateStruct(payload)
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			fields := err.Fields()
			if len(fields) != 1 {
				t.Fatalf("Fields() returned %d errors, want 1: %v", len(fields), err)
			}
			if fields[0].Field != tt.field {
				t.Errorf("field = %q, want %q", fields[0].Field, tt.field)
			}
			if fields[0].Message != tt.message {
				t.Errorf("message = %q, want %q", fields[0].Message, tt.message)
			}
		})
	}
}

func TestValidateStructCollectsAllFailures(t *testing.T) {
	err := ValidateStruct(syncPayload{Date: "bad", Scope: "bad", Hours: -1})
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}
	if len(err.Fields()) != 3 {
		t.Errorf("Fields() returned %d errors, want 3: %v", len(err.Fields()), err)
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("Error() = %q, want joined messages", err.Error())
	}
}

func TestRequestErrorDetails(t *testing.T) {
	err := ValidateStruct(syncPayload{Scope: "day", Hours: 1})
	if err == nil {
		t.Fatal("ValidateStruct() = nil, want error")
	}
	details := err.Details()
	fields, ok := details["fields"].([]map[string]any)
	if !ok || len(fields) != 1 {
		t.Fatalf("details = %v, want one field entry", details)
	}
	if fields[0]["field"] != "Date" || fields[0]["tag"] != "required" {
		t.Errorf("field entry = %v, want Date/required", fields[0])
	}
}

func TestIssueKeyPattern(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"PROJ-1", true},
		{"A1B2-999", true},
		{"X-0", true},
		{"proj-1", false},
		{"PROJ1", false},
		{"PROJ-", false},
		{"-123", false},
		{"1ABC-5", false},
	}
	for _, tt := range tests {
		if got := issueKeyPattern.MatchString(tt.key); got != tt.valid {
			t.Errorf("issueKeyPattern.MatchString(%q) = %v, want %v", tt.key, got, tt.valid)
		}
	}
}
