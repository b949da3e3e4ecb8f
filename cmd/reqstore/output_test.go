package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fatih/color"

	"reqstore/internal/req"
)

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    req.Attributes
		wantErr bool
	}{
		{name: "none", pairs: nil, want: nil},
		{name: "string", pairs: []string{"owner=alice"}, want: req.Attributes{"owner": "alice"}},
		{name: "int", pairs: []string{"priority=3"}, want: req.Attributes{"priority": 3}},
		{name: "bool", pairs: []string{"safety=true"}, want: req.Attributes{"safety": true}},
		{name: "null", pairs: []string{"owner=null"}, want: req.Attributes{"owner": nil}},
		{name: "list", pairs: []string{"tags=[a, b]"}, want: req.Attributes{"tags": []any{"a", "b"}}},
		{name: "equals in value", pairs: []string{"expr=a=b"}, want: req.Attributes{"expr": "a=b"}},
		{name: "key trimmed", pairs: []string{" owner =bob"}, want: req.Attributes{"owner": "bob"}},
		{name: "invalid yaml kept raw", pairs: []string{"note=[unclosed"}, want: req.Attributes{"note": "[unclosed"}},
		{name: "missing equals", pairs: []string{"owner"}, wantErr: true},
		{name: "empty key", pairs: []string{"=x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAttributes(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseAttributes() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseAttributes() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRenderSegments(t *testing.T) {
	color.NoColor = true
	segs := []req.Segment{
		{Type: req.SegmentEqual, Text: "the user "},
		{Type: req.SegmentRemoved, Text: "logs"},
		{Type: req.SegmentAdded, Text: "signs"},
		{Type: req.SegmentEqual, Text: " in"},
	}
	want := "the user [-logs-]{+signs+} in"
	if got := renderSegments(segs); got != want {
		t.Errorf("renderSegments() = %q, want %q", got, want)
	}
	if got := renderSegments(nil); got != "" {
		t.Errorf("renderSegments(nil) = %q, want empty", got)
	}
}

func TestFormatIssue(t *testing.T) {
	color.NoColor = true
	tests := []struct {
		name  string
		issue req.ValidationIssue
		want  string
	}{
		{
			name:  "object issue",
			issue: req.ValidationIssue{Rule: req.RuleMissingBody, Severity: req.SeverityWarning, ObjectID: "o1", Message: "[1] Login: normative object has no body"},
			want:  "warning missing_body                 [1] Login: normative object has no body  o1",
		},
		{
			name:  "link issue shows the link",
			issue: req.ValidationIssue{Rule: req.RuleDanglingLink, Severity: req.SeverityError, LinkID: "l1", Message: "link target o2 is deleted or missing"},
			want:  "error   dangling_link                link target o2 is deleted or missing  l1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatIssue(tt.issue); got != tt.want {
				t.Errorf("formatIssue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStringPtr(t *testing.T) {
	if got := stringPtr(false, "x"); got != nil {
		t.Errorf("stringPtr(false) = %v, want nil", *got)
	}
	if got := stringPtr(true, ""); got == nil || *got != "" {
		t.Errorf("stringPtr(true, \"\") = %v, want pointer to empty string", got)
	}
}

func TestReadMockObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mock.yaml")
	content := "heading: Login\nbody: The user logs in.\nattributes:\n  priority: 2\nclassification: normative\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	o, err := readMockObject(path)
	if err != nil {
		t.Fatalf("readMockObject() error = %v", err)
	}
	if o.ID != "mock" {
		t.Errorf("ID = %q, want mock", o.ID)
	}
	if o.Heading != "Login" || o.Body == nil || *o.Body != "The user logs in." {
		t.Errorf("content = %q / %v", o.Heading, o.Body)
	}
	if o.Attributes["priority"] != 2 {
		t.Errorf("priority = %#v, want 2", o.Attributes["priority"])
	}
	if o.Classification != req.ClassificationNormative {
		t.Errorf("Classification = %q", o.Classification)
	}

	if _, err := readMockObject(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("readMockObject() on missing file should return error")
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"object", "create"},
		{"link", "resolve"},
		{"baseline", "diff"},
		{"baseline", "fetch"},
		{"set", "show"},
		{"impact"},
		{"trace"},
		{"coverage"},
		{"validate"},
		{"script", "layout"},
		{"keys", "setup"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		if err != nil || len(rest) != 0 || cmd == rootCmd {
			t.Errorf("command %v not registered (err=%v)", path, err)
		}
	}
}
