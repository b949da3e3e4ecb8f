package req

import (
	"sort"
	"testing"
	"time"
)

func TestComputeLevels(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	p := StringPtr
	objects := []*Object{
		{ID: "a", Position: 1},
		{ID: "b", Position: 2},
		{ID: "b1", ParentID: p("b"), Position: 1},
		{ID: "gone", ParentID: p("b"), Position: 2, DeletedAt: &now},
		{ID: "b2", ParentID: p("b"), Position: 3},
		{ID: "b2x", ParentID: p("b2"), Position: 1},
		{ID: "orphan", ParentID: p("gone"), Position: 9},
	}

	got := computeLevels(objects)
	want := map[string]string{
		"a":      "1",
		"b":      "2",
		"b1":     "2.1",
		"b2":     "2.2",
		"b2x":    "2.2.1",
		"orphan": "3",
	}
	if len(got) != len(want) {
		t.Fatalf("computeLevels() = %v, want %v", got, want)
	}
	for id, level := range want {
		if got[id] != level {
			t.Errorf("level[%s] = %q, want %q", id, got[id], level)
		}
	}
}

func TestCompareLevels(t *testing.T) {
	levels := []string{"10", "1.10", "2", "1.9", "1", "1.2.1"}
	sort.Slice(levels, func(i, j int) bool { return compareLevels(levels[i], levels[j]) < 0 })

	want := []string{"1", "1.2.1", "1.9", "1.10", "2", "10"}
	for i := range want {
		if levels[i] != want[i] {
			t.Fatalf("sorted levels = %v, want %v", levels, want)
		}
	}
}

func TestIsDescendant(t *testing.T) {
	p := StringPtr
	byID := map[string]*Object{
		"root":  {ID: "root"},
		"child": {ID: "child", ParentID: p("root")},
		"leaf":  {ID: "leaf", ParentID: p("child")},
	}

	tests := []struct {
		candidate, ancestor string
		want                bool
	}{
		{"leaf", "root", true},
		{"child", "root", true},
		{"root", "leaf", false},
		{"root", "root", true},
		{"missing", "root", false},
	}
	for _, tt := range tests {
		if got := isDescendant(byID, tt.candidate, tt.ancestor); got != tt.want {
			t.Errorf("isDescendant(%s, %s) = %v, want %v", tt.candidate, tt.ancestor, got, tt.want)
		}
	}
}
