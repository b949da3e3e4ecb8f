package req

import (
	"strconv"
	"strings"
)

// computeLevels derives the dot-joined level of every live object in a
// module. objects must be ordered by position then creation order; deleted
// objects are skipped and do not occupy a rank. Objects whose parent is
// missing or deleted are ranked as roots.
func computeLevels(objects []*Object) map[string]string {
	live := make(map[string]*Object, len(objects))
	for _, o := range objects {
		if !o.Deleted() {
			live[o.ID] = o
		}
	}

	var roots []*Object
	children := make(map[string][]*Object)
	for _, o := range objects {
		if o.Deleted() {
			continue
		}
		if o.ParentID != nil {
			if _, ok := live[*o.ParentID]; ok {
				children[*o.ParentID] = append(children[*o.ParentID], o)
				continue
			}
		}
		roots = append(roots, o)
	}

	type frame struct {
		obj   *Object
		level string
	}

	levels := make(map[string]string, len(live))
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{obj: roots[i], level: strconv.Itoa(i + 1)})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		levels[f.obj.ID] = f.level

		kids := children[f.obj.ID]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{obj: kids[i], level: f.level + "." + strconv.Itoa(i+1)})
		}
	}

	return levels
}

// compareLevels orders two levels numerically segment by segment, so "1.10"
// sorts after "1.9".
func compareLevels(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, _ := strconv.Atoi(as[i])
		bi, _ := strconv.Atoi(bs[i])
		if ai != bi {
			if ai < bi {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

// isDescendant reports whether candidate lies in the subtree rooted at
// ancestorID, walking parent pointers upward.
func isDescendant(byID map[string]*Object, candidate, ancestorID string) bool {
	seen := make(map[string]bool)
	for id := candidate; id != ""; {
		if id == ancestorID {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		o, ok := byID[id]
		if !ok || o.ParentID == nil {
			return false
		}
		id = *o.ParentID
	}
	return false
}
