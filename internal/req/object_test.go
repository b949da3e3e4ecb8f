package req_test

import (
	"errors"
	"testing"
	"time"

	"reqstore/internal/req"
)

func TestService_CreateObject(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	m := createModule(t, svc, "SRS")

	body := "The system shall log in users."
	o := createObject(t, svc, req.CreateObjectInput{
		ModuleID:   m.ID,
		Heading:    "Login",
		Body:       &body,
		Attributes: req.Attributes{"priority": "high", "weight": 3},
	})

	if o.CurrentVersion != 1 {
		t.Errorf("CurrentVersion = %d, want 1", o.CurrentVersion)
	}
	if o.Level != "1" {
		t.Errorf("Level = %q, want %q", o.Level, "1")
	}
	if o.Classification != req.ClassificationNormative {
		t.Errorf("Classification = %q, want module default", o.Classification)
	}
	want := req.Fingerprint(o.Heading, o.Body, o.Attributes, o.Classification)
	if o.ContentFingerprint != want {
		t.Errorf("ContentFingerprint = %s, want %s", o.ContentFingerprint, want)
	}
	if o.Reviewed() {
		t.Error("Reviewed() = true for new object")
	}
	// Attributes are normalized through JSON.
	if o.Attributes["weight"] != float64(3) {
		t.Errorf("Attributes[weight] = %#v, want float64(3)", o.Attributes["weight"])
	}

	history, err := svc.GetObjectHistory(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetObjectHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].ChangeType != req.ChangeCreate || history[0].Version != 1 {
		t.Errorf("history = %+v, want one create at v1", history)
	}
}

func TestService_CreateObject_Validation(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	m := createModule(t, svc, "SRS", "priority")
	other := createModule(t, svc, "TST")
	foreign := createObject(t, svc, req.CreateObjectInput{ModuleID: other.ID, Heading: "foreign"})

	tests := []struct {
		name string
		in   req.CreateObjectInput
		want error
	}{
		{"missing module id", req.CreateObjectInput{Heading: "x"}, req.ErrValidation},
		{"unknown module", req.CreateObjectInput{ModuleID: "nope", Attributes: req.Attributes{"priority": "x"}}, req.ErrNotFound},
		{"required attribute missing", req.CreateObjectInput{ModuleID: m.ID, Heading: "x"}, req.ErrValidation},
		{"required attribute null", req.CreateObjectInput{ModuleID: m.ID, Attributes: req.Attributes{"priority": nil}}, req.ErrValidation},
		{"bad classification", req.CreateObjectInput{ModuleID: m.ID, Classification: "secret", Attributes: req.Attributes{"priority": "x"}}, req.ErrValidation},
		{"parent in other module", req.CreateObjectInput{ModuleID: m.ID, ParentID: &foreign.ID, Attributes: req.Attributes{"priority": "x"}}, req.ErrValidation},
		{"unknown parent", req.CreateObjectInput{ModuleID: m.ID, ParentID: req.StringPtr("ghost"), Attributes: req.Attributes{"priority": "x"}}, req.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateObject(ctx, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateObject() error = %v, want %v", err, tt.want)
			}
		})
	}

	objects, err := svc.ListObjects(ctx, m.ID, req.ObjectFilter{})
	if err != nil {
		t.Fatalf("ListObjects() error = %v", err)
	}
	if len(objects) != 0 {
		t.Errorf("ListObjects() = %d objects, want 0 after failed creates", len(objects))
	}
}

func TestService_UpdateObject(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	m := createModule(t, svc, "SRS")
	o := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Login", Reviewed: true})

	if !o.Reviewed() {
		t.Fatal("Reviewed() = false after create with Reviewed")
	}

	env.Clock.Advance(time.Minute)
	updated, err := svc.UpdateObject(ctx, o.ID, req.UpdateObjectInput{Heading: req.StringPtr("Login page")})
	if err != nil {
		t.Fatalf("UpdateObject() error = %v", err)
	}
	if updated.CurrentVersion != 2 {
		t.Errorf("CurrentVersion = %d, want 2", updated.CurrentVersion)
	}
	if updated.ContentFingerprint == o.ContentFingerprint {
		t.Error("ContentFingerprint unchanged after heading change")
	}
	if updated.Reviewed() {
		t.Error("Reviewed() = true after content change")
	}

	t.Run("stale expected version conflicts", func(t *testing.T) {
		_, err := svc.UpdateObject(ctx, o.ID, req.UpdateObjectInput{
			Heading:         req.StringPtr("other"),
			ExpectedVersion: &o.CurrentVersion,
		})
		if !errors.Is(err, req.ErrConflict) {
			t.Errorf("UpdateObject() error = %v, want ErrConflict", err)
		}
	})

	t.Run("sign off", func(t *testing.T) {
		yes := true
		signed, err := svc.UpdateObject(ctx, o.ID, req.UpdateObjectInput{Reviewed: &yes})
		if err != nil {
			t.Fatalf("UpdateObject() error = %v", err)
		}
		if !signed.Reviewed() {
			t.Error("Reviewed() = false after sign off")
		}
		if signed.ContentFingerprint != updated.ContentFingerprint {
			t.Error("sign off changed the fingerprint")
		}
	})

	t.Run("clear body", func(t *testing.T) {
		withBody, err := svc.UpdateObject(ctx, o.ID, req.UpdateObjectInput{Body: req.StringPtr("text")})
		if err != nil {
			t.Fatalf("UpdateObject() error = %v", err)
		}
		cleared, err := svc.UpdateObject(ctx, o.ID, req.UpdateObjectInput{ClearBody: true})
		if err != nil {
			t.Fatalf("UpdateObject() error = %v", err)
		}
		if cleared.Body != nil {
			t.Errorf("Body = %q, want nil", *cleared.Body)
		}
		if cleared.CurrentVersion != withBody.CurrentVersion+1 {
			t.Errorf("CurrentVersion = %d, want %d", cleared.CurrentVersion, withBody.CurrentVersion+1)
		}
	})

	history, err := svc.GetObjectHistory(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetObjectHistory() error = %v", err)
	}
	for i, h := range history {
		if h.Version != int64(i+1) {
			t.Errorf("history[%d].Version = %d, want %d", i, h.Version, i+1)
		}
		if h.ChangedBy != "alice" {
			t.Errorf("history[%d].ChangedBy = %q, want alice", i, h.ChangedBy)
		}
	}
	last := history[len(history)-1]
	current := getObject(t, svc, o.ID)
	if last.Version != current.CurrentVersion {
		t.Errorf("latest history version = %d, current version = %d", last.Version, current.CurrentVersion)
	}
}

func TestService_Hierarchy(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	m := createModule(t, svc, "SRS")

	intro := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Intro"})
	reqs := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Requirements"})
	login := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, ParentID: &reqs.ID, Heading: "Login"})
	logout := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, ParentID: &reqs.ID, Heading: "Logout"})

	list := func() []*req.Object {
		t.Helper()
		objects, err := svc.ListObjects(ctx, m.ID, req.ObjectFilter{})
		if err != nil {
			t.Fatalf("ListObjects() error = %v", err)
		}
		return objects
	}

	got := levels(list())
	want := map[string]string{"Intro": "1", "Requirements": "2", "Login": "2.1", "Logout": "2.2"}
	for h, l := range want {
		if got[h] != l {
			t.Errorf("level[%s] = %q, want %q", h, got[h], l)
		}
	}

	t.Run("move under another parent", func(t *testing.T) {
		moved, err := svc.UpdateObject(ctx, logout.ID, req.UpdateObjectInput{ParentID: &intro.ID})
		if err != nil {
			t.Fatalf("UpdateObject() error = %v", err)
		}
		if moved.Level != "1.1" {
			t.Errorf("Level = %q, want 1.1", moved.Level)
		}
		if moved.ContentFingerprint != logout.ContentFingerprint {
			t.Error("structural move changed the fingerprint")
		}
		if getObject(t, svc, login.ID).Level != "2.1" {
			t.Error("sibling level changed unexpectedly")
		}
	})

	t.Run("cycle is rejected", func(t *testing.T) {
		_, err := svc.UpdateObject(ctx, intro.ID, req.UpdateObjectInput{ParentID: &logout.ID})
		if !errors.Is(err, req.ErrConflict) {
			t.Errorf("UpdateObject() error = %v, want ErrConflict", err)
		}
		_, err = svc.UpdateObject(ctx, intro.ID, req.UpdateObjectInput{ParentID: &intro.ID})
		if !errors.Is(err, req.ErrConflict) {
			t.Errorf("UpdateObject() self parent error = %v, want ErrConflict", err)
		}
	})

	t.Run("reorder by position", func(t *testing.T) {
		if _, err := svc.UpdateObject(ctx, reqs.ID, req.UpdateObjectInput{Position: req.Float64Ptr(0.5)}); err != nil {
			t.Fatalf("UpdateObject() error = %v", err)
		}
		got := levels(list())
		if got["Requirements"] != "1" || got["Login"] != "1.1" || got["Intro"] != "2" || got["Logout"] != "2.1" {
			t.Errorf("levels after reorder = %v", got)
		}
	})

	t.Run("cascade delete", func(t *testing.T) {
		if err := svc.DeleteObject(ctx, reqs.ID); err != nil {
			t.Fatalf("DeleteObject() error = %v", err)
		}

		live := list()
		if len(live) != 2 {
			t.Fatalf("live objects = %d, want 2", len(live))
		}
		got := levels(live)
		if got["Intro"] != "1" || got["Logout"] != "1.1" {
			t.Errorf("levels after delete = %v", got)
		}

		deleted := getObject(t, svc, login.ID)
		if !deleted.Deleted() {
			t.Error("child not deleted with its parent")
		}
		history, err := svc.GetObjectHistory(ctx, login.ID)
		if err != nil {
			t.Fatalf("GetObjectHistory() error = %v", err)
		}
		if n := len(history); n != 2 || history[n-1].ChangeType != req.ChangeDelete || history[n-1].Version != deleted.CurrentVersion {
			t.Errorf("history = %+v, want create then delete", history)
		}

		if _, err := svc.UpdateObject(ctx, login.ID, req.UpdateObjectInput{Heading: req.StringPtr("x")}); !errors.Is(err, req.ErrNotFound) {
			t.Errorf("UpdateObject() on deleted error = %v, want ErrNotFound", err)
		}
		if err := svc.DeleteObject(ctx, login.ID); !errors.Is(err, req.ErrNotFound) {
			t.Errorf("DeleteObject() twice error = %v, want ErrNotFound", err)
		}
		all, err := svc.ListObjects(ctx, m.ID, req.ObjectFilter{IncludeDeleted: true})
		if err != nil {
			t.Fatalf("ListObjects() error = %v", err)
		}
		if len(all) != 4 {
			t.Errorf("ListObjects(IncludeDeleted) = %d, want 4", len(all))
		}
	})
}

func TestService_ListObjects_Filter(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	m := createModule(t, svc, "SRS")

	body := "Users SHALL authenticate"
	createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Security", Classification: req.ClassificationHeading})
	createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Auth", Body: &body, Reviewed: true})
	createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Note", Classification: req.ClassificationInformative})

	tests := []struct {
		name   string
		filter req.ObjectFilter
		want   int
	}{
		{"all", req.ObjectFilter{}, 3},
		{"headings", req.ObjectFilter{Classification: req.ClassificationHeading}, 1},
		{"needs review", req.ObjectFilter{NeedsReview: true}, 2},
		{"search body case-insensitive", req.ObjectFilter{Search: "shall"}, 1},
		{"search heading", req.ObjectFilter{Search: "NOTE"}, 1},
		{"roots", req.ObjectFilter{ParentID: req.StringPtr("")}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListObjects(ctx, m.ID, tt.filter)
			if err != nil {
				t.Fatalf("ListObjects() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("ListObjects() = %d objects, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := svc.ListObjects(ctx, m.ID, req.ObjectFilter{Classification: "secret"}); !errors.Is(err, req.ErrValidation) {
		t.Errorf("ListObjects() bad classification error = %v, want ErrValidation", err)
	}
}

func TestService_Modules(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	createModule(t, svc, "SRS")

	if _, err := svc.CreateModule(ctx, req.CreateModuleInput{Name: "SRS"}); !errors.Is(err, req.ErrConflict) {
		t.Errorf("CreateModule() duplicate error = %v, want ErrConflict", err)
	}
	if _, err := svc.CreateModule(ctx, req.CreateModuleInput{Name: "  "}); !errors.Is(err, req.ErrValidation) {
		t.Errorf("CreateModule() blank error = %v, want ErrValidation", err)
	}
	m, err := svc.FindModuleByName(ctx, "SRS")
	if err != nil || m.Name != "SRS" {
		t.Errorf("FindModuleByName() = %v, %v", m, err)
	}
	if _, err := svc.FindModuleByName(ctx, "missing"); !errors.Is(err, req.ErrNotFound) {
		t.Errorf("FindModuleByName() missing error = %v, want ErrNotFound", err)
	}
}
