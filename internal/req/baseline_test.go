package req_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"reqstore/internal/req"
)

func TestService_Baselines(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	m := createModule(t, svc, "SRS")

	login := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Login", Attributes: req.Attributes{"priority": "high"}})
	logout := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Logout"})

	b1, err := svc.CreateBaseline(ctx, req.CreateBaselineInput{ModuleID: m.ID, Name: "v1.0"})
	if err != nil {
		t.Fatalf("CreateBaseline() error = %v", err)
	}
	if !b1.Locked || len(b1.Entries) != 2 {
		t.Fatalf("baseline = %+v, want locked with 2 entries", b1)
	}
	if b1.Entries[0].ObjectID != login.ID || b1.Entries[0].Ordinal != 1 || b1.Entries[0].Version != 1 {
		t.Errorf("Entries[0] = %+v, want login v1 ordinal 1", b1.Entries[0])
	}

	env.Clock.Advance(time.Hour)
	if _, err := svc.UpdateObject(ctx, login.ID, req.UpdateObjectInput{
		Heading:    req.StringPtr("Login page"),
		Attributes: req.Attributes{"priority": "low"},
	}); err != nil {
		t.Fatalf("UpdateObject() error = %v", err)
	}
	audit := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Audit"})
	if err := svc.DeleteObject(ctx, logout.ID); err != nil {
		t.Fatalf("DeleteObject() error = %v", err)
	}

	b2, err := svc.CreateBaseline(ctx, req.CreateBaselineInput{ModuleID: m.ID, Name: "v1.1"})
	if err != nil {
		t.Fatalf("CreateBaseline() error = %v", err)
	}

	diff, err := svc.DiffBaselines(ctx, b1.ID, b2.ID)
	if err != nil {
		t.Fatalf("DiffBaselines() error = %v", err)
	}
	if len(diff.Added) != 1 || diff.Added[0].ObjectID != audit.ID || diff.Added[0].Heading != "Audit" {
		t.Errorf("Added = %+v, want [Audit]", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0].ObjectID != logout.ID || diff.Removed[0].Version != 1 {
		t.Errorf("Removed = %+v, want [Logout v1]", diff.Removed)
	}
	if len(diff.Modified) != 1 {
		t.Fatalf("Modified = %+v, want one entry", diff.Modified)
	}
	mod := diff.Modified[0]
	if mod.Before.Version != 1 || mod.After.Version != 2 {
		t.Errorf("Modified versions = %d -> %d, want 1 -> 2", mod.Before.Version, mod.After.Version)
	}
	wantHeading := []req.Segment{
		{Type: req.SegmentEqual, Text: "Login"},
		{Type: req.SegmentAdded, Text: " page"},
	}
	if !reflect.DeepEqual(mod.HeadingDiff, wantHeading) {
		t.Errorf("HeadingDiff = %+v, want %+v", mod.HeadingDiff, wantHeading)
	}
	wantAttrs := []req.AttributeChange{{Key: "priority", Before: "high", After: "low"}}
	if !reflect.DeepEqual(mod.AttributeChanges, wantAttrs) {
		t.Errorf("AttributeChanges = %+v, want %+v", mod.AttributeChanges, wantAttrs)
	}

	t.Run("later edits do not change the diff", func(t *testing.T) {
		if _, err := svc.UpdateObject(ctx, login.ID, req.UpdateObjectInput{Heading: req.StringPtr("Sign in")}); err != nil {
			t.Fatalf("UpdateObject() error = %v", err)
		}
		again, err := svc.DiffBaselines(ctx, b1.ID, b2.ID)
		if err != nil {
			t.Fatalf("DiffBaselines() error = %v", err)
		}
		if !reflect.DeepEqual(again, diff) {
			t.Errorf("DiffBaselines() changed after edit:\n got %+v\nwant %+v", again, diff)
		}
	})

	t.Run("self diff is empty", func(t *testing.T) {
		self, err := svc.DiffBaselines(ctx, b2.ID, b2.ID)
		if err != nil {
			t.Fatalf("DiffBaselines() error = %v", err)
		}
		if !self.Empty() {
			t.Errorf("DiffBaselines(b2, b2) = %+v, want empty", self)
		}
	})

	t.Run("reverse diff swaps added and removed", func(t *testing.T) {
		rev, err := svc.DiffBaselines(ctx, b2.ID, b1.ID)
		if err != nil {
			t.Fatalf("DiffBaselines() error = %v", err)
		}
		if len(rev.Added) != 1 || rev.Added[0].ObjectID != logout.ID {
			t.Errorf("reverse Added = %+v, want [Logout]", rev.Added)
		}
		if len(rev.Removed) != 1 || rev.Removed[0].ObjectID != audit.ID {
			t.Errorf("reverse Removed = %+v, want [Audit]", rev.Removed)
		}
	})

	t.Run("list and delete", func(t *testing.T) {
		list, err := svc.ListBaselines(ctx, m.ID)
		if err != nil {
			t.Fatalf("ListBaselines() error = %v", err)
		}
		if len(list) != 2 || list[0].ID != b1.ID {
			t.Errorf("ListBaselines() = %+v, want [b1 b2]", list)
		}
		if err := svc.DeleteBaseline(ctx, b1.ID); err != nil {
			t.Fatalf("DeleteBaseline() error = %v", err)
		}
		if _, err := svc.GetBaseline(ctx, b1.ID); !errors.Is(err, req.ErrNotFound) {
			t.Errorf("GetBaseline() error = %v, want ErrNotFound", err)
		}
		if _, err := svc.DiffBaselines(ctx, b1.ID, b2.ID); !errors.Is(err, req.ErrNotFound) {
			t.Errorf("DiffBaselines() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_BaselineSets(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	srs := createModule(t, svc, "SRS")
	tst := createModule(t, svc, "TST")
	createObject(t, svc, req.CreateObjectInput{ModuleID: srs.ID, Heading: "Login"})

	set, err := svc.CreateBaselineSet(ctx, "Release", "2.0", "")
	if err != nil {
		t.Fatalf("CreateBaselineSet() error = %v", err)
	}
	if _, err := svc.CreateBaselineSet(ctx, "Release", "", ""); !errors.Is(err, req.ErrValidation) {
		t.Errorf("CreateBaselineSet() without version error = %v, want ErrValidation", err)
	}

	for _, m := range []*req.Module{srs, tst} {
		if _, err := svc.CreateBaseline(ctx, req.CreateBaselineInput{ModuleID: m.ID, Name: "r2.0", BaselineSetID: &set.ID}); err != nil {
			t.Fatalf("CreateBaseline(%s) error = %v", m.Name, err)
		}
	}
	if _, err := svc.CreateBaseline(ctx, req.CreateBaselineInput{ModuleID: srs.ID, Name: "x", BaselineSetID: req.StringPtr("nope")}); !errors.Is(err, req.ErrNotFound) {
		t.Errorf("CreateBaseline() unknown set error = %v, want ErrNotFound", err)
	}

	got, err := svc.GetBaselineSet(ctx, set.ID)
	if err != nil {
		t.Fatalf("GetBaselineSet() error = %v", err)
	}
	if len(got.Baselines) != 2 {
		t.Errorf("GetBaselineSet() baselines = %d, want 2", len(got.Baselines))
	}
}
