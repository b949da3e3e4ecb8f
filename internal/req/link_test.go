package req_test

import (
	"errors"
	"testing"

	"reqstore/internal/req"
)

func TestService_SuspectLinks(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	srs := createModule(t, svc, "SRS")
	sds := createModule(t, svc, "SDS")
	satisfies := createLinkType(t, svc, "satisfies")

	design := createObject(t, svc, req.CreateObjectInput{ModuleID: sds.ID, Heading: "Session service"})
	requirement := createObject(t, svc, req.CreateObjectInput{ModuleID: srs.ID, Heading: "Login", Body: req.StringPtr("Users log in.")})
	link := createLink(t, svc, design, requirement, satisfies)

	if link.Suspect {
		t.Fatal("new link is suspect")
	}
	if link.SourceFingerprint != design.ContentFingerprint || link.TargetFingerprint != requirement.ContentFingerprint {
		t.Error("link did not capture endpoint fingerprints")
	}

	suspect := func() bool {
		t.Helper()
		l, err := svc.GetLink(ctx, link.ID)
		if err != nil {
			t.Fatalf("GetLink() error = %v", err)
		}
		return l.Suspect
	}

	// Structural changes leave the fingerprint alone.
	if _, err := svc.UpdateObject(ctx, requirement.ID, req.UpdateObjectInput{Position: req.Float64Ptr(5)}); err != nil {
		t.Fatalf("UpdateObject() error = %v", err)
	}
	if suspect() {
		t.Error("link suspect after a position-only change")
	}

	if _, err := svc.UpdateObject(ctx, requirement.ID, req.UpdateObjectInput{Body: req.StringPtr("Users log in with SSO.")}); err != nil {
		t.Fatalf("UpdateObject() error = %v", err)
	}
	if !suspect() {
		t.Fatal("link not suspect after target content change")
	}

	suspects, err := svc.ListLinks(ctx, req.LinkFilter{SuspectOnly: true})
	if err != nil {
		t.Fatalf("ListLinks() error = %v", err)
	}
	if len(suspects) != 1 || suspects[0].ID != link.ID {
		t.Errorf("ListLinks(SuspectOnly) = %v, want [%s]", suspects, link.ID)
	}

	// Reverting the content restores the captured fingerprint.
	if _, err := svc.UpdateObject(ctx, requirement.ID, req.UpdateObjectInput{Body: req.StringPtr("Users log in.")}); err != nil {
		t.Fatalf("UpdateObject() error = %v", err)
	}
	if suspect() {
		t.Error("link still suspect after content was reverted")
	}

	if _, err := svc.UpdateObject(ctx, design.ID, req.UpdateObjectInput{Attributes: req.Attributes{"owner": "bob"}}); err != nil {
		t.Fatalf("UpdateObject() error = %v", err)
	}
	if !suspect() {
		t.Fatal("link not suspect after source content change")
	}

	resolved, err := svc.ResolveLink(ctx, link.ID)
	if err != nil {
		t.Fatalf("ResolveLink() error = %v", err)
	}
	current := getObject(t, svc, design.ID)
	if resolved.Suspect || resolved.SourceFingerprint != current.ContentFingerprint {
		t.Errorf("ResolveLink() = %+v, want cleared with current fingerprints", resolved)
	}
	if suspect() {
		t.Error("stored link still suspect after resolve")
	}
}

func TestService_CreateLink_Errors(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	m := createModule(t, svc, "SRS")
	lt := createLinkType(t, svc, "refines")
	a := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "A"})
	b := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "B"})
	gone := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "Gone"})
	if err := svc.DeleteObject(ctx, gone.ID); err != nil {
		t.Fatalf("DeleteObject() error = %v", err)
	}
	createLink(t, svc, a, b, lt)

	tests := []struct {
		name string
		in   req.CreateLinkInput
		want error
	}{
		{"self link", req.CreateLinkInput{SourceObjectID: a.ID, TargetObjectID: a.ID, LinkTypeID: lt.ID}, req.ErrValidation},
		{"missing type", req.CreateLinkInput{SourceObjectID: a.ID, TargetObjectID: b.ID}, req.ErrValidation},
		{"unknown type", req.CreateLinkInput{SourceObjectID: b.ID, TargetObjectID: a.ID, LinkTypeID: "nope"}, req.ErrNotFound},
		{"deleted endpoint", req.CreateLinkInput{SourceObjectID: a.ID, TargetObjectID: gone.ID, LinkTypeID: lt.ID}, req.ErrNotFound},
		{"duplicate", req.CreateLinkInput{SourceObjectID: a.ID, TargetObjectID: b.ID, LinkTypeID: lt.ID}, req.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateLink(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("CreateLink() error = %v, want %v", err, tt.want)
			}
		})
	}

	// The reverse direction is a different link.
	createLink(t, svc, b, a, lt)

	if _, err := svc.CreateLinkType(ctx, "refines", ""); !errors.Is(err, req.ErrConflict) {
		t.Errorf("CreateLinkType() duplicate error = %v, want ErrConflict", err)
	}
}

func TestService_DeleteLink(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	m := createModule(t, svc, "SRS")
	lt := createLinkType(t, svc, "refines")
	a := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "A"})
	b := createObject(t, svc, req.CreateObjectInput{ModuleID: m.ID, Heading: "B"})
	l := createLink(t, svc, a, b, lt)

	if err := svc.DeleteLink(ctx, l.ID); err != nil {
		t.Fatalf("DeleteLink() error = %v", err)
	}
	if _, err := svc.GetLink(ctx, l.ID); !errors.Is(err, req.ErrNotFound) {
		t.Errorf("GetLink() error = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteLink(ctx, l.ID); !errors.Is(err, req.ErrNotFound) {
		t.Errorf("DeleteLink() twice error = %v, want ErrNotFound", err)
	}
}
