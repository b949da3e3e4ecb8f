package req_test

import (
	"context"
	"testing"

	"reqstore/internal/req"
	"reqstore/internal/testutil"
)

func newEnv(t *testing.T) (*testutil.Env, context.Context) {
	t.Helper()
	return testutil.NewTestService(t, req.Settings{}), req.WithActor(context.Background(), "alice")
}

func createModule(t *testing.T, svc *req.Service, name string, required ...string) *req.Module {
	t.Helper()
	m, err := svc.CreateModule(context.Background(), req.CreateModuleInput{Name: name, RequiredAttributes: required})
	if err != nil {
		t.Fatalf("CreateModule(%q) error = %v", name, err)
	}
	return m
}

func createObject(t *testing.T, svc *req.Service, in req.CreateObjectInput) *req.Object {
	t.Helper()
	o, err := svc.CreateObject(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateObject(%q) error = %v", in.Heading, err)
	}
	return o
}

func createLinkType(t *testing.T, svc *req.Service, name string) *req.LinkType {
	t.Helper()
	lt, err := svc.CreateLinkType(context.Background(), name, "")
	if err != nil {
		t.Fatalf("CreateLinkType(%q) error = %v", name, err)
	}
	return lt
}

func createLink(t *testing.T, svc *req.Service, src, tgt *req.Object, lt *req.LinkType) *req.Link {
	t.Helper()
	l, err := svc.CreateLink(context.Background(), req.CreateLinkInput{
		SourceObjectID: src.ID,
		TargetObjectID: tgt.ID,
		LinkTypeID:     lt.ID,
	})
	if err != nil {
		t.Fatalf("CreateLink(%s -> %s) error = %v", src.ID, tgt.ID, err)
	}
	return l
}

func createScript(t *testing.T, svc *req.Service, in req.CreateScriptInput) *req.Script {
	t.Helper()
	s, err := svc.CreateScript(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateScript(%q) error = %v", in.Name, err)
	}
	return s
}

func getObject(t *testing.T, svc *req.Service, id string) *req.Object {
	t.Helper()
	o, err := svc.GetObject(context.Background(), id)
	if err != nil {
		t.Fatalf("GetObject(%s) error = %v", id, err)
	}
	return o
}

func levels(objects []*req.Object) map[string]string {
	out := make(map[string]string, len(objects))
	for _, o := range objects {
		out[o.Heading] = o.Level
	}
	return out
}
