package req_test

import (
	"errors"
	"math"
	"testing"

	"reqstore/internal/req"
)

func TestService_Traceability(t *testing.T) {
	env, ctx := newEnv(t)
	svc := env.Service
	srs := createModule(t, svc, "SRS")
	tst := createModule(t, svc, "TST")
	verifies := createLinkType(t, svc, "verifies")

	login := createObject(t, svc, req.CreateObjectInput{ModuleID: srs.ID, Heading: "Login"})
	createObject(t, svc, req.CreateObjectInput{ModuleID: srs.ID, Heading: "Logout"})
	case1 := createObject(t, svc, req.CreateObjectInput{ModuleID: tst.ID, Heading: "TC-1"})
	l := createLink(t, svc, case1, login, verifies)

	t.Run("matrix normalizes direction", func(t *testing.T) {
		matrix, err := svc.TraceabilityMatrix(ctx, srs.ID, tst.ID, "")
		if err != nil {
			t.Fatalf("TraceabilityMatrix() error = %v", err)
		}
		if len(matrix.Rows) != 2 {
			t.Fatalf("rows = %d, want 2", len(matrix.Rows))
		}
		first, second := matrix.Rows[0], matrix.Rows[1]
		if first.SourceID != login.ID || len(first.Cells) != 1 {
			t.Fatalf("first row = %+v, want Login with one cell", first)
		}
		cell := first.Cells[0]
		if cell.TargetID != case1.ID || cell.LinkID != l.ID || cell.LinkType != "verifies" || cell.TargetLevel != "1" {
			t.Errorf("cell = %+v", cell)
		}
		if second.Cells == nil || len(second.Cells) != 0 {
			t.Errorf("second row cells = %#v, want empty non-nil", second.Cells)
		}
	})

	t.Run("matrix link type filter", func(t *testing.T) {
		other := createLinkType(t, svc, "refines")
		matrix, err := svc.TraceabilityMatrix(ctx, srs.ID, tst.ID, other.ID)
		if err != nil {
			t.Fatalf("TraceabilityMatrix() error = %v", err)
		}
		for _, row := range matrix.Rows {
			if len(row.Cells) != 0 {
				t.Errorf("row %s has %d cells, want none", row.SourceHeading, len(row.Cells))
			}
		}
	})

	t.Run("coverage", func(t *testing.T) {
		cov, err := svc.Coverage(ctx, srs.ID)
		if err != nil {
			t.Fatalf("Coverage() error = %v", err)
		}
		if cov.Total != 2 || cov.WithUpstream != 1 || cov.WithDownstream != 0 || cov.WithAnyLink != 1 {
			t.Errorf("Coverage(SRS) = %+v", cov)
		}
		if math.Abs(cov.UpstreamPercent-50) > 1e-9 {
			t.Errorf("UpstreamPercent = %v, want 50", cov.UpstreamPercent)
		}

		cov, err = svc.Coverage(ctx, tst.ID)
		if err != nil {
			t.Fatalf("Coverage() error = %v", err)
		}
		if cov.Total != 1 || cov.WithDownstream != 1 || cov.DownstreamPercent != 100 {
			t.Errorf("Coverage(TST) = %+v", cov)
		}
	})

	t.Run("deleted endpoint does not count", func(t *testing.T) {
		if err := svc.DeleteObject(ctx, case1.ID); err != nil {
			t.Fatalf("DeleteObject() error = %v", err)
		}
		cov, err := svc.Coverage(ctx, srs.ID)
		if err != nil {
			t.Fatalf("Coverage() error = %v", err)
		}
		if cov.WithUpstream != 0 || cov.UpstreamPercent != 0 {
			t.Errorf("Coverage(SRS) = %+v, want no upstream", cov)
		}
	})

	t.Run("empty module", func(t *testing.T) {
		empty := createModule(t, svc, "EMPTY")
		cov, err := svc.Coverage(ctx, empty.ID)
		if err != nil {
			t.Fatalf("Coverage() error = %v", err)
		}
		if cov.Total != 0 || cov.AnyLinkPercent != 0 {
			t.Errorf("Coverage(EMPTY) = %+v", cov)
		}
		if _, err := svc.Coverage(ctx, "missing"); !errors.Is(err, req.ErrNotFound) {
			t.Errorf("Coverage() error = %v, want ErrNotFound", err)
		}
	})
}
