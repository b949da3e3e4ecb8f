package req

import (
	"context"
	"fmt"
)

// MatrixCell is one link between a row object and a target-module object.
type MatrixCell struct {
	TargetID      string `json:"target_id"`
	TargetHeading string `json:"target_heading"`
	TargetLevel   string `json:"target_level"`
	LinkID        string `json:"link_id"`
	LinkType      string `json:"link_type"`
	Suspect       bool   `json:"suspect"`
}

// MatrixRow lists every link from one source-module object into the
// target module.
type MatrixRow struct {
	SourceID      string       `json:"source_id"`
	SourceHeading string       `json:"source_heading"`
	SourceLevel   string       `json:"source_level"`
	Cells         []MatrixCell `json:"cells"`
}

// TraceMatrix relates the live objects of two modules.
type TraceMatrix struct {
	SourceModuleID string      `json:"source_module_id"`
	TargetModuleID string      `json:"target_module_id"`
	Rows           []MatrixRow `json:"rows"`
}

// Coverage summarizes how many live objects of a module are traced.
// Upstream counts objects that are the target of a live link, downstream
// counts objects that are the source of one.
type Coverage struct {
	ModuleID          string  `json:"module_id"`
	Total             int     `json:"total"`
	WithUpstream      int     `json:"with_upstream"`
	WithDownstream    int     `json:"with_downstream"`
	WithAnyLink       int     `json:"with_any_link"`
	UpstreamPercent   float64 `json:"upstream_percent"`
	DownstreamPercent float64 `json:"downstream_percent"`
	AnyLinkPercent    float64 `json:"any_link_percent"`
}

// TraceabilityMatrix builds one row per live object of sourceModuleID, in
// level order, with a cell for each live link to an object of
// targetModuleID. Links stored in the opposite direction are normalized to
// source-to-target. An empty linkTypeID matches every type.
func (s *Service) TraceabilityMatrix(ctx context.Context, sourceModuleID, targetModuleID, linkTypeID string) (*TraceMatrix, error) {
	matrix := &TraceMatrix{
		SourceModuleID: sourceModuleID,
		TargetModuleID: targetModuleID,
		Rows:           []MatrixRow{},
	}

	err := s.database.View(ctx, func(tx Tx) error {
		if _, err := mustModule(ctx, tx, sourceModuleID); err != nil {
			return err
		}
		if _, err := mustModule(ctx, tx, targetModuleID); err != nil {
			return err
		}
		typeNames, err := linkTypeNames(ctx, tx)
		if err != nil {
			return err
		}

		sources, err := tx.ListObjects(ctx, sourceModuleID, ObjectFilter{})
		if err != nil {
			return fmt.Errorf("listing source objects: %w", err)
		}
		sortByLevel(sources)
		targets, err := tx.ListObjects(ctx, targetModuleID, ObjectFilter{})
		if err != nil {
			return fmt.Errorf("listing target objects: %w", err)
		}
		targetByID := make(map[string]*Object, len(targets))
		for _, o := range targets {
			targetByID[o.ID] = o
		}

		links, err := tx.ListLinks(ctx, LinkFilter{ModuleID: sourceModuleID, LinkTypeID: linkTypeID})
		if err != nil {
			return fmt.Errorf("listing links: %w", err)
		}

		cells := make(map[string][]MatrixCell)
		for _, l := range links {
			from, to := l.SourceObjectID, l.TargetObjectID
			if _, ok := targetByID[to]; !ok {
				from, to = to, from
			}
			target, ok := targetByID[to]
			if !ok {
				continue
			}
			cells[from] = append(cells[from], MatrixCell{
				TargetID:      target.ID,
				TargetHeading: target.Heading,
				TargetLevel:   target.Level,
				LinkID:        l.ID,
				LinkType:      typeNames[l.LinkTypeID],
				Suspect:       l.Suspect,
			})
		}

		for _, src := range sources {
			row := MatrixRow{
				SourceID:      src.ID,
				SourceHeading: src.Heading,
				SourceLevel:   src.Level,
				Cells:         cells[src.ID],
			}
			if row.Cells == nil {
				row.Cells = []MatrixCell{}
			}
			matrix.Rows = append(matrix.Rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matrix, nil
}

// Coverage counts the live objects of a module that have live upstream,
// downstream, or any links.
func (s *Service) Coverage(ctx context.Context, moduleID string) (*Coverage, error) {
	cov := &Coverage{ModuleID: moduleID}

	err := s.database.View(ctx, func(tx Tx) error {
		if _, err := mustModule(ctx, tx, moduleID); err != nil {
			return err
		}
		objects, err := tx.ListObjects(ctx, moduleID, ObjectFilter{})
		if err != nil {
			return fmt.Errorf("listing objects: %w", err)
		}

		live := func(id string) (bool, error) {
			o, err := tx.FindObject(ctx, id)
			if err != nil {
				return false, fmt.Errorf("finding object: %w", err)
			}
			return o != nil && !o.Deleted(), nil
		}

		for _, o := range objects {
			cov.Total++

			upstream := false
			in, err := tx.ListLinksTo(ctx, o.ID)
			if err != nil {
				return fmt.Errorf("listing incoming links: %w", err)
			}
			for _, l := range in {
				if upstream, err = live(l.SourceObjectID); err != nil {
					return err
				} else if upstream {
					break
				}
			}

			downstream := false
			out, err := tx.ListLinksFrom(ctx, o.ID)
			if err != nil {
				return fmt.Errorf("listing outgoing links: %w", err)
			}
			for _, l := range out {
				if downstream, err = live(l.TargetObjectID); err != nil {
					return err
				} else if downstream {
					break
				}
			}

			if upstream {
				cov.WithUpstream++
			}
			if downstream {
				cov.WithDownstream++
			}
			if upstream || downstream {
				cov.WithAnyLink++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cov.Total > 0 {
		cov.UpstreamPercent = percent(cov.WithUpstream, cov.Total)
		cov.DownstreamPercent = percent(cov.WithDownstream, cov.Total)
		cov.AnyLinkPercent = percent(cov.WithAnyLink, cov.Total)
	}
	return cov, nil
}

func percent(n, total int) float64 {
	return float64(n) * 100 / float64(total)
}
