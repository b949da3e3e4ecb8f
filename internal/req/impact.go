package req

import (
	"context"
	"fmt"
)

// Direction selects which links impact analysis follows.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
	DirectionBoth     Direction = "both"
)

// ImpactNode is an object reached from the root, at the depth of its
// first discovery.
type ImpactNode struct {
	ID       string `json:"id"`
	Depth    int    `json:"depth"`
	LinkType string `json:"link_type"`
	Heading  string `json:"heading"`
	Level    string `json:"level"`
	ModuleID string `json:"module_id"`
}

// ImpactEdge is a link examined during traversal.
type ImpactEdge struct {
	LinkID   string `json:"link_id"`
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	LinkType string `json:"link_type"`
	Suspect  bool   `json:"suspect"`
}

// ImpactResult is the outcome of AnalyzeImpact.
type ImpactResult struct {
	RootID    string       `json:"root_id"`
	Direction Direction    `json:"direction"`
	MaxDepth  int          `json:"max_depth"`
	Objects   []ImpactNode `json:"objects"`
	Edges     []ImpactEdge `json:"edges"`
}

// AnalyzeImpact walks the link graph breadth-first from rootID. Each object
// is reported once at its shortest distance from the root; the root itself
// is not reported. Links with a deleted endpoint are skipped. A maxDepth of
// 0 selects the configured default and values above the configured maximum
// are capped.
func (s *Service) AnalyzeImpact(ctx context.Context, rootID string, dir Direction, maxDepth int) (*ImpactResult, error) {
	switch dir {
	case DirectionForward, DirectionBackward, DirectionBoth:
	case "":
		dir = DirectionForward
	default:
		return nil, validationf("direction", "must be one of forward, backward, both")
	}
	if maxDepth < 0 {
		return nil, validationf("max_depth", "must be positive")
	}
	if maxDepth == 0 {
		maxDepth = s.settings.DefaultImpactDepth
	}
	if maxDepth > s.settings.MaxImpactDepth {
		maxDepth = s.settings.MaxImpactDepth
	}

	result := &ImpactResult{
		RootID:    rootID,
		Direction: dir,
		MaxDepth:  maxDepth,
		Objects:   []ImpactNode{},
		Edges:     []ImpactEdge{},
	}

	err := s.database.View(ctx, func(tx Tx) error {
		if _, err := mustLiveObject(ctx, tx, rootID); err != nil {
			return err
		}
		typeNames, err := linkTypeNames(ctx, tx)
		if err != nil {
			return err
		}

		type item struct {
			id    string
			depth int
		}
		visited := map[string]bool{rootID: true}
		seenEdges := make(map[string]bool)
		queue := []item{{id: rootID}}

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur.depth >= maxDepth {
				continue
			}

			var links []*Link
			if dir == DirectionForward || dir == DirectionBoth {
				out, err := tx.ListLinksFrom(ctx, cur.id)
				if err != nil {
					return fmt.Errorf("listing outgoing links: %w", err)
				}
				links = append(links, out...)
			}
			if dir == DirectionBackward || dir == DirectionBoth {
				in, err := tx.ListLinksTo(ctx, cur.id)
				if err != nil {
					return fmt.Errorf("listing incoming links: %w", err)
				}
				links = append(links, in...)
			}

			for _, l := range links {
				neighborID := l.TargetObjectID
				if neighborID == cur.id {
					neighborID = l.SourceObjectID
				}
				neighbor, err := tx.FindObject(ctx, neighborID)
				if err != nil {
					return fmt.Errorf("finding object: %w", err)
				}
				if neighbor == nil || neighbor.Deleted() {
					continue
				}

				if !seenEdges[l.ID] {
					seenEdges[l.ID] = true
					result.Edges = append(result.Edges, ImpactEdge{
						LinkID:   l.ID,
						SourceID: l.SourceObjectID,
						TargetID: l.TargetObjectID,
						LinkType: typeNames[l.LinkTypeID],
						Suspect:  l.Suspect,
					})
				}

				if visited[neighborID] {
					continue
				}
				visited[neighborID] = true
				result.Objects = append(result.Objects, ImpactNode{
					ID:       neighbor.ID,
					Depth:    cur.depth + 1,
					LinkType: typeNames[l.LinkTypeID],
					Heading:  neighbor.Heading,
					Level:    neighbor.Level,
					ModuleID: neighbor.ModuleID,
				})
				queue = append(queue, item{id: neighborID, depth: cur.depth + 1})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("impact analyzed", "root", rootID, "direction", string(dir), "objects", len(result.Objects))
	return result, nil
}

func linkTypeNames(ctx context.Context, tx Tx) (map[string]string, error) {
	types, err := tx.ListLinkTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing link types: %w", err)
	}
	names := make(map[string]string, len(types))
	for _, lt := range types {
		names[lt.ID] = lt.Name
	}
	return names, nil
}
