package req

import (
	"context"
	"fmt"
)

// CreateLinkInput holds the endpoints and type of a new link.
type CreateLinkInput struct {
	SourceObjectID string `validate:"required"`
	TargetObjectID string `validate:"required"`
	LinkTypeID     string `validate:"required"`
	Attributes     Attributes
}

// CreateLink records a link and captures the current fingerprints of both
// endpoints. A new link is never suspect.
func (s *Service) CreateLink(ctx context.Context, in CreateLinkInput) (*Link, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.SourceObjectID == in.TargetObjectID {
		return nil, validationf("target_object_id", "an object cannot link to itself")
	}
	attrs, err := normalizeAttributes(in.Attributes)
	if err != nil {
		return nil, err
	}

	var link *Link
	err = s.database.Update(ctx, func(tx Tx) error {
		src, err := mustLiveObject(ctx, tx, in.SourceObjectID)
		if err != nil {
			return err
		}
		tgt, err := mustLiveObject(ctx, tx, in.TargetObjectID)
		if err != nil {
			return err
		}
		lt, err := tx.FindLinkType(ctx, in.LinkTypeID)
		if err != nil {
			return fmt.Errorf("finding link type: %w", err)
		}
		if lt == nil {
			return notFound("link type", in.LinkTypeID)
		}

		existing, err := tx.FindLinkByEndpoints(ctx, src.ID, tgt.ID, lt.ID)
		if err != nil {
			return fmt.Errorf("checking for existing link: %w", err)
		}
		if existing != nil {
			return conflictf("a %q link from %s to %s already exists", lt.Name, src.ID, tgt.ID)
		}

		now := s.clock.Now()
		link = &Link{
			ID:                s.idgen.New(),
			SourceObjectID:    src.ID,
			TargetObjectID:    tgt.ID,
			LinkTypeID:        lt.ID,
			Attributes:        attrs,
			Suspect:           false,
			SourceFingerprint: src.ContentFingerprint,
			TargetFingerprint: tgt.ContentFingerprint,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.InsertLink(ctx, link); err != nil {
			return fmt.Errorf("inserting link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("link created", "link", link.ID, "source", link.SourceObjectID, "target", link.TargetObjectID)
	return link, nil
}

// ResolveLink re-captures both endpoint fingerprints and clears suspect.
func (s *Service) ResolveLink(ctx context.Context, id string) (*Link, error) {
	var link *Link
	err := s.database.Update(ctx, func(tx Tx) error {
		var err error
		link, err = mustLink(ctx, tx, id)
		if err != nil {
			return err
		}
		src, err := mustObject(ctx, tx, link.SourceObjectID)
		if err != nil {
			return err
		}
		tgt, err := mustObject(ctx, tx, link.TargetObjectID)
		if err != nil {
			return err
		}

		link.SourceFingerprint = src.ContentFingerprint
		link.TargetFingerprint = tgt.ContentFingerprint
		link.Suspect = false
		link.UpdatedAt = s.clock.Now()
		if err := tx.UpdateLinkFingerprints(ctx, link); err != nil {
			return fmt.Errorf("resolving link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("link resolved", "link", link.ID)
	return link, nil
}

// DeleteLink removes a link.
func (s *Service) DeleteLink(ctx context.Context, id string) error {
	err := s.database.Update(ctx, func(tx Tx) error {
		if _, err := mustLink(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.DeleteLink(ctx, id); err != nil {
			return fmt.Errorf("deleting link: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("link deleted", "link", id)
	return nil
}

// GetLink returns a link by id.
func (s *Service) GetLink(ctx context.Context, id string) (*Link, error) {
	var link *Link
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		link, err = mustLink(ctx, tx, id)
		return err
	})
	return link, err
}

// ListLinks returns links matching the filter in creation order.
func (s *Service) ListLinks(ctx context.Context, filter LinkFilter) ([]*Link, error) {
	var links []*Link
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		links, err = tx.ListLinks(ctx, filter)
		if err != nil {
			return fmt.Errorf("listing links: %w", err)
		}
		return nil
	})
	return links, err
}

// refreshSuspect re-derives suspect on every link touching obj. It must run
// inside the transaction that changed obj's fingerprint.
func (s *Service) refreshSuspect(ctx context.Context, tx Tx, obj *Object) error {
	from, err := tx.ListLinksFrom(ctx, obj.ID)
	if err != nil {
		return fmt.Errorf("listing outgoing links: %w", err)
	}
	to, err := tx.ListLinksTo(ctx, obj.ID)
	if err != nil {
		return fmt.Errorf("listing incoming links: %w", err)
	}

	fingerprints := map[string]string{obj.ID: obj.ContentFingerprint}
	fingerprintOf := func(id string) (string, error) {
		if fp, ok := fingerprints[id]; ok {
			return fp, nil
		}
		o, err := mustObject(ctx, tx, id)
		if err != nil {
			return "", err
		}
		fingerprints[id] = o.ContentFingerprint
		return o.ContentFingerprint, nil
	}

	now := s.clock.Now()
	for _, l := range append(from, to...) {
		srcFP, err := fingerprintOf(l.SourceObjectID)
		if err != nil {
			return err
		}
		tgtFP, err := fingerprintOf(l.TargetObjectID)
		if err != nil {
			return err
		}
		suspect := l.SourceFingerprint != srcFP || l.TargetFingerprint != tgtFP
		if suspect == l.Suspect {
			continue
		}
		if err := tx.UpdateLinkSuspect(ctx, l.ID, suspect, now); err != nil {
			return fmt.Errorf("updating suspect flag on %s: %w", l.ID, err)
		}
		if suspect {
			s.logger.Debug("link suspect", "link", l.ID, "object", obj.ID)
		}
	}
	return nil
}

func mustLink(ctx context.Context, tx Tx, id string) (*Link, error) {
	l, err := tx.FindLink(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding link: %w", err)
	}
	if l == nil {
		return nil, notFound("link", id)
	}
	return l, nil
}
