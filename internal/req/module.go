package req

import (
	"context"
	"fmt"
	"strings"
)

// CreateModuleInput holds the fields of a new module.
type CreateModuleInput struct {
	Name                  string         `validate:"required,max=200"`
	Description           string         `validate:"max=4000"`
	RequiredAttributes    []string       `validate:"dive,required"`
	DefaultClassification Classification `validate:"classification"`
}

// CreateModule registers a new module.
func (s *Service) CreateModule(ctx context.Context, in CreateModuleInput) (*Module, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.DefaultClassification == "" {
		in.DefaultClassification = ClassificationNormative
	}
	required := in.RequiredAttributes
	if required == nil {
		required = []string{}
	}

	now := s.clock.Now()
	m := &Module{
		ID:                    s.idgen.New(),
		Name:                  in.Name,
		Description:           in.Description,
		RequiredAttributes:    required,
		DefaultClassification: in.DefaultClassification,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	err := s.database.Update(ctx, func(tx Tx) error {
		existing, err := tx.FindModuleByName(ctx, m.Name)
		if err != nil {
			return fmt.Errorf("checking for existing module: %w", err)
		}
		if existing != nil {
			return conflictf("module %q already exists", m.Name)
		}
		if err := tx.InsertModule(ctx, m); err != nil {
			return fmt.Errorf("inserting module: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("module created", "module", m.ID, "name", m.Name)
	return m, nil
}

// GetModule returns a module by id.
func (s *Service) GetModule(ctx context.Context, id string) (*Module, error) {
	var m *Module
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		m, err = mustModule(ctx, tx, id)
		return err
	})
	return m, err
}

// FindModuleByName returns a module by its unique name.
func (s *Service) FindModuleByName(ctx context.Context, name string) (*Module, error) {
	var m *Module
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		m, err = tx.FindModuleByName(ctx, name)
		if err != nil {
			return fmt.Errorf("finding module: %w", err)
		}
		if m == nil {
			return notFound("module", name)
		}
		return nil
	})
	return m, err
}

// ListModules returns all modules ordered by name.
func (s *Service) ListModules(ctx context.Context) ([]*Module, error) {
	var modules []*Module
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		modules, err = tx.ListModules(ctx)
		if err != nil {
			return fmt.Errorf("listing modules: %w", err)
		}
		return nil
	})
	return modules, err
}

// CreateLinkType registers a named link type.
func (s *Service) CreateLinkType(ctx context.Context, name, description string) (*LinkType, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("name", "is required")
	}

	lt := &LinkType{
		ID:          s.idgen.New(),
		Name:        name,
		Description: description,
		CreatedAt:   s.clock.Now(),
	}
	err := s.database.Update(ctx, func(tx Tx) error {
		existing, err := tx.FindLinkTypeByName(ctx, name)
		if err != nil {
			return fmt.Errorf("checking for existing link type: %w", err)
		}
		if existing != nil {
			return conflictf("link type %q already exists", name)
		}
		if err := tx.InsertLinkType(ctx, lt); err != nil {
			return fmt.Errorf("inserting link type: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lt, nil
}

// ListLinkTypes returns all link types ordered by name.
func (s *Service) ListLinkTypes(ctx context.Context) ([]*LinkType, error) {
	var types []*LinkType
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		types, err = tx.ListLinkTypes(ctx)
		if err != nil {
			return fmt.Errorf("listing link types: %w", err)
		}
		return nil
	})
	return types, err
}

func mustModule(ctx context.Context, tx Tx, id string) (*Module, error) {
	m, err := tx.FindModule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding module: %w", err)
	}
	if m == nil {
		return nil, notFound("module", id)
	}
	return m, nil
}

func mustObject(ctx context.Context, tx Tx, id string) (*Object, error) {
	o, err := tx.FindObject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding object: %w", err)
	}
	if o == nil {
		return nil, notFound("object", id)
	}
	return o, nil
}

func mustLiveObject(ctx context.Context, tx Tx, id string) (*Object, error) {
	o, err := mustObject(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if o.Deleted() {
		return nil, notFound("object", id)
	}
	return o, nil
}
