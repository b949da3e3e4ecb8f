package req

import (
	"time"
)

// Classification is the normative status of an object.
type Classification string

const (
	ClassificationNormative   Classification = "normative"
	ClassificationInformative Classification = "informative"
	ClassificationHeading     Classification = "heading"
)

// Valid reports whether c is one of the known classifications.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationNormative, ClassificationInformative, ClassificationHeading:
		return true
	}
	return false
}

// ChangeType records what kind of mutation produced a history row.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// Attributes is a JSON object of named values attached to an object or link.
type Attributes map[string]any

// Module groups objects and scripts. RequiredAttributes names attributes
// every object in the module must carry with a non-null value.
type Module struct {
	ID                    string         `json:"id"`
	Name                  string         `json:"name"`
	Description           string         `json:"description"`
	RequiredAttributes    []string       `json:"required_attributes"`
	DefaultClassification Classification `json:"default_classification"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// Object is one requirement item. Level is derived from the hierarchy and
// ContentFingerprint always matches the current content fields.
type Object struct {
	ID                  string         `json:"id"`
	ModuleID            string         `json:"module_id"`
	ParentID            *string        `json:"parent_id"`
	Position            float64        `json:"position"`
	Level               string         `json:"level"`
	Heading             string         `json:"heading"`
	Body                *string        `json:"body"`
	Attributes          Attributes     `json:"attributes"`
	Classification      Classification `json:"classification"`
	ContentFingerprint  string         `json:"content_fingerprint"`
	ReviewedFingerprint *string        `json:"reviewed_fingerprint"`
	CurrentVersion      int64          `json:"current_version"`
	ObjectTypeID        *string        `json:"object_type_id"`
	DeletedAt           *time.Time     `json:"deleted_at"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Reviewed reports whether the current content has been signed off.
func (o *Object) Reviewed() bool {
	return o.ReviewedFingerprint != nil && *o.ReviewedFingerprint == o.ContentFingerprint
}

// Deleted reports whether the object carries a soft-delete tombstone.
func (o *Object) Deleted() bool {
	return o.DeletedAt != nil
}

// Clone returns a copy that shares no mutable state with o.
func (o *Object) Clone() *Object {
	c := *o
	c.ParentID = cloneString(o.ParentID)
	c.Body = cloneString(o.Body)
	c.ReviewedFingerprint = cloneString(o.ReviewedFingerprint)
	c.ObjectTypeID = cloneString(o.ObjectTypeID)
	if o.DeletedAt != nil {
		t := *o.DeletedAt
		c.DeletedAt = &t
	}
	c.Attributes = cloneAttributes(o.Attributes)
	return &c
}

// ObjectHistory is an append-only record of one object version.
type ObjectHistory struct {
	ID             int64          `json:"id"`
	ObjectID       string         `json:"object_id"`
	ModuleID       string         `json:"module_id"`
	Version        int64          `json:"version"`
	Heading        string         `json:"heading"`
	Body           *string        `json:"body"`
	Attributes     Attributes     `json:"attributes"`
	Classification Classification `json:"classification"`
	ChangeType     ChangeType     `json:"change_type"`
	ChangedBy      string         `json:"changed_by"`
	ChangedAt      time.Time      `json:"changed_at"`
}

// LinkType names a kind of traceability relation (e.g. "satisfies").
type LinkType struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Link is a directed traceability relation. Suspect is true iff either
// stored endpoint fingerprint differs from that endpoint's current one.
type Link struct {
	ID                string     `json:"id"`
	SourceObjectID    string     `json:"source_object_id"`
	TargetObjectID    string     `json:"target_object_id"`
	LinkTypeID        string     `json:"link_type_id"`
	Attributes        Attributes `json:"attributes"`
	Suspect           bool       `json:"suspect"`
	SourceFingerprint string     `json:"source_fingerprint"`
	TargetFingerprint string     `json:"target_fingerprint"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Baseline is a locked snapshot of object versions in one module.
type Baseline struct {
	ID            string          `json:"id"`
	ModuleID      string          `json:"module_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	BaselineSetID *string         `json:"baseline_set_id"`
	Locked        bool            `json:"locked"`
	CreatedAt     time.Time       `json:"created_at"`
	Entries       []BaselineEntry `json:"entries,omitempty"`
}

// BaselineEntry pins one object to the version it had when the baseline was taken.
type BaselineEntry struct {
	BaselineID string `json:"baseline_id"`
	ObjectID   string `json:"object_id"`
	Version    int64  `json:"version"`
	Ordinal    int    `json:"ordinal"`
}

// BaselineSet groups baselines of several modules under one release label.
type BaselineSet struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"created_at"`
	Baselines   []*Baseline `json:"baselines,omitempty"`
}

// BaselineArchive records a published baseline document stored in a vault.
type BaselineArchive struct {
	ID         string    `json:"id"`
	BaselineID string    `json:"baseline_id"`
	Checksum   string    `json:"checksum"`
	Vault      string    `json:"vault"`
	Encrypted  bool      `json:"encrypted"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// Operation is an audit row for one CLI invocation that mutated the store.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneAttributes(a Attributes) Attributes {
	if a == nil {
		return Attributes{}
	}
	c := make(Attributes, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }
