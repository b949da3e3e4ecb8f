package req

import (
	"context"
	"fmt"
	"strings"
)

// Severity ranks a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rule names reported by ValidateModule. Validate triggers report as
// "script:<name>".
const (
	RuleMissingHeading           = "missing_heading"
	RuleMissingBody              = "missing_body"
	RuleUnreviewed               = "unreviewed"
	RuleOrphanObject             = "orphan_object"
	RuleSuspectLink              = "suspect_link"
	RuleDanglingLink             = "dangling_link"
	RuleMissingRequiredAttribute = "missing_required_attribute"
)

// ValidationIssue is one finding about an object or a link.
type ValidationIssue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	ObjectID string   `json:"object_id,omitempty"`
	LinkID   string   `json:"link_id,omitempty"`
	Message  string   `json:"message"`
}

// ValidationReport lists every issue found in one module. Objects are the
// module's live objects; links are those touching at least one of them.
type ValidationReport struct {
	ModuleID    string            `json:"module_id"`
	ObjectCount int               `json:"object_count"`
	LinkCount   int               `json:"link_count"`
	Issues      []ValidationIssue `json:"issues"`
}

// Count returns the number of issues with severity sev.
func (r *ValidationReport) Count(sev Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == sev {
			n++
		}
	}
	return n
}

// ValidateModule checks a module's content and traceability without
// changing anything. Objects are visited in level order, then links in
// creation order, then enabled validate triggers run once per object.
func (s *Service) ValidateModule(ctx context.Context, moduleID string) (*ValidationReport, error) {
	var (
		module   *Module
		links    []*Link
		live     map[string]*Object
		triggers []*Script
		snap     *Snapshot
	)
	err := s.database.View(ctx, func(tx Tx) error {
		var err error
		if module, err = mustModule(ctx, tx, moduleID); err != nil {
			return err
		}
		if snap, err = s.loadSnapshot(ctx, tx, moduleID); err != nil {
			return err
		}
		if links, err = tx.ListLinks(ctx, LinkFilter{ModuleID: moduleID}); err != nil {
			return fmt.Errorf("listing links: %w", err)
		}
		// Endpoints outside the module resolve through the snapshot; only
		// deleted or missing ones need a lookup to confirm.
		live = make(map[string]*Object)
		for _, l := range links {
			for _, id := range []string{l.SourceObjectID, l.TargetObjectID} {
				if _, seen := live[id]; seen {
					continue
				}
				o := snap.Object(id)
				if o == nil {
					if o, err = tx.FindObject(ctx, id); err != nil {
						return fmt.Errorf("finding link endpoint: %w", err)
					}
					if o != nil && o.Deleted() {
						o = nil
					}
				}
				live[id] = o
			}
		}
		if triggers, err = tx.ListTriggers(ctx, moduleID, HookValidate); err != nil {
			return fmt.Errorf("listing validate triggers: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	objects := snap.Objects()
	inModule := make(map[string]bool, len(objects))
	for _, o := range objects {
		inModule[o.ID] = true
	}

	report := &ValidationReport{ModuleID: module.ID, ObjectCount: len(objects), Issues: []ValidationIssue{}}
	for _, o := range objects {
		report.Issues = append(report.Issues, checkObject(module, o, inModule)...)
	}
	for _, l := range links {
		if !inModule[l.SourceObjectID] && !inModule[l.TargetObjectID] {
			continue
		}
		report.LinkCount++
		report.Issues = append(report.Issues, checkLink(l, live)...)
	}

	for _, o := range objects {
		for _, script := range triggers {
			issue, err := s.runValidateTrigger(ctx, script, module, o, snap)
			if err != nil {
				return nil, err
			}
			if issue != nil {
				report.Issues = append(report.Issues, *issue)
			}
		}
	}

	s.logger.Info("module validated", "module", module.ID, "objects", report.ObjectCount,
		"errors", report.Count(SeverityError), "warnings", report.Count(SeverityWarning))
	return report, nil
}

func checkObject(module *Module, o *Object, inModule map[string]bool) []ValidationIssue {
	var issues []ValidationIssue
	add := func(rule string, sev Severity, format string, args ...any) {
		issues = append(issues, ValidationIssue{
			Rule:     rule,
			Severity: sev,
			ObjectID: o.ID,
			Message:  fmt.Sprintf("[%s] %s: ", o.Level, displayHeading(o)) + fmt.Sprintf(format, args...),
		})
	}

	if o.Classification != ClassificationHeading && strings.TrimSpace(o.Heading) == "" {
		add(RuleMissingHeading, SeverityWarning, "object has no heading")
	}
	if o.Classification == ClassificationNormative && (o.Body == nil || strings.TrimSpace(*o.Body) == "") {
		add(RuleMissingBody, SeverityWarning, "normative object has no body")
	}
	if !o.Reviewed() {
		add(RuleUnreviewed, SeverityInfo, "needs review")
	}
	if o.ParentID != nil && !inModule[*o.ParentID] {
		add(RuleOrphanObject, SeverityError, "parent %s not found in module", *o.ParentID)
	}
	for _, name := range module.RequiredAttributes {
		if v, ok := o.Attributes[name]; !ok || v == nil {
			add(RuleMissingRequiredAttribute, SeverityError, "missing required attribute %q", name)
		}
	}
	return issues
}

// checkLink reports a deleted or missing endpoint as dangling. Suspect is
// only reported for links whose endpoints are both live.
func checkLink(l *Link, live map[string]*Object) []ValidationIssue {
	var issues []ValidationIssue
	dangling := false
	for _, end := range []struct{ role, id string }{{"source", l.SourceObjectID}, {"target", l.TargetObjectID}} {
		if live[end.id] == nil {
			dangling = true
			issues = append(issues, ValidationIssue{
				Rule:     RuleDanglingLink,
				Severity: SeverityError,
				LinkID:   l.ID,
				Message:  fmt.Sprintf("link %s %s is deleted or missing", end.role, end.id),
			})
		}
	}
	if l.Suspect && !dangling {
		issues = append(issues, ValidationIssue{
			Rule:     RuleSuspectLink,
			Severity: SeverityWarning,
			LinkID:   l.ID,
			Message:  fmt.Sprintf("link %s -> %s is suspect", l.SourceObjectID, l.TargetObjectID),
		})
	}
	return issues
}

// runValidateTrigger returns an issue when script rejects o or fails on it.
// Staged set calls are discarded. Only cancellation of ctx is an error.
func (s *Service) runValidateTrigger(ctx context.Context, script *Script, module *Module, o *Object, snap *Snapshot) (*ValidationIssue, error) {
	res, err := s.engine.Run(ctx, &Invocation{
		Script:    script,
		Hook:      HookValidate,
		Operation: "validate",
		Module:    module,
		Object:    o.Clone(),
		Snapshot:  snap,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	issue := &ValidationIssue{
		Rule:     "script:" + script.Name,
		Severity: SeverityError,
		ObjectID: o.ID,
	}
	switch {
	case err != nil:
		issue.Message = fmt.Sprintf("[%s] script %q error: %v", o.Level, script.Name, err)
		return issue, nil
	case res.Rejected:
		s.logScriptResult(script, o.ID, res)
		issue.Message = fmt.Sprintf("[%s] %s: %s", o.Level, displayHeading(o), res.Reason)
		return issue, nil
	}
	s.logScriptResult(script, o.ID, res)
	return nil, nil
}

func displayHeading(o *Object) string {
	if strings.TrimSpace(o.Heading) == "" {
		return "(no heading)"
	}
	return o.Heading
}
