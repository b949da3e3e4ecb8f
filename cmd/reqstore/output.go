package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"reqstore/internal/req"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	warning = color.New(color.FgYellow).SprintFunc()
	failure = color.New(color.FgRed).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	added   = color.New(color.FgGreen, color.Underline).SprintFunc()
	removed = color.New(color.FgRed, color.CrossedOut).SprintFunc()
)

func errorf(format string, args ...any) string {
	return failure(fmt.Sprintf(format, args...))
}

// readPassphrase prompts on the terminal without echo. Piped input is read
// as a single line so scripts can supply the passphrase.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// readNewPassphrase asks twice and requires both entries to match.
func readNewPassphrase() (string, error) {
	first, err := readPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return first, nil
	}
	second, err := readPassphrase("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

// parseAttributes turns key=value pairs into attributes. Values are read as
// YAML scalars or flow collections, so 3, true, null and [a, b] keep their
// types while anything else stays a string.
func parseAttributes(pairs []string) (req.Attributes, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(req.Attributes, len(pairs))
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("attribute %q: want key=value", p)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		attrs[key] = v
	}
	return attrs, nil
}

// printYAML writes v to stdout as YAML.
func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return enc.Close()
}

// renderSegments shows a word diff inline with additions and removals marked.
func renderSegments(segs []req.Segment) string {
	var b strings.Builder
	for _, s := range segs {
		switch s.Type {
		case req.SegmentAdded:
			b.WriteString(added("{+" + s.Text + "+}"))
		case req.SegmentRemoved:
			b.WriteString(removed("[-" + s.Text + "-]"))
		default:
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// formatIssue renders one validation issue, coloured by severity.
func formatIssue(i req.ValidationIssue) string {
	subject := i.ObjectID
	if i.LinkID != "" {
		subject = i.LinkID
	}
	sev := string(i.Severity)
	switch i.Severity {
	case req.SeverityError:
		sev = failure(sev)
	case req.SeverityWarning:
		sev = warning(sev)
	default:
		sev = faint(sev)
	}
	return fmt.Sprintf("%-7s %-28s %s  %s", sev, i.Rule, i.Message, faint(subject))
}

func formatObject(o *req.Object) string {
	mark := ""
	switch {
	case o.Deleted():
		mark = failure(" [deleted]")
	case !o.Reviewed():
		mark = warning(" [needs review]")
	}
	return fmt.Sprintf("%-8s %s  %s%s", o.Level, o.Heading, faint(o.ID), mark)
}

func formatLink(l *req.Link, typeName string) string {
	mark := ""
	if l.Suspect {
		mark = warning(" [suspect]")
	}
	return fmt.Sprintf("%s  %s -%s-> %s%s", faint(l.ID), l.SourceObjectID, typeName, l.TargetObjectID, mark)
}

func formatOperation(op *req.Operation) string {
	duration := ""
	if op.FinishedAt != nil {
		duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
	}
	status := op.Status
	switch status {
	case "success":
		status = success(status)
	case "error":
		status = failure(status)
	}
	return fmt.Sprintf("#%d  %-15s  %s  %-10s  %s  %s",
		op.ID,
		op.Operation,
		op.StartedAt.Format("2006-01-02 15:04:05"),
		status,
		duration,
		faint(op.Parameters),
	)
}

func stringPtr(cmdChanged bool, v string) *string {
	if !cmdChanged {
		return nil
	}
	return &v
}
