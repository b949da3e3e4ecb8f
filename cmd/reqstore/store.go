package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reqstore/internal/req"
)

// module command
var moduleCmd = &cobra.Command{
	Use:   "module",
	Short: "Manage modules",
}

var moduleCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		required, _ := cmd.Flags().GetStringSlice("required")
		class, _ := cmd.Flags().GetString("classification")

		a, ctx, err := newApp(cmd, "CreateModule")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		var m *req.Module
		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			m, err = svc.CreateModule(ctx, req.CreateModuleInput{
				Name:                  args[0],
				Description:           description,
				RequiredAttributes:    required,
				DefaultClassification: req.Classification(class),
			})
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created module %s (%s)\n", m.Name, faint(m.ID))
		return nil
	},
}

var moduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "ListModules")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		modules, err := a.Service().ListModules(ctx)
		if err != nil {
			return err
		}
		if len(modules) == 0 {
			fmt.Println("No modules.")
			return nil
		}
		for _, m := range modules {
			required := ""
			if len(m.RequiredAttributes) > 0 {
				required = "  requires " + strings.Join(m.RequiredAttributes, ",")
			}
			fmt.Printf("%-20s %s%s\n", m.Name, faint(m.ID), required)
		}
		return nil
	},
}

// linktype command
var linkTypeCmd = &cobra.Command{
	Use:   "linktype",
	Short: "Manage link types",
}

var linkTypeCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a link type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		a, ctx, err := newApp(cmd, "CreateLinkType")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		var lt *req.LinkType
		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			lt, err = svc.CreateLinkType(ctx, args[0], description)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created link type %s (%s)\n", lt.Name, faint(lt.ID))
		return nil
	},
}

var linkTypeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List link types",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "ListLinkTypes")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		types, err := a.Service().ListLinkTypes(ctx)
		if err != nil {
			return err
		}
		for _, lt := range types {
			fmt.Printf("%-20s %s  %s\n", lt.Name, faint(lt.ID), lt.Description)
		}
		return nil
	},
}

// object command
var objectCmd = &cobra.Command{
	Use:   "object",
	Short: "Manage requirement objects",
}

var objectCreateCmd = &cobra.Command{
	Use:   "create MODULE HEADING",
	Short: "Create an object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		pairs, _ := flags.GetStringArray("attr")
		attrs, err := parseAttributes(pairs)
		if err != nil {
			return err
		}
		body, _ := flags.GetString("body")
		parent, _ := flags.GetString("parent")
		class, _ := flags.GetString("classification")
		reviewed, _ := flags.GetBool("reviewed")
		in := req.CreateObjectInput{
			Heading:        args[1],
			Body:           stringPtr(flags.Changed("body"), body),
			ParentID:       stringPtr(parent != "", parent),
			Attributes:     attrs,
			Classification: req.Classification(class),
			Reviewed:       reviewed,
		}
		if flags.Changed("position") {
			p, _ := flags.GetFloat64("position")
			in.Position = req.Float64Ptr(p)
		}

		a, ctx, err := newApp(cmd, "CreateObject")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		m, err := a.ResolveModule(ctx, args[0])
		if err != nil {
			return err
		}
		in.ModuleID = m.ID

		var o *req.Object
		err = a.Mutate(ctx, m.Name+" "+args[1], func(ctx context.Context, svc *req.Service) error {
			o, err = svc.CreateObject(ctx, in)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Println(formatObject(o))
		return nil
	},
}

var objectUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Update an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		pairs, _ := flags.GetStringArray("attr")
		attrs, err := parseAttributes(pairs)
		if err != nil {
			return err
		}
		heading, _ := flags.GetString("heading")
		body, _ := flags.GetString("body")
		parent, _ := flags.GetString("parent")
		class, _ := flags.GetString("classification")
		clearBody, _ := flags.GetBool("clear-body")
		toRoot, _ := flags.GetBool("root")

		in := req.UpdateObjectInput{
			Heading:    stringPtr(flags.Changed("heading"), heading),
			Body:       stringPtr(flags.Changed("body"), body),
			ClearBody:  clearBody,
			Attributes: attrs,
			ParentID:   stringPtr(parent != "", parent),
			MoveToRoot: toRoot,
		}
		if flags.Changed("classification") {
			c := req.Classification(class)
			in.Classification = &c
		}
		if flags.Changed("position") {
			p, _ := flags.GetFloat64("position")
			in.Position = req.Float64Ptr(p)
		}
		if flags.Changed("reviewed") {
			r, _ := flags.GetBool("reviewed")
			in.Reviewed = &r
		}
		if flags.Changed("expect-version") {
			v, _ := flags.GetInt64("expect-version")
			in.ExpectedVersion = &v
		}

		a, ctx, err := newApp(cmd, "UpdateObject")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		var o *req.Object
		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			o, err = svc.UpdateObject(ctx, args[0], in)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s  v%d\n", formatObject(o), o.CurrentVersion)
		return nil
	},
}

var objectDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete an object and its descendants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "DeleteObject")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			return svc.DeleteObject(ctx, args[0])
		})
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var objectShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "GetObject")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		o, err := a.Service().GetObject(ctx, args[0])
		if err != nil {
			return err
		}
		return printYAML(o)
	},
}

var objectListCmd = &cobra.Command{
	Use:   "list MODULE",
	Short: "List a module's objects in document order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var filter req.ObjectFilter
		filter.IncludeDeleted, _ = flags.GetBool("deleted")
		filter.NeedsReview, _ = flags.GetBool("needs-review")
		filter.Search, _ = flags.GetString("search")
		class, _ := flags.GetString("classification")
		filter.Classification = req.Classification(class)

		a, ctx, err := newApp(cmd, "ListObjects")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		m, err := a.ResolveModule(ctx, args[0])
		if err != nil {
			return err
		}
		objects, err := a.Service().ListObjects(ctx, m.ID, filter)
		if err != nil {
			return err
		}
		if len(objects) == 0 {
			fmt.Println("No objects.")
			return nil
		}
		for _, o := range objects {
			indent := strings.Repeat("  ", strings.Count(o.Level, "."))
			fmt.Println(indent + formatObject(o))
		}
		return nil
	},
}

var objectHistoryCmd = &cobra.Command{
	Use:   "history ID",
	Short: "Show every recorded version of an object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "GetObjectHistory")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		history, err := a.Service().GetObjectHistory(ctx, args[0])
		if err != nil {
			return err
		}
		for _, h := range history {
			fmt.Printf("v%-3d %-7s %s  %-12s %s\n",
				h.Version, h.ChangeType, h.ChangedAt.Format("2006-01-02 15:04:05"), h.ChangedBy, h.Heading)
		}
		return nil
	},
}

// link command
var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Manage traceability links",
}

var linkCreateCmd = &cobra.Command{
	Use:   "create SOURCE TARGET TYPE",
	Short: "Link two objects",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("attr")
		attrs, err := parseAttributes(pairs)
		if err != nil {
			return err
		}

		a, ctx, err := newApp(cmd, "CreateLink")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		typeID, err := a.ResolveLinkType(ctx, args[2])
		if err != nil {
			return err
		}

		var l *req.Link
		err = a.Mutate(ctx, strings.Join(args, " "), func(ctx context.Context, svc *req.Service) error {
			l, err = svc.CreateLink(ctx, req.CreateLinkInput{
				SourceObjectID: args[0],
				TargetObjectID: args[1],
				LinkTypeID:     typeID,
				Attributes:     attrs,
			})
			return err
		})
		if err != nil {
			return err
		}
		fmt.Println(formatLink(l, args[2]))
		return nil
	},
}

var linkDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "DeleteLink")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			return svc.DeleteLink(ctx, args[0])
		})
		if err != nil {
			return err
		}
		fmt.Printf("Deleted link %s\n", args[0])
		return nil
	},
}

var linkResolveCmd = &cobra.Command{
	Use:   "resolve ID",
	Short: "Clear a suspect flag after review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "ResolveLink")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		var l *req.Link
		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			l, err = svc.ResolveLink(ctx, args[0])
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Resolved link %s\n", l.ID)
		return nil
	},
}

var linkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List links",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var filter req.LinkFilter
		filter.ObjectID, _ = flags.GetString("object")
		filter.SuspectOnly, _ = flags.GetBool("suspect")
		moduleRef, _ := flags.GetString("module")
		typeRef, _ := flags.GetString("type")

		a, ctx, err := newApp(cmd, "ListLinks")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		if moduleRef != "" {
			m, err := a.ResolveModule(ctx, moduleRef)
			if err != nil {
				return err
			}
			filter.ModuleID = m.ID
		}
		if filter.LinkTypeID, err = a.ResolveLinkType(ctx, typeRef); err != nil {
			return err
		}

		links, err := a.Service().ListLinks(ctx, filter)
		if err != nil {
			return err
		}
		types, err := a.Service().ListLinkTypes(ctx)
		if err != nil {
			return err
		}
		names := make(map[string]string, len(types))
		for _, lt := range types {
			names[lt.ID] = lt.Name
		}
		if len(links) == 0 {
			fmt.Println("No links.")
			return nil
		}
		for _, l := range links {
			fmt.Println(formatLink(l, names[l.LinkTypeID]))
		}
		return nil
	},
}

func init() {
	moduleCmd.AddCommand(moduleCreateCmd, moduleListCmd)
	moduleCreateCmd.Flags().String("description", "", "Module description")
	moduleCreateCmd.Flags().StringSlice("required", nil, "Attributes every object must carry")
	moduleCreateCmd.Flags().String("classification", "", "Default classification of new objects")

	linkTypeCmd.AddCommand(linkTypeCreateCmd, linkTypeListCmd)
	linkTypeCreateCmd.Flags().String("description", "", "Link type description")

	objectCmd.AddCommand(objectCreateCmd, objectUpdateCmd, objectDeleteCmd, objectShowCmd, objectListCmd, objectHistoryCmd)
	for _, c := range []*cobra.Command{objectCreateCmd, objectUpdateCmd} {
		c.Flags().String("body", "", "Body text")
		c.Flags().String("parent", "", "Parent object id")
		c.Flags().Float64("position", 0, "Position among siblings")
		c.Flags().StringArray("attr", nil, "Attribute as key=value (repeatable)")
		c.Flags().String("classification", "", "normative, informative or heading")
		c.Flags().Bool("reviewed", false, "Mark the content as reviewed")
	}
	objectUpdateCmd.Flags().String("heading", "", "New heading")
	objectUpdateCmd.Flags().Bool("clear-body", false, "Remove the body")
	objectUpdateCmd.Flags().Bool("root", false, "Move the object to the top level")
	objectUpdateCmd.Flags().Int64("expect-version", 0, "Fail unless the object is at this version")
	objectListCmd.Flags().Bool("deleted", false, "Include deleted objects")
	objectListCmd.Flags().Bool("needs-review", false, "Only objects whose content is not reviewed")
	objectListCmd.Flags().String("search", "", "Filter by heading or body substring")
	objectListCmd.Flags().String("classification", "", "Filter by classification")

	linkCmd.AddCommand(linkCreateCmd, linkDeleteCmd, linkResolveCmd, linkListCmd)
	linkCreateCmd.Flags().StringArray("attr", nil, "Attribute as key=value (repeatable)")
	linkListCmd.Flags().String("module", "", "Links touching a module")
	linkListCmd.Flags().String("object", "", "Links touching an object")
	linkListCmd.Flags().String("type", "", "Link type name or id")
	linkListCmd.Flags().Bool("suspect", false, "Only suspect links")

	rootCmd.AddCommand(moduleCmd, linkTypeCmd, objectCmd, linkCmd)
}
