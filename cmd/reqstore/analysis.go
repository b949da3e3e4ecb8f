package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reqstore/internal/req"
)

var impactCmd = &cobra.Command{
	Use:   "impact OBJECT",
	Short: "List the objects reachable from an object over links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		direction, _ := cmd.Flags().GetString("direction")
		depth, _ := cmd.Flags().GetInt("depth")

		a, ctx, err := newApp(cmd, "AnalyzeImpact")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		result, err := a.Service().AnalyzeImpact(ctx, args[0], req.Direction(direction), depth)
		if err != nil {
			return err
		}
		if len(result.Objects) == 0 {
			fmt.Println("Nothing is affected.")
			return nil
		}
		suspect := make(map[string]bool)
		for _, e := range result.Edges {
			if e.Suspect {
				suspect[e.SourceID] = true
				suspect[e.TargetID] = true
			}
		}
		for _, n := range result.Objects {
			mark := ""
			if suspect[n.ID] {
				mark = warning(" [suspect]")
			}
			fmt.Printf("%d  %-8s %s  %s via %s%s\n", n.Depth, n.Level, n.Heading, faint(n.ID), n.LinkType, mark)
		}
		fmt.Printf("%d objects, %d links, depth %d %s\n", len(result.Objects), len(result.Edges), result.MaxDepth, result.Direction)
		return nil
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace SOURCE_MODULE TARGET_MODULE",
	Short: "Show the traceability matrix between two modules",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeRef, _ := cmd.Flags().GetString("type")

		a, ctx, err := newApp(cmd, "TraceabilityMatrix")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		src, err := a.ResolveModule(ctx, args[0])
		if err != nil {
			return err
		}
		tgt, err := a.ResolveModule(ctx, args[1])
		if err != nil {
			return err
		}
		typeID, err := a.ResolveLinkType(ctx, typeRef)
		if err != nil {
			return err
		}

		matrix, err := a.Service().TraceabilityMatrix(ctx, src.ID, tgt.ID, typeID)
		if err != nil {
			return err
		}
		for _, row := range matrix.Rows {
			fmt.Printf("%-8s %s\n", row.SourceLevel, row.SourceHeading)
			if len(row.Cells) == 0 {
				fmt.Printf("         %s\n", failure("(untraced)"))
			}
			for _, c := range row.Cells {
				mark := ""
				if c.Suspect {
					mark = warning(" [suspect]")
				}
				fmt.Printf("         -> %-8s %s%s\n", c.TargetLevel, c.TargetHeading, mark)
			}
		}
		return nil
	},
}

var coverageCmd = &cobra.Command{
	Use:   "coverage MODULE",
	Short: "Report how many of a module's objects are linked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "Coverage")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		m, err := a.ResolveModule(ctx, args[0])
		if err != nil {
			return err
		}
		c, err := a.Service().Coverage(ctx, m.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d objects\n", m.Name, c.Total)
		fmt.Printf("  upstream    %4d  %5.1f%%\n", c.WithUpstream, c.UpstreamPercent)
		fmt.Printf("  downstream  %4d  %5.1f%%\n", c.WithDownstream, c.DownstreamPercent)
		fmt.Printf("  any link    %4d  %5.1f%%\n", c.WithAnyLink, c.AnyLinkPercent)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate MODULE",
	Short: "Check a module's objects, links and validate triggers",
	Long: `Check a module's objects, links and validate triggers.

Exits non-zero when any error-severity issue is found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")

		a, ctx, err := newApp(cmd, "ValidateModule")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		m, err := a.ResolveModule(ctx, args[0])
		if err != nil {
			return err
		}
		report, err := a.Service().ValidateModule(ctx, m.ID)
		if err != nil {
			return err
		}

		if asYAML {
			if err := printYAML(report); err != nil {
				return err
			}
		} else {
			for _, i := range report.Issues {
				fmt.Println(formatIssue(i))
			}
			fmt.Printf("%s: %d objects, %d links, %d errors, %d warnings\n", m.Name, report.ObjectCount, report.LinkCount,
				report.Count(req.SeverityError), report.Count(req.SeverityWarning))
		}
		if n := report.Count(req.SeverityError); n > 0 {
			return fmt.Errorf("module %s has %d validation errors", m.Name, n)
		}
		return nil
	},
}

func init() {
	impactCmd.Flags().String("direction", "forward", "forward, backward or both")
	impactCmd.Flags().Int("depth", 0, "Maximum link distance (0 uses the configured default)")
	traceCmd.Flags().String("type", "", "Only links of this type (name or id)")
	validateCmd.Flags().Bool("yaml", false, "Print the full report as YAML")

	rootCmd.AddCommand(impactCmd, traceCmd, coverageCmd, validateCmd)
}
