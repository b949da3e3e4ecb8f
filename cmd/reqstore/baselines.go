package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"reqstore/internal/req"
)

// baseline command
var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage module baselines",
}

var baselineCreateCmd = &cobra.Command{
	Use:   "create MODULE NAME",
	Short: "Lock the current versions of a module's live objects",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		setID, _ := cmd.Flags().GetString("set")

		a, ctx, err := newApp(cmd, "CreateBaseline")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		m, err := a.ResolveModule(ctx, args[0])
		if err != nil {
			return err
		}

		var b *req.Baseline
		err = a.Mutate(ctx, m.Name+" "+args[1], func(ctx context.Context, svc *req.Service) error {
			b, err = svc.CreateBaseline(ctx, req.CreateBaselineInput{
				ModuleID:      m.ID,
				Name:          args[1],
				Description:   description,
				BaselineSetID: stringPtr(setID != "", setID),
			})
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created baseline %s (%s) with %d objects\n", b.Name, faint(b.ID), len(b.Entries))
		return nil
	},
}

var baselineListCmd = &cobra.Command{
	Use:   "list MODULE",
	Short: "List a module's baselines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "ListBaselines")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		m, err := a.ResolveModule(ctx, args[0])
		if err != nil {
			return err
		}
		baselines, err := a.Service().ListBaselines(ctx, m.ID)
		if err != nil {
			return err
		}
		if len(baselines) == 0 {
			fmt.Println("No baselines.")
			return nil
		}
		for _, b := range baselines {
			fmt.Printf("%-20s %s  %s\n", b.Name, b.CreatedAt.Format("2006-01-02 15:04:05"), faint(b.ID))
		}
		return nil
	},
}

var baselineShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a baseline and its pinned versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "GetBaseline")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		b, err := a.Service().GetBaseline(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", b.Name, faint(b.ID))
		if b.Description != "" {
			fmt.Println(b.Description)
		}
		for _, e := range b.Entries {
			fmt.Printf("  %4d  %s v%d\n", e.Ordinal, e.ObjectID, e.Version)
		}
		return nil
	},
}

var baselineDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a baseline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "DeleteBaseline")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			return svc.DeleteBaseline(ctx, args[0])
		})
		if err != nil {
			return err
		}
		fmt.Printf("Deleted baseline %s\n", args[0])
		return nil
	},
}

var baselineDiffCmd = &cobra.Command{
	Use:   "diff A B",
	Short: "Compare two baselines",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "DiffBaselines")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		diff, err := a.Service().DiffBaselines(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if diff.Empty() {
			fmt.Println("No differences.")
			return nil
		}
		for _, e := range diff.Added {
			fmt.Printf("%s %s  %s v%d\n", added("+"), e.Heading, faint(e.ObjectID), e.Version)
		}
		for _, e := range diff.Removed {
			fmt.Printf("%s %s  %s v%d\n", removed("-"), e.Heading, faint(e.ObjectID), e.Version)
		}
		for _, m := range diff.Modified {
			fmt.Printf("%s %s  %s v%d -> v%d\n", warning("~"), renderSegments(m.HeadingDiff),
				faint(m.ObjectID), m.Before.Version, m.After.Version)
			if len(m.BodyDiff) > 0 {
				fmt.Printf("    %s\n", renderSegments(m.BodyDiff))
			}
			for _, c := range m.AttributeChanges {
				fmt.Printf("    %s: %v -> %v\n", c.Key, c.Before, c.After)
			}
		}
		return nil
	},
}

var baselineArchiveCmd = &cobra.Command{
	Use:   "archive ID",
	Short: "Publish a baseline document to the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "ArchiveBaseline")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		var archive *req.BaselineArchive
		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			archive, err = svc.ArchiveBaseline(ctx, args[0])
			return err
		})
		if err != nil {
			return err
		}
		state := "plain"
		if archive.Encrypted {
			state = "encrypted"
		}
		fmt.Printf("%s %s (%s, %d bytes) in vault %s\n",
			success("Archived"), archive.Checksum, state, archive.Size, archive.Vault)
		return nil
	},
}

var baselineArchivesCmd = &cobra.Command{
	Use:   "archives ID",
	Short: "List the published documents of a baseline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "ListArchives")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		archives, err := a.Service().ListArchives(ctx, args[0])
		if err != nil {
			return err
		}
		if len(archives) == 0 {
			fmt.Println("No archives.")
			return nil
		}
		for _, ar := range archives {
			enc := ""
			if ar.Encrypted {
				enc = " encrypted"
			}
			fmt.Printf("%s  %s  %-10s %d bytes%s\n",
				ar.CreatedAt.Format("2006-01-02 15:04:05"), ar.Checksum, ar.Vault, ar.Size, enc)
		}
		return nil
	},
}

var baselineFetchCmd = &cobra.Command{
	Use:   "fetch CHECKSUM",
	Short: "Retrieve a published baseline document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, ctx, err := newApp(cmd, "FetchArchive")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		doc, err := a.FetchArchive(ctx, args[0], func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
		if err != nil {
			return err
		}
		if out == "" {
			return printYAML(doc)
		}
		data, err := yaml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		fmt.Printf("Wrote %s (%d entries)\n", out, len(doc.Entries))
		return nil
	},
}

// set command
var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Manage baseline sets",
}

var setCreateCmd = &cobra.Command{
	Use:   "create NAME VERSION",
	Short: "Create a baseline set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")

		a, ctx, err := newApp(cmd, "CreateBaselineSet")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		var set *req.BaselineSet
		err = a.Mutate(ctx, args[0]+" "+args[1], func(ctx context.Context, svc *req.Service) error {
			set, err = svc.CreateBaselineSet(ctx, args[0], args[1], description)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created baseline set %s %s (%s)\n", set.Name, set.Version, faint(set.ID))
		return nil
	},
}

var setListCmd = &cobra.Command{
	Use:   "list",
	Short: "List baseline sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "ListBaselineSets")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		sets, err := a.Service().ListBaselineSets(ctx)
		if err != nil {
			return err
		}
		for _, s := range sets {
			fmt.Printf("%-20s %-10s %s\n", s.Name, s.Version, faint(s.ID))
		}
		return nil
	},
}

var setShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a baseline set and its member baselines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "GetBaselineSet")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		set, err := a.Service().GetBaselineSet(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s  %s\n", set.Name, set.Version, faint(set.ID))
		for _, b := range set.Baselines {
			fmt.Printf("  %-20s module %s  %s\n", b.Name, b.ModuleID, faint(b.ID))
		}
		return nil
	},
}

func init() {
	baselineCmd.AddCommand(baselineCreateCmd, baselineListCmd, baselineShowCmd, baselineDeleteCmd,
		baselineDiffCmd, baselineArchiveCmd, baselineArchivesCmd, baselineFetchCmd)
	baselineCreateCmd.Flags().String("description", "", "Baseline description")
	baselineCreateCmd.Flags().String("set", "", "Baseline set id to join")
	baselineFetchCmd.Flags().StringP("out", "o", "", "Write the document to a file instead of stdout")

	setCmd.AddCommand(setCreateCmd, setListCmd, setShowCmd)
	setCreateCmd.Flags().String("description", "", "Set description")

	rootCmd.AddCommand(baselineCmd, setCmd)
}
