package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"reqstore/internal/app"
	"reqstore/internal/req"
)

// script command
var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Manage triggers, layouts and actions",
}

var scriptCreateCmd = &cobra.Command{
	Use:   "create MODULE NAME",
	Short: "Register a script with a module",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		typ, _ := flags.GetString("type")
		hook, _ := flags.GetString("hook")
		file, _ := flags.GetString("file")
		disabled, _ := flags.GetBool("disabled")

		source, err := app.ReadScriptSource(file)
		if err != nil {
			return err
		}

		a, ctx, err := newApp(cmd, "CreateScript")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		m, err := a.ResolveModule(ctx, args[0])
		if err != nil {
			return err
		}
		in := req.CreateScriptInput{
			ModuleID: m.ID,
			Name:     args[1],
			Type:     req.ScriptType(typ),
			Hook:     req.HookPoint(hook),
			Source:   source,
		}
		if disabled {
			in.Enabled = new(bool)
		}

		var s *req.Script
		err = a.Mutate(ctx, m.Name+" "+args[1], func(ctx context.Context, svc *req.Service) error {
			s, err = svc.CreateScript(ctx, in)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s %s (%s)\n", s.Type, s.Name, faint(s.ID))
		return nil
	},
}

var scriptUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change a script's name, hook, source or state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		var in req.UpdateScriptInput
		if flags.Changed("name") {
			name, _ := flags.GetString("name")
			in.Name = &name
		}
		if flags.Changed("hook") {
			hook, _ := flags.GetString("hook")
			h := req.HookPoint(hook)
			in.Hook = &h
		}
		if flags.Changed("file") {
			file, _ := flags.GetString("file")
			source, err := app.ReadScriptSource(file)
			if err != nil {
				return err
			}
			in.Source = &source
		}
		enable, _ := flags.GetBool("enable")
		disable, _ := flags.GetBool("disable")
		switch {
		case enable && disable:
			return fmt.Errorf("--enable and --disable are mutually exclusive")
		case enable || disable:
			in.Enabled = &enable
		}

		a, ctx, err := newApp(cmd, "UpdateScript")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		var s *req.Script
		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			s, err = svc.UpdateScript(ctx, args[0], in)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Printf("Updated %s %s (enabled=%v)\n", s.Type, s.Name, s.Enabled)
		return nil
	},
}

var scriptDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "DeleteScript")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			return svc.DeleteScript(ctx, args[0])
		})
		if err != nil {
			return err
		}
		fmt.Printf("Deleted script %s\n", args[0])
		return nil
	},
}

var scriptListCmd = &cobra.Command{
	Use:   "list MODULE",
	Short: "List a module's scripts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "ListScripts")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		m, err := a.ResolveModule(ctx, args[0])
		if err != nil {
			return err
		}
		scripts, err := a.Service().ListScripts(ctx, m.ID)
		if err != nil {
			return err
		}
		if len(scripts) == 0 {
			fmt.Println("No scripts.")
			return nil
		}
		for _, s := range scripts {
			state := success("enabled")
			if !s.Enabled {
				state = faint("disabled")
			}
			fmt.Printf("%-8s %-12s %-20s %s  %s\n", s.Type, s.Hook, s.Name, state, faint(s.ID))
		}
		return nil
	},
}

var scriptShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print a script's source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "GetScript")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		s, err := a.Service().GetScript(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(faint(fmt.Sprintf("// %s %s %s", s.Type, s.Hook, s.Name)))
		fmt.Println(s.Source)
		return nil
	},
}

var scriptTestCmd = &cobra.Command{
	Use:   "test ID",
	Short: "Dry-run a script without changing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		objectID, _ := flags.GetString("object")
		mockPath, _ := flags.GetString("mock")
		hook, _ := flags.GetString("hook")

		in := req.TestScriptInput{ObjectID: objectID, Hook: req.HookPoint(hook)}
		if mockPath != "" {
			mock, err := readMockObject(mockPath)
			if err != nil {
				return err
			}
			in.Object = mock
		}

		a, ctx, err := newApp(cmd, "TestScript")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		result, err := a.Service().TestScript(ctx, args[0], in)
		if err != nil {
			return err
		}
		printScriptResult(result)
		return nil
	},
}

var scriptExecCmd = &cobra.Command{
	Use:   "exec ID",
	Short: "Run an action and apply its changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "ExecuteScript")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		var result *req.ExecuteResult
		err = a.Mutate(ctx, args[0], func(ctx context.Context, svc *req.Service) error {
			result, err = svc.ExecuteScript(ctx, args[0])
			return err
		})
		if err != nil {
			return err
		}
		for _, line := range result.Output {
			fmt.Println(line)
		}
		for _, line := range result.Logs {
			fmt.Println(faint(line))
		}
		fmt.Printf("%s %d changes\n", success("Applied"), result.MutationsApplied)
		return nil
	},
}

var scriptLayoutCmd = &cobra.Command{
	Use:   "layout ID [OBJECT]",
	Short: "Compute a layout column for one object or the whole module",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "Layout")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		if len(args) == 2 {
			value, err := a.Service().Layout(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		}

		results, err := a.Service().BatchLayout(ctx, args[0])
		if err != nil {
			return err
		}
		for _, r := range results {
			if r.Error != "" {
				fmt.Printf("%s  %s\n", faint(r.ObjectID), errorf("error: %s", r.Error))
				continue
			}
			fmt.Printf("%s  %s\n", faint(r.ObjectID), r.Value)
		}
		return nil
	},
}

// readMockObject loads an object from YAML for a test run.
func readMockObject(path string) (*req.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mock object: %w", err)
	}
	var mock struct {
		ID             string         `yaml:"id"`
		Heading        string         `yaml:"heading"`
		Body           *string        `yaml:"body"`
		Level          string         `yaml:"level"`
		Attributes     req.Attributes `yaml:"attributes"`
		Classification string         `yaml:"classification"`
	}
	if err := yaml.Unmarshal(data, &mock); err != nil {
		return nil, fmt.Errorf("parsing mock object: %w", err)
	}
	if mock.ID == "" {
		mock.ID = "mock"
	}
	return &req.Object{
		ID:             mock.ID,
		Heading:        mock.Heading,
		Body:           mock.Body,
		Level:          mock.Level,
		Attributes:     mock.Attributes,
		Classification: req.Classification(mock.Classification),
	}, nil
}

func printScriptResult(r *req.ScriptResult) {
	for _, line := range r.Output {
		fmt.Println(line)
	}
	for _, line := range r.Logs {
		fmt.Println(faint(line))
	}
	for _, m := range r.Mutations {
		fmt.Printf("would set %s.%s = %v\n", m.ObjectID, m.Key, m.Value)
	}
	if r.Value != "" {
		fmt.Printf("value: %s\n", r.Value)
	}
	if r.Rejected {
		fmt.Println(errorf("rejected: %s", r.Reason))
	}
}

func init() {
	scriptCmd.AddCommand(scriptCreateCmd, scriptUpdateCmd, scriptDeleteCmd, scriptListCmd,
		scriptShowCmd, scriptTestCmd, scriptExecCmd, scriptLayoutCmd)

	scriptCreateCmd.Flags().String("type", "trigger", "trigger, layout or action")
	scriptCreateCmd.Flags().String("hook", "", "pre_save, post_save, pre_delete, post_delete or validate (triggers only)")
	scriptCreateCmd.Flags().StringP("file", "f", "-", "Source file, - for stdin")
	scriptCreateCmd.Flags().Bool("disabled", false, "Register without enabling")

	scriptUpdateCmd.Flags().String("name", "", "New name")
	scriptUpdateCmd.Flags().String("hook", "", "New hook point")
	scriptUpdateCmd.Flags().StringP("file", "f", "", "New source file, - for stdin")
	scriptUpdateCmd.Flags().Bool("enable", false, "Enable the script")
	scriptUpdateCmd.Flags().Bool("disable", false, "Disable the script")

	scriptTestCmd.Flags().String("object", "", "Object id to bind as obj")
	scriptTestCmd.Flags().String("mock", "", "YAML file describing a mock object")
	scriptTestCmd.Flags().String("hook", "", "Override the trigger's hook point")

	rootCmd.AddCommand(scriptCmd)
}
