package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"os/user"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"reqstore/internal/app"
	"reqstore/internal/config"
	"reqstore/internal/req"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a ReqApp. The caller must defer
// closeApp. operation identifies the CLI command being run (e.g. "CreateObject").
func newApp(cmd *cobra.Command, operation string) (*app.ReqApp, context.Context, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	actor, _ := cmd.Flags().GetString("actor")
	ctx := req.WithActor(cmd.Context(), actor)

	a, err := app.NewReqApp(ctx, cfg, operation, verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, ctx, nil
}

// closeApp closes a and reports a close failure without masking err.
func closeApp(ctx context.Context, a *app.ReqApp) {
	if err := a.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorf("closing: %v", err))
	}
}

func defaultActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "system"
}

var rootCmd = &cobra.Command{
	Use:          "reqstore",
	Short:        "Requirements store with baselines, traceability and scripting",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID:  %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:    %s\n", cfg.HostID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:      %s (%s)\n", v.Name, v.Type)
		}
		fmt.Printf("Encryption: archives encrypted=%v\n", cfg.Archive.Encrypt)
		fmt.Printf("Scripting:  timeout=%dms workers=%d\n", cfg.Scripting.TimeoutMS, cfg.Scripting.LayoutWorkers)
		fmt.Printf("Impact:     default depth=%d max depth=%d\n", cfg.Impact.DefaultDepth, cfg.Impact.MaxDepth)
		return nil
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vault",
}

var vaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the configured vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "CheckVault")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		name, err := a.CheckVault(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Vault %s: %s\n", name, success("OK"))
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Generate the archive key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, ctx, err := newApp(cmd, "SetupKeys")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		pass, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := a.SetupKeys(pass); err != nil {
			return fmt.Errorf("setting up keys: %w", err)
		}
		fmt.Println(success("Archive keys generated."))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, ctx, err := newApp(cmd, "GetHistory")
		if err != nil {
			return err
		}
		defer closeApp(ctx, a)

		ops, err := a.History(ctx, limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}
		for _, op := range ops {
			fmt.Println(formatOperation(op))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().String("actor", defaultActor(), "Name recorded in object history")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	vaultCmd.AddCommand(vaultCheckCmd)
	keysCmd.AddCommand(keysSetupCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
