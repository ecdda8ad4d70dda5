package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"codeberg.org/mutker/devdash/internal/config"
	"codeberg.org/mutker/devdash/internal/ctl"
	"github.com/spf13/cobra"
)

const defaultURL = "http://127.0.0.1:8787"

var (
	baseURL string
	timeout time.Duration
	asJSON  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "devdashctl",
		Short: "Control a running devdash daemon",
		Long: `devdashctl reads the live dashboard state, sets the daily step goal,
pushes step counts and follows notifications from a devdash daemon.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", envOr("DEVDASH_URL", defaultURL), "Daemon base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", ctl.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print raw JSON")

	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(goalCmd())
	rootCmd.AddCommand(stepsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func client() *ctl.Client {
	return ctl.NewClient(baseURL, timeout)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the current dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := client().State(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(v)
			}
			ctl.RenderState(os.Stdout, v)
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Request an immediate sampling pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client().Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Refresh queued")
			return nil
		},
	}
}

func goalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Show or change the daily step goal",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the step goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := client().Goal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(g)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <steps>",
		Short: "Set the step goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("goal must be an integer: %w", err)
			}
			g, err := client().SetGoal(cmd.Context(), n)
			if err != nil {
				return err
			}
			fmt.Printf("Step goal set to %d\n", g)
			return nil
		},
	})

	return cmd
}

func stepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Push step counts to the daemon",
	}

	var at string
	add := &cobra.Command{
		Use:   "add <steps>",
		Short: "Record steps taken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("steps must be an integer: %w", err)
			}

			var when time.Time
			if at != "" {
				when, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			if err := client().AddSteps(cmd.Context(), n, when); err != nil {
				return err
			}
			fmt.Printf("Recorded %d steps\n", n)
			return nil
		},
	}
	add.Flags().StringVar(&at, "at", "", "When the steps were taken (RFC 3339, default now)")
	cmd.AddCommand(add)

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			samples, err := client().History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(samples)
			}
			ctl.RenderHistory(os.Stdout, samples)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of samples")
	return cmd
}

func watchCmd() *cobra.Command {
	var filter []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow live state, notifications and haptics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return client().Watch(ctx, os.Stdout, ctl.WatchOptions{Filter: filter, JSON: asJSON})
		},
	}

	cmd.Flags().StringSliceVar(&filter, "type", nil, "Only show these message types (state, notification, haptic)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the default daemon configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			b, err := config.DefaultTOML()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(b)
			return err
		},
	})

	return cmd
}
