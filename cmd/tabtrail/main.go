package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"tabtrail/internal/bootstrap"
	realtimeout "tabtrail/internal/modules/realtime/adapter/out"
	"tabtrail/internal/platform/config"
	"tabtrail/internal/ui/watch"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:           "tabtrail",
		Short:         "Browsing session analytics engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "directory holding tabtrail.yaml and the database")

	root.AddCommand(newServeCmd(&dataDir))
	root.AddCommand(newSessionsCmd(&dataDir))
	root.AddCommand(newShowCmd(&dataDir))
	root.AddCommand(newExportCmd(&dataDir))
	root.AddCommand(newReplayCmd(&dataDir))
	root.AddCommand(newCommandCmd(&dataDir))
	root.AddCommand(newWatchCmd(&dataDir))
	root.AddCommand(newClassifierCmd(&dataDir))
	return root
}

func defaultDataDir() string {
	if v := strings.TrimSpace(os.Getenv("TABTRAIL_HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tabtrail"
	}
	return filepath.Join(home, ".tabtrail")
}

// withApp wires the engine over the stored state. With start set the engine
// runs for the duration of fn and flushes to storage when fn returns.
func withApp(ctx context.Context, dataDir string, start bool, fn func(app *bootstrap.App) error) (err error) {
	cfg, err := config.New(dataDir)
	if err != nil {
		return err
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, app.Close(context.WithoutCancel(ctx)))
	}()
	if start {
		if err := app.Start(ctx); err != nil {
			return err
		}
	}
	return fn(app)
}

func newServeCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with its HTTP and stream endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cfg, err := config.New(*dataDir)
			if err != nil {
				return err
			}
			app, err := bootstrap.New(ctx, cfg)
			if err != nil {
				return err
			}
			if err := app.Start(ctx); err != nil {
				return errors.Join(err, app.Close(context.WithoutCancel(ctx)))
			}
			return app.Serve(ctx)
		},
	}
}

func newSessionsCmd(dataDir *string) *cobra.Command {
	var all, favorites, asJSON bool
	var limit int
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), *dataDir, false, func(app *bootstrap.App) error {
				rows, err := app.StorageCLI.Sessions(cmd.Context(), all, favorites, limit)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), rows)
				}
				if len(rows) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
					return nil
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), sessionTable(rows))
				return nil
			})
		},
	}
	sessions.Flags().BoolVar(&all, "all", false, "include archived and deleted sessions")
	sessions.Flags().BoolVar(&favorites, "favorites", false, "only favorite sessions")
	sessions.Flags().BoolVar(&asJSON, "json", false, "print rows as JSON")
	sessions.Flags().IntVar(&limit, "limit", 20, "maximum rows (0 for all)")
	return sessions
}

func newShowCmd(dataDir *string) *cobra.Command {
	var render bool
	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dataDir, true, func(app *bootstrap.App) error {
				note, err := app.StorageCLI.Render(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if render {
					r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
					if err != nil {
						return err
					}
					if note, err = r.Render(note); err != nil {
						return fmt.Errorf("render note: %w", err)
					}
				}
				_, _ = fmt.Fprint(cmd.OutOrStdout(), note)
				return nil
			})
		},
	}
	show.Flags().BoolVar(&render, "render", false, "render markdown for the terminal")
	return show
}

func newExportCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a session note under the notes directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dataDir, true, func(app *bootstrap.App) error {
				path, err := app.StorageCLI.Export(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", path)
				return nil
			})
		},
	}
}

func newReplayCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <capture.jsonl|->",
		Short: "Feed a JSONL signal capture through the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return withApp(cmd.Context(), *dataDir, true, func(app *bootstrap.App) error {
				stats, err := app.ActivityCLI.Replay(cmd.Context(), in)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "lines=%d applied=%d skipped=%d\n", stats.Lines, stats.Applied, stats.Skipped)
				return err
			})
		},
	}
}

func newCommandCmd(dataDir *string) *cobra.Command {
	var sessionID, summary string
	command := &cobra.Command{
		Use:   "command <type>",
		Short: "Run a state command such as session_archive or tracking_pause",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), *dataDir, true, func(app *bootstrap.App) error {
				res := app.ActivityCLI.Command(cmd.Context(), args[0], sessionID, summary)
				if !res.OK {
					return fmt.Errorf("%s", res.Error)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			})
		},
	}
	command.Flags().StringVar(&sessionID, "session", "", "target session id")
	command.Flags().StringVar(&summary, "summary", "", "summary text for session_summary_update")
	return command
}

func newWatchCmd(dataDir *string) *cobra.Command {
	var addr, mode string
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a running engine in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				cfg, err := config.New(*dataDir)
				if err != nil {
					return err
				}
				addr = "http://" + cfg.Listen
			}
			client, err := realtimeout.NewStreamClient(addr, mode)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch.Run(ctx, client, addr)
		},
	}
	watchCmd.Flags().StringVar(&addr, "addr", "", "engine address (defaults to the configured listen address)")
	watchCmd.Flags().StringVar(&mode, "mode", "delta", "stream mode: delta|snapshot")
	return watchCmd
}

func newClassifierCmd(dataDir *string) *cobra.Command {
	classifier := &cobra.Command{Use: "classifier", Short: "Category classifier plugins"}

	classifier.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List classifier manifests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClassifiers(cmd.Context(), *dataDir, func(h classifierCLI) error {
				infos, err := h.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no classifiers configured")
					return nil
				}
				for _, c := range infos {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s@%s enabled=%t connected=%t capabilities=%s binary=%s\n", c.Name, c.Version, c.Enabled, c.Connected, strings.Join(c.Capabilities, ","), c.Binary)
				}
				return nil
			})
		},
	})

	classifier.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Validate classifier checksums and lifecycle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClassifiers(cmd.Context(), *dataDir, func(h classifierCLI) error {
				results, err := h.Doctor(cmd.Context())
				if err != nil {
					return err
				}
				if len(results) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no classifiers configured")
					return nil
				}
				failed := 0
				for _, r := range results {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s checksum=%t binary=%t lifecycle=%t categories=%s", r.Name, r.ChecksumValid, r.BinaryReachable, r.LifecycleOK, strings.Join(r.Categories, ","))
					if r.Error != "" {
						failed++
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), " error=%q", r.Error)
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout())
				}
				if failed > 0 {
					return fmt.Errorf("%d classifier(s) failed", failed)
				}
				return nil
			})
		},
	})

	var title string
	lookup := &cobra.Command{
		Use:   "lookup <url>",
		Short: "Resolve the category of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClassifiers(cmd.Context(), *dataDir, func(h classifierCLI) error {
				out, err := h.Lookup(cmd.Context(), args[0], title)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s category=%s confidence=%.2f source=%s\n", out.URL, out.Category, out.Confidence, out.Source)
				return nil
			})
		},
	}
	lookup.Flags().StringVar(&title, "title", "", "page title")
	classifier.AddCommand(lookup)
	return classifier
}
