package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"planetalign/internal/config"
	"planetalign/internal/pipeline"
	"planetalign/internal/server"
	"planetalign/internal/watch"
)

// NewRootCmd creates the root Cobra command.
func NewRootCmd(cfg *config.Config, log *slog.Logger) *cobra.Command {
	root := NewRoot(cfg, log)

	rootCmd := &cobra.Command{
		Use:   "planetalign",
		Short: "Planetalign centers planetary frames for stacking",
		Long: `Planetalign detects the planet in each capture frame, plans one
crop size for the whole batch, and writes center-aligned copies ready
for stacking software.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newAlignCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newToolsCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

// processingFlags binds the per-run overrides of the detection and
// crop parameters.
func processingFlags(cmd *cobra.Command, opts *config.Processing) {
	cmd.Flags().IntVar(&opts.ThresholdPct, "threshold", opts.ThresholdPct, "brightness threshold percentage (1-100)")
	cmd.Flags().IntVar(&opts.SearchRadius, "radius", opts.SearchRadius, "refinement window radius in pixels")
	cmd.Flags().Float64Var(&opts.CropRatio, "crop-ratio", opts.CropRatio, "crop size as a multiple of the largest detected object")
	cmd.Flags().IntVar(&opts.DetectWorkers, "detect-workers", opts.DetectWorkers, "concurrent detection workers")
	cmd.Flags().IntVar(&opts.CropWorkers, "crop-workers", opts.CropWorkers, "concurrent crop workers")
}

func newAlignCmd(root *Root) *cobra.Command {
	opts := root.cfg.Processing

	cmd := &cobra.Command{
		Use:   "align <output_dir> <frame...|frame_dir>",
		Short: "Align a batch of planetary frames",
		Long: `Detect the planet in every frame, then crop all frames to one common
size centered on each detection. Frames without a detectable object
are skipped; output files get an "_aligned" suffix.

Examples:
  planetalign align ./aligned jupiter_*.tif
  planetalign align ./aligned /captures/session-01/
  planetalign align ./aligned /captures/session-01/ --crop-ratio 2.5`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir := args[0]
			frames, err := resolveFrames(args[1:])
			if err != nil {
				return err
			}

			if err := opts.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			pipe, err := root.pipeFactory(ctx, opts)
			if err != nil {
				return err
			}
			defer pipe.Stop()

			job := pipeline.Job{
				ID:        newID("align"),
				Frames:    frames,
				OutputDir: outputDir,
			}
			return root.enqueueAndWait(ctx, pipe, job)
		},
	}

	processingFlags(cmd, &opts)
	return cmd
}

func newWatchCmd(root *Root) *cobra.Command {
	opts := root.cfg.Processing
	var (
		outputDir string
		settle    int
	)

	cmd := &cobra.Command{
		Use:   "watch <capture_dir>",
		Short: "Watch a capture directory and align frames as they settle",
		Long: `Monitor a directory for new frames. Once no new frame arrives for the
settle period, everything collected so far is aligned as one batch.

Example:
  planetalign watch /captures/live --output ./aligned --settle 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipe, err := root.pipeFactory(ctx, opts)
			if err != nil {
				return err
			}
			defer pipe.Stop()

			w := watch.New(root.log, pipe, args[0], outputDir, time.Duration(settle)*time.Second)
			if err := w.Run(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", root.cfg.Paths.DefaultOutput, "output directory for aligned frames")
	cmd.Flags().IntVar(&settle, "settle", root.cfg.Watch.SettleSeconds, "seconds without new frames before a batch starts")
	processingFlags(cmd, &opts)
	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP alignment server",
		Long: `Start an HTTP server accepting alignment batches and streaming
progress over a websocket.

Endpoints:
  GET  /healthz   liveness probe
  POST /align     submit a batch ({"output_dir": ..., "frames": [...]})
  GET  /jobs      recent batch results
  GET  /stream    websocket progress events`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipe, err := root.pipeFactory(ctx, root.cfg.Processing)
			if err != nil {
				return err
			}
			defer pipe.Stop()

			return server.New(addr, pipe, root.log).Start(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (host:port)")
	return cmd
}

func newToolsCmd(root *Root) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Show threshold and crop tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			tm := root.newToolManager()
			status := tm.GetToolStatus()

			fmt.Println("Configured tool preferences:")
			fmt.Printf("  Threshold: %s (fallbacks: %v)\n",
				root.cfg.Tools.Threshold.Preferred, root.cfg.Tools.Threshold.Fallbacks)
			fmt.Printf("  Crop:      %s (fallbacks: %v)\n",
				root.cfg.Tools.Crop.Preferred, root.cfg.Tools.Crop.Fallbacks)

			for _, category := range []string{"threshold", "crop"} {
				fmt.Printf("\n%s tools:\n", strings.ToUpper(category[:1])+category[1:])
				for tool, st := range status[category] {
					mark := "unavailable"
					if st.Available {
						mark = "available"
					}
					fmt.Printf("  %-12s %s", tool, mark)
					if verbose && st.Available && st.Version != "" {
						fmt.Printf(" (%s)", st.Version)
					}
					if verbose && !st.Available && st.Error != nil {
						fmt.Printf(" - %v", st.Error)
					}
					fmt.Println()
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "show versions and error detail")
	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(root.cfg)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("configuration is valid")
			return nil
		},
	}

	cmd.AddCommand(showCmd, validateCmd)
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("planetalign v1.0.0")
		},
	}
}
