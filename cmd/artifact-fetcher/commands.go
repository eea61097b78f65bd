package main

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vertextoedge/artifact-fetcher/internal/service/batch"
	"github.com/vertextoedge/artifact-fetcher/internal/service/mirror"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:               "artifact-fetcher",
		Short:             "Segmented HTTP downloader with integrity verification",
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.noProgress, "no-progress", false, "Disable progress bars")

	root.AddCommand(
		newProbeCmd(a),
		newFetchCmd(a),
		newVerifyCmd(a),
		newBatchCmd(a),
		newSpeedtestCmd(a),
		newHistoryCmd(a),
	)
	return root
}

func newProbeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probe URL",
		Short: "Show range support, size and final URL of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.fetcher().Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "resolved url:   %s\n", res.ResolvedURL)
			fmt.Fprintf(out, "supports range: %t\n", res.SupportsRange)
			if res.TotalSize > 0 {
				fmt.Fprintf(out, "size:           %s (%d bytes)\n", humanize.IBytes(uint64(res.TotalSize)), res.TotalSize)
			} else {
				fmt.Fprintln(out, "size:           unknown")
			}
			return nil
		},
	}
}

func newFetchCmd(a *app) *cobra.Command {
	var (
		output   string
		segments int
		sha256   string
		mirrors  []string
	)

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Download a file, optionally verifying its SHA-256",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = defaultOutput(args[0])
			}

			r, done, err := a.runner()
			if err != nil {
				return err
			}
			defer done()

			res := r.RunArtifact(cmd.Context(), batch.Artifact{
				URL:      args[0],
				Mirrors:  mirrors,
				Dest:     output,
				SHA256:   sha256,
				Segments: segments,
			})
			done()
			printOutcomes(cmd, []batch.Outcome{res})
			return res.Err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path (default: last URL path element)")
	cmd.Flags().IntVarP(&segments, "segments", "s", 0, "Parallel segments, clamped to [2, 8] (default: transfer.segments)")
	cmd.Flags().StringVar(&sha256, "sha256", "", "Expected SHA-256 hex digest")
	cmd.Flags().StringSliceVar(&mirrors, "mirror", nil, "Alternative source; the fastest source is used")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify PATH DIGEST",
		Short: "Check a file against a SHA-256 or SHA-512 hex digest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Verify keeps the mismatch detail that Check drops
			if err := a.verifier().Verify(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK\n", args[0])
			return nil
		},
	}
}

func newBatchCmd(a *app) *cobra.Command {
	var continueOnError bool

	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Fetch every artifact listed in a YAML manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := batch.LoadManifest(args[0])
			if err != nil {
				return err
			}
			if continueOnError {
				m.ContinueOnError = true
			}

			r, done, err := a.runner()
			if err != nil {
				return err
			}
			defer done()

			outcomes, err := r.Run(cmd.Context(), m)
			done()
			printOutcomes(cmd, outcomes)
			return err
		},
	}

	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep going after a failed artifact")
	return cmd
}

func newSpeedtestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "speedtest URL...",
		Short: "Measure mirrors with a 5 MB sample and report the fastest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			best, results, err := a.mirrors().Fastest(cmd.Context(), args)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MIRROR\tRATE")
			for _, r := range results {
				rate := "failed"
				if r.Rate != mirror.Failed {
					rate = humanize.IBytes(uint64(r.Rate)) + "/s"
				}
				fmt.Fprintf(w, "%s\t%s\n", r.URL, rate)
			}
			w.Flush()

			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fastest: %s\n", best)
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent transfers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("transfer history is disabled; set database.path")
			}
			defer store.Close()

			records, err := store.ListTransfers(limit)
			if err != nil {
				return err
			}
			stats, err := store.GetHistoryStats()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tSTATUS\tSTRATEGY\tSIZE\tVERIFIED\tDEST")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
					humanize.Time(r.CreatedAt), r.Status, r.Strategy,
					humanize.IBytes(uint64(r.BytesWritten)), r.Verified, r.DestPath)
			}
			w.Flush()

			fmt.Fprintf(cmd.OutOrStdout(), "\n%d completed (%s), %d failed, %d running\n",
				stats.CompletedCount, humanize.IBytes(uint64(stats.TotalBytes)), stats.FailedCount, stats.RunningCount)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of transfers to show")
	cmd.AddCommand(newHistoryPruneCmd(a))
	return cmd
}

func newHistoryPruneCmd(a *app) *cobra.Command {
	var olderThan, staleAfter time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Fail abandoned transfers and delete old history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("transfer history is disabled; set database.path")
			}
			defer store.Close()

			now := time.Now()
			stale, err := store.FailStaleTransfers(now.Add(-staleAfter))
			if err != nil {
				return fmt.Errorf("failed to release stale transfers: %w", err)
			}
			deleted, err := store.DeleteTransfersBefore(now.Add(-olderThan))
			if err != nil {
				return fmt.Errorf("failed to delete old transfers: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d abandoned transfers failed, %d old transfers deleted\n", stale, deleted)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete finished transfers older than this")
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 24*time.Hour, "Treat running transfers older than this as abandoned")
	return cmd
}

func printOutcomes(cmd *cobra.Command, outcomes []batch.Outcome) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ARTIFACT\tSTATUS\tSIZE\tRATE\tDEST")
	for _, o := range outcomes {
		size, rate := "-", "-"
		if o.Status == batch.OutcomeFetched {
			size = humanize.IBytes(uint64(o.BytesWritten))
			rate = humanize.IBytes(uint64(bytesPerSecond(o.BytesWritten, o.Elapsed))) + "/s"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Name, o.Status, size, rate, o.Dest)
	}
	w.Flush()
}

func bytesPerSecond(n int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(n) / elapsed.Seconds()
}

// defaultOutput names the destination after the last URL path element
func defaultOutput(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "download"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return name
}
