package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/recording"
	"github.com/sarchlab/cachesim/timing/hierarchy"
	"github.com/sarchlab/cachesim/trace"
)

type runOptions struct {
	configPath   string
	preset       string
	recordPath   string
	recordFormat string
	monitor      bool
	monitorPort  int
	openBrowser  bool
	hold         bool
	flush        bool
	verbose      bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run [flags] <trace>",
	Short: "Replay an access trace.",
	Long: "`run <trace>` replays the trace, one access per line, and prints " +
		"the cost of the run and per-level statistics. Use - to read the " +
		"trace from stdin.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTrace(cmd.OutOrStdout(), args[0], runOpts)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVar(&runOpts.configPath, "config", "",
		"Path to hierarchy configuration JSON file (default: $CACHESIM_CONFIG)")
	f.StringVar(&runOpts.preset, "preset", "default",
		"Hierarchy preset when no config file is given: default, direct-l2, single")
	f.StringVar(&runOpts.recordPath, "record", "",
		"Record every access to this file (extension is added)")
	f.StringVar(&runOpts.recordFormat, "record-format", "sqlite",
		"Recording format: sqlite or csv")
	f.BoolVar(&runOpts.monitor, "monitor", false,
		"Serve the simulation state over HTTP")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server (default: $CACHESIM_MONITOR_PORT or random)")
	f.BoolVar(&runOpts.openBrowser, "open", false,
		"Open the monitoring server in a browser")
	f.BoolVar(&runOpts.hold, "hold", false,
		"Keep the monitoring server up after the run until interrupted")
	f.BoolVar(&runOpts.flush, "flush", false,
		"Write all dirty lines back to memory after the run")
	f.BoolVarP(&runOpts.verbose, "verbose", "v", false,
		"Log every access and the word every read returns")
}

func loadHierarchyConfig(opts runOptions) (*hierarchy.Config, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv("CACHESIM_CONFIG")
	}
	if path != "" {
		return hierarchy.LoadConfig(path)
	}

	switch opts.preset {
	case "default":
		return hierarchy.DefaultConfig(), nil
	case "direct-l2":
		return hierarchy.DirectMappedL2Config(), nil
	case "single":
		return hierarchy.SingleLevelConfig(), nil
	}

	return nil, fmt.Errorf("unknown preset %q", opts.preset)
}

func monitorPort(opts runOptions) int {
	if opts.monitorPort != 0 {
		return opts.monitorPort
	}

	port, err := strconv.Atoi(os.Getenv("CACHESIM_MONITOR_PORT"))
	if err != nil {
		return 0
	}
	return port
}

func openTrace(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func newRecorder(opts runOptions, config *hierarchy.Config) (recording.Recorder, error) {
	switch opts.recordFormat {
	case "sqlite":
		r, err := recording.NewSQLiteRecorder(opts.recordPath)
		if err != nil {
			return nil, err
		}
		if err := r.RecordConfig(config); err != nil {
			return nil, err
		}
		return r, nil
	case "csv":
		return recording.NewCSVRecorder(opts.recordPath)
	}

	return nil, fmt.Errorf("unknown record format %q", opts.recordFormat)
}

func runTrace(out io.Writer, tracePath string, opts runOptions) error {
	config, err := loadHierarchyConfig(opts)
	if err != nil {
		return err
	}

	h, err := hierarchy.New(config)
	if err != nil {
		return err
	}

	in, err := openTrace(tracePath)
	if err != nil {
		return fmt.Errorf("failed to open trace: %w", err)
	}
	ops, err := trace.Parse(in, config.WordSize)
	in.Close()
	if err != nil {
		return err
	}

	if opts.recordPath != "" {
		recorder, err := newRecorder(opts, config)
		if err != nil {
			return err
		}
		defer func() {
			if err := recorder.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Error closing recording: %v\n", err)
			}
		}()
		h.AddObserver(recorder)
	}

	var fn trace.ReplayFunc
	if opts.verbose {
		h.AddObserver(trace.NewLogObserver(log.New(os.Stderr, "", 0)))
		fn = func(op trace.Op, _ hierarchy.Result, data []byte) {
			if !op.Write {
				fmt.Fprintf(os.Stderr, "  -> %s\n", hex.EncodeToString(data))
			}
		}
	}

	var monitor *monitoring.Monitor
	if opts.monitor {
		monitor = monitoring.NewMonitor(h).WithPortNumber(monitorPort(opts))
		url := monitor.StartServer()
		if opts.openBrowser {
			if err := browser.OpenURL(url + "/api/stats"); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to open browser: %v\n", err)
			}
		}

		bar := monitor.CreateProgressBar(tracePath, uint64(len(ops)))
		inner := fn
		fn = func(op trace.Op, r hierarchy.Result, data []byte) {
			bar.IncrementFinished(1)
			if inner != nil {
				inner(op, r, data)
			}
		}
		defer monitor.CompleteProgressBar(bar)
	}

	summary, err := trace.Replay(h, ops, config.WordSize, fn)
	if err != nil {
		return err
	}

	if opts.flush {
		if err := h.Flush(); err != nil {
			return err
		}
	}

	printReport(out, tracePath, summary, h)

	if monitor != nil && opts.hold {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		fmt.Fprintln(os.Stderr, "Run finished. Press Ctrl-C to stop the monitor.")
		<-ctx.Done()
	}

	return nil
}

func printReport(out io.Writer, tracePath string, s trace.Summary, h *hierarchy.Hierarchy) {
	stats := h.Stats()

	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "Trace: %s\n", tracePath)
	fmt.Fprintf(out, "Accesses: %d (%d reads, %d writes)\n", s.Ops, s.Reads, s.Writes)
	fmt.Fprintf(out, "Total Cycles: %d\n", h.Time())
	if s.Ops > 0 {
		fmt.Fprintf(out, "Cycles/Access: %.2f\n", float64(s.Cycles)/float64(s.Ops))
	}
	fmt.Fprintf(out, "\n")
	fmt.Fprintf(out, "L1: %d hits, %d misses, %d evictions, %d write-backs\n",
		stats.L1.Hits, stats.L1.Misses, stats.L1.Evictions, stats.L1.Writebacks)
	if stats.L2 != nil {
		fmt.Fprintf(out, "L2: %d hits, %d misses, %d evictions, %d write-backs\n",
			stats.L2.Hits, stats.L2.Misses, stats.L2.Evictions, stats.L2.Writebacks)
	}
	fmt.Fprintf(out, "Memory: %d block reads, %d block writes\n",
		stats.Memory.Reads, stats.Memory.Writes)
}
