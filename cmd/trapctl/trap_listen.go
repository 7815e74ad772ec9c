package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/edgeo-scada/snmptrap/internal/journal"
	"github.com/edgeo-scada/snmptrap/internal/trapmetrics"
	"github.com/edgeo-scada/snmptrap/snmp"
)

var trapListenCmd = &cobra.Command{
	Use:   "trap-listen",
	Short: "Listen for SNMP traps",
	Long: `Receive SNMPv1 and SNMPv2c traps.

IPv4 and IPv6 are served by two independent listeners running side by side.
Set --listen or --listen6 to an empty string to disable one of them. A
family that cannot be bound (for example IPv6 on a host without it) is
logged and skipped; the command fails only when no listener could bind.
Malformed datagrams and unsupported versions are logged and skipped.

The trap port is taken from --port (default 162, which typically requires
root/administrator privileges).

Examples:
  # Listen on 0.0.0.0:1162 and [::]:1162
  trapctl trap-listen -p 1162

  # IPv4 only, accept two communities, keep a journal and export metrics
  trapctl trap-listen -p 1162 --listen6 "" --trap-community public,ops \
    --journal traps.db --metrics-addr :9162`,
	RunE: runTrapListen,
}

var (
	listenHost       string
	listenHost6      string
	trapCommunities  []string
	pollInterval     time.Duration
	journalPath      string
	journalRetention time.Duration
	metricsAddr      string
)

func init() {
	rootCmd.AddCommand(trapListenCmd)

	trapListenCmd.Flags().StringVar(&listenHost, "listen", "0.0.0.0", "IPv4 address to listen on (empty disables)")
	trapListenCmd.Flags().StringVar(&listenHost6, "listen6", "::", "IPv6 address to listen on (empty disables)")
	trapListenCmd.Flags().StringSliceVar(&trapCommunities, "trap-community", nil, "accepted communities (empty = accept all)")
	trapListenCmd.Flags().DurationVar(&pollInterval, "poll-interval", snmp.DefaultPollInterval, "receive loop poll interval")
	trapListenCmd.Flags().StringVar(&journalPath, "journal", "", "SQLite file to record received traps in")
	trapListenCmd.Flags().DurationVar(&journalRetention, "journal-retention", 0, "prune journal entries older than this (0 keeps all)")
	trapListenCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on")

	viper.BindPFlag("listen.ipv4", trapListenCmd.Flags().Lookup("listen"))
	viper.BindPFlag("listen.ipv6", trapListenCmd.Flags().Lookup("listen6"))
	viper.BindPFlag("listen.communities", trapListenCmd.Flags().Lookup("trap-community"))
	viper.BindPFlag("listen.poll-interval", trapListenCmd.Flags().Lookup("poll-interval"))
	viper.BindPFlag("journal.path", trapListenCmd.Flags().Lookup("journal"))
	viper.BindPFlag("journal.retention", trapListenCmd.Flags().Lookup("journal-retention"))
	viper.BindPFlag("metrics.addr", trapListenCmd.Flags().Lookup("metrics-addr"))
}

// bindAddr is one address family to listen on.
type bindAddr struct {
	family string
	host   string
}

func runTrapListen(cmd *cobra.Command, args []string) error {
	listenHost = viper.GetString("listen.ipv4")
	listenHost6 = viper.GetString("listen.ipv6")
	trapCommunities = viper.GetStringSlice("listen.communities")
	pollInterval = viper.GetDuration("listen.poll-interval")
	journalPath = viper.GetString("journal.path")
	journalRetention = viper.GetDuration("journal.retention")
	metricsAddr = viper.GetString("metrics.addr")

	var binds []bindAddr
	if listenHost != "" {
		binds = append(binds, bindAddr{family: "ipv4", host: listenHost})
	}
	if listenHost6 != "" {
		binds = append(binds, bindAddr{family: "ipv6", host: listenHost6})
	}
	if len(binds) == 0 {
		return fmt.Errorf("nothing to listen on: both --listen and --listen6 are empty")
	}

	logger := newLogger()

	var jrnl *journal.Journal
	if journalPath != "" {
		var err error
		if jrnl, err = journal.Open(journalPath); err != nil {
			return err
		}
		defer jrnl.Close()
		logger.Info("recording traps", "journal", journalPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	formatter := NewFormatter(outputFormat)
	handler := func(_ *net.UDPAddr, trap *snmp.ReceivedTrap) {
		formatter.FormatTrap(trap)
		if jrnl != nil {
			if _, err := jrnl.Record(ctx, trap); err != nil {
				logger.Warn("failed to journal trap", "source", sourceString(trap.Source), "error", err)
			}
		}
	}

	sources, err := startListeners(ctx, g, binds, port, handler, logger)
	if err != nil {
		stop()
		g.Wait()
		return err
	}

	if metricsAddr != "" {
		collector := trapmetrics.NewCollector(sources)
		g.Go(func() error {
			return trapmetrics.Serve(ctx, metricsAddr, collector, logger)
		})
	}

	if jrnl != nil && journalRetention > 0 {
		g.Go(func() error {
			return pruneJournal(ctx, jrnl, journalRetention, logger)
		})
	}

	if len(trapCommunities) > 0 {
		fmt.Fprintf(os.Stderr, "Filtering by community: %v\n", trapCommunities)
	}
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop...")

	err = g.Wait()
	fmt.Fprintln(os.Stderr, "\nShutting down...")
	return err
}

// startListeners binds and starts one listener per address family, each
// stopped by g once ctx is done. A family that fails to bind is logged and
// skipped; an error is returned only when none could bind.
func startListeners(ctx context.Context, g *errgroup.Group, binds []bindAddr, port int, handler snmp.TrapHandler, logger *slog.Logger) (map[string]*snmp.Metrics, error) {
	sources := make(map[string]*snmp.Metrics, len(binds))
	var bindErr error
	for _, b := range binds {
		metrics := snmp.NewMetrics()
		l := snmp.NewTrapListener(
			snmp.WithListenerCommunities(trapCommunities...),
			snmp.WithPollInterval(pollInterval),
			snmp.WithListenerMetrics(metrics),
			snmp.WithListenerLogger(logger.With("family", b.family)),
		)
		if err := l.Bind(b.host, port); err != nil {
			bindErr = fmt.Errorf("%s listener: %w", b.family, err)
			logger.Warn("listener not started", "family", b.family, "address", b.host, "error", err)
			continue
		}
		if err := l.Start(ctx, handler); err != nil {
			l.Stop()
			return nil, err
		}
		sources[b.family] = metrics

		g.Go(func() error {
			<-ctx.Done()
			return l.Stop()
		})
	}

	if len(sources) == 0 {
		return nil, bindErr
	}
	return sources, nil
}

// pruneJournal deletes entries older than retention until ctx is done.
func pruneJournal(ctx context.Context, j *journal.Journal, retention time.Duration, logger *slog.Logger) error {
	interval := retention / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := j.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Warn("journal prune failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("journal pruned", "deleted", n)
			}
		}
	}
}
