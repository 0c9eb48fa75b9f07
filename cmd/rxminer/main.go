// Command rxminer is a CPU miner for RandomX-based proof-of-work pools.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/mppjuro/pjurominer/config"
	"github.com/mppjuro/pjurominer/rxminer"
	"github.com/mppjuro/pjurominer/telemetry"
)

func main() {
	os.Exit(run())
}

// configPathFromArgs scans args for -config/--config before the main flag
// set is assembled, since the config file must be loaded (to supply
// defaults) before config.BindFlags registers the flags that override it.
func configPathFromArgs(args []string) string {
	for i, a := range args {
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(a) > 8 && a[:8] == "-config=":
			return a[8:]
		case len(a) > 9 && a[:9] == "--config=":
			return a[9:]
		}
	}
	return ""
}

func run() int {
	cfg, err := config.Load(configPathFromArgs(os.Args[1:]))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fs := flag.CommandLine
	fs.String("config", "", "path to a YAML config file (re-declared here so -h lists it)")
	config.BindFlags(fs, cfg)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	var metrics *telemetry.Metrics
	if cfg.MetricsAddr != "" {
		metrics = telemetry.NewMetrics("rxminer")
		go func() {
			if err := telemetry.Serve(cfg.MetricsAddr, metrics); err != nil {
				logrus.WithError(err).Error("telemetry: metrics server stopped")
			}
		}()
	}

	coord := rxminer.New(cfg, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := coord.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "rxminer: connect failed:", err)
		return 1
	}

	logrus.WithFields(logrus.Fields{
		"pool":    cfg.Pool.Host + ":" + cfg.Pool.Port,
		"threads": cfg.Threads,
	}).Info("rxminer: started")

	shutdownCh := make(chan struct{})
	var shutdownOnce sync.Once

	go watchSignals(shutdownCh, &shutdownOnce)
	go watchKeys(coord, shutdownCh, &shutdownOnce)
	go sampleHashrate(coord, shutdownCh)

	<-shutdownCh
	coord.Shutdown()
	logrus.Info("rxminer: shut down cleanly")
	return 0
}

func watchSignals(shutdownCh chan struct{}, once *sync.Once) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logrus.Info("rxminer: signal received, shutting down")
	once.Do(func() { close(shutdownCh) })
}

// watchKeys reads raw-mode stdin for the q/Q shutdown and s/S hashrate
// summary keys described in spec.md §6. If stdin is not a terminal (e.g.
// running under a service manager), it does nothing.
func watchKeys(coord *rxminer.Coordinator, shutdownCh chan struct{}, once *sync.Once) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		logrus.WithError(err).Warn("rxminer: failed to set raw terminal mode")
		return
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			return
		}

		switch buf[0] {
		case 'q', 'Q':
			logrus.Info("rxminer: quit key pressed, shutting down")
			once.Do(func() { close(shutdownCh) })
			return
		case 's', 'S':
			avg1m, avg15m, avg1h := coord.Averages()
			fmt.Printf("\rhashrate: 1m=%.2f H/s 15m=%.2f H/s 1h=%.2f H/s\n", avg1m, avg15m, avg1h)
		}
	}
}

// sampleHashrate ticks once a minute, converting the pool's cumulative
// hash counter delta into a H/s sample for the telemetry tracker.
func sampleHashrate(coord *rxminer.Coordinator, shutdownCh chan struct{}) {
	const interval = time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ticker.C:
			total := coord.TotalHashes()
			delta := total - last
			last = total
			coord.SampleHashrate(float64(delta) / interval.Seconds())
		case <-shutdownCh:
			return
		}
	}
}

