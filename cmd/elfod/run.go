package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btclog"
	"github.com/spf13/cobra"

	"github.com/elfogo/elfo/internal/build"
	"github.com/elfogo/elfo/internal/elfo"
)

var (
	configPath     string
	logDir         string
	maxLogFiles    int
	maxLogFileSize int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo producer/aggregator topology",
	RunE:  runDemo,
}

func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML group-config file (optional)")
	runCmd.Flags().StringVar(&logDir, "log-dir", "", "Directory for rotating log files (empty disables file logging)")
	runCmd.Flags().IntVar(&maxLogFiles, "max-log-files", build.DefaultMaxLogFiles, "Maximum rotated log files to keep")
	runCmd.Flags().IntVar(&maxLogFileSize, "max-log-file-size", build.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
}

func runDemo(cmd *cobra.Command, args []string) error {
	var logRotator *build.RotatingLogWriter
	if logDir != "" {
		logRotator = build.NewRotatingLogWriter()
		if err := logRotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         logDir,
			MaxLogFiles:    maxLogFiles,
			MaxLogFileSize: maxLogFileSize,
		}); err != nil {
			log.Printf("failed to init log rotator: %v (continuing without file logging)", err)
			logRotator = nil
		} else {
			defer logRotator.Close()
			log.SetOutput(io.MultiWriter(os.Stderr, logRotator))
		}
	}

	var handlers []btclog.Handler
	handlers = append(handlers, btclog.NewDefaultHandler(os.Stderr))
	if logRotator != nil {
		handlers = append(handlers, btclog.NewDefaultHandler(logRotator))
	}
	combined := build.NewHandlerSet(handlers...)
	elfo.UseLogger(btclog.NewSLogger(combined))

	topo := buildDemoTopology()

	if configPath != "" {
		raw, err := elfo.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		if err := elfo.ApplyConfig(cmd.Context(), topo, raw, configPath); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := topo.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("elfod running; press ctrl-c to stop")
	<-sigCh
	log.Println("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := topo.Shutdown(shutdownCtx); err != nil {
		log.Printf("topology shutdown incomplete: %v", err)
	}

	return nil
}
