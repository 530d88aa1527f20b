package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/meshpage/meshpage"
	"github.com/meshpage/meshpage/config"
	"github.com/meshpage/meshpage/mgr"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Serve the topology page",
		RunE:  run,
	}

	sigUSR1 = syscall.Signal(0xa)
)

func run(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.SetDevMode(*devMode)

	// Configure logging.
	if err := setupLogging(*logLevel); err != nil {
		return err
	}

	// Setup up everything.
	mp, err := meshpage.New(Version, c)
	if err != nil {
		return fmt.Errorf("failed to initialize meshpage: %w", err)
	}

	// Log alert changes.
	mp.AddAlertsCallback("log alerts", logAlerts)

	// Finalize and start all workers.
	err = mp.Start()
	if err != nil {
		return fmt.Errorf("failed to start meshpage: %w", err)
	}
	slog.Info(
		"meshpage started",
		"version", Version,
		"listen", c.APIListen.String(),
		"source", mp.Source().Name(),
	)

	// Wait for signal.
	signalCh := make(chan os.Signal, 1)
	signal.Notify(
		signalCh,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
		sigUSR1,
	)

signalLoop:
	for {
		select {
		case sig := <-signalCh:
			switch sig {
			case sigUSR1:
				// Only print and continue to wait.
				printStackTo(os.Stderr, "PRINTING STACK ON REQUEST")
				continue signalLoop

			case syscall.SIGHUP:
				// Reload mesh data.
				slog.Info("reloading mesh data on request")
				mp.Source().Reload()
				continue signalLoop
			}

			fmt.Println(" <INTERRUPT>") // CLI output.
			slog.Warn("program was interrupted, stopping")

			// catch signals during shutdown
			go func() {
				forceCnt := 5
				for {
					<-signalCh
					forceCnt--
					if forceCnt > 0 {
						fmt.Printf(" <INTERRUPT> again, but already shutting down - %d more to force\n", forceCnt)
					} else {
						printStackTo(os.Stderr, "PRINTING STACK ON FORCED EXIT")
						os.Exit(1)
					}
				}
			}()

			go func() {
				time.Sleep(1 * time.Minute)
				printStackTo(os.Stderr, "PRINTING STACK - TAKING TOO LONG FOR SHUTDOWN")
				os.Exit(1)
			}()

			if !mp.Stop() {
				slog.Error("failed to stop meshpage")
				os.Exit(1)
			}
			break signalLoop

		case <-mp.Done():
			break signalLoop
		}
	}

	return nil
}

func logAlerts(w *mgr.WorkerCtx, update mgr.AlertUpdate) (cancel bool, err error) {
	if len(update.Alerts) == 0 {
		slog.Info("all alerts resolved", "module", update.Module)
		return false, nil
	}
	for _, a := range update.Alerts {
		slog.Warn(
			a.Name,
			"module", update.Module,
			"severity", a.Severity,
			"msg", a.Message,
		)
	}
	return false, nil
}

func setupLogging(level string) error {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q", level)
	}

	logOutput := os.Stdout
	slog.SetDefault(slog.New(
		tint.NewHandler(colorable.NewColorable(logOutput), &tint.Options{
			AddSource:  *devMode,
			Level:      lvl,
			TimeFormat: time.DateTime,
			NoColor:    !isatty.IsTerminal(logOutput.Fd()),
		}),
	))
	return nil
}

func printStackTo(writer io.Writer, msg string) {
	_, err := fmt.Fprintf(writer, "===== %s =====\n", msg)
	if err == nil {
		err = pprof.Lookup("goroutine").WriteTo(writer, 1)
	}
	if err != nil {
		slog.Error("failed to write stack trace", "err", err)
	}
}
