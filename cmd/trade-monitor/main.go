package main

import (
	"context"
	"embed"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"trade-monitor/internal/app"
	"trade-monitor/internal/ipc"
	"trade-monitor/pkg/config"
	"trade-monitor/pkg/logger"
)

//go:embed assets/*
var embeddedAssets embed.FS

const usage = `Usage: trade-monitor [flags] [command [arg]]

Without a command the monitor runs in the foreground. Commands talk to a
running monitor over its control socket:

  toggle [on|off]     start or stop monitoring
  theme <name>        switch the panel theme
  reset               forget panel layout and theme
  status              show debug info
  history [limit]     show stored trades
  click               deliver a user gesture (releases blocked sounds)
  validate            report the table structure
  read-last           parse the top row
  simulate            push a sample trade through the pipeline
  test-notification   send a debug trade to the notifier
  tabs                list open pages
  activate <tab>      make a page the default target

Flags:
`

func main() {
	flags := pflag.NewFlagSet("trade-monitor", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	configPath := flags.String("config", "", "path to config file")
	debug := flags.Bool("debug", false, "enable debug logging")
	showPanel := flags.Bool("panel", false, "open the desktop stats panel")
	gestures := flags.Bool("gestures", false, "read user gestures from stdin, one tab per line")
	pages := flags.StringSlice("page", nil, "page URL to watch (repeatable, overrides config)")
	tab := flags.String("tab", "", "tab id or page path a command applies to")
	flags.Duration("poll-interval", 0, "page poll interval")
	flags.String("autoplay-policy", "", "allow or gesture")
	flags.String("accept-policy", "", "content or row-key")
	flags.String("panel-addr", "", "websocket panel listen address")
	flags.String("socket", "", "control socket path")
	flags.String("database", "", "sqlite database path")
	flags.String("notify-command", "", "custom notification command")
	flags.Parse(os.Args[1:])

	// Setup logging level
	logLevel := zerolog.InfoLevel
	if *debug {
		logLevel = zerolog.DebugLevel
	}

	// Initialize logger first for early logging
	log, err := logger.NewLogger(
		logger.WithConsole(),
		logger.WithLevel(logLevel),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	cfg, err := config.FindConfig(*configPath, log, embeddedAssets, changedOnly(flags))
	if err != nil {
		log.Error("Failed to load configuration", err, "provided_path", *configPath)
		os.Exit(1)
	}

	if args := flags.Args(); len(args) > 0 {
		os.Exit(runCommand(cfg, log, *tab, args))
	}

	if err := cfg.UsePageURLs(*pages); err != nil {
		log.Error("Invalid --page", err)
		os.Exit(1)
	}

	log.Info("Starting Trade Monitor",
		"version", "1.0.0",
		"pid", os.Getpid(),
		"os", runtime.GOOS,
		"arch", runtime.GOARCH,
		"debug", *debug,
		"pages", len(cfg.GetPages()))

	opts := app.Options{}
	if *gestures {
		opts.Gestures = os.Stdin
	}

	monitor, err := app.New(cfg, log, opts)
	if err != nil {
		log.Error("Failed to create trade monitor", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*showPanel {
		if err := monitor.Run(ctx); err != nil {
			log.Error("Application error", err)
			os.Exit(1)
		}
		return
	}

	// fyne owns the main goroutine; the monitor runs beside it
	ctx, cancel := context.WithCancel(ctx)
	window := monitor.NewWindow(fyneapp.NewWithID("trade-monitor"))
	done := make(chan error, 1)
	go func() {
		done <- monitor.Run(ctx)
		window.Close()
	}()

	window.ShowAndRun()
	cancel()
	if err := <-done; err != nil {
		log.Error("Application error", err)
		os.Exit(1)
	}
}

// changedOnly hides flags left at their zero default so they do not mask the
// config file.
func changedOnly(flags *pflag.FlagSet) *pflag.FlagSet {
	out := pflag.NewFlagSet("overrides", pflag.ContinueOnError)
	flags.Visit(func(f *pflag.Flag) { out.AddFlag(f) })
	return out
}

func runCommand(cfg *config.Config, log *logger.Logger, tab string, args []string) int {
	req := ipc.Request{Command: args[0], Tab: tab}
	if len(args) > 1 {
		req.Arg = strings.Join(args[1:], " ")
	}

	resp, err := ipc.SendCommand(cfg.GetSocketPath(), req, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trade-monitor is not running (%v)\n", err)
		return 1
	}

	fmt.Println(resp.Message)
	if len(resp.Data) > 0 {
		fmt.Println(string(resp.Data))
	}
	if resp.Status != "success" {
		return 1
	}
	return 0
}
