package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotcal/internal/config"
	appLog "slotcal/internal/log"
	"slotcal/internal/planner"
	"slotcal/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	listen     string
	jsonOut    string
	icsOut     string
	logLevel   string
	noWatch    bool
}

// apply copies command-line overrides onto cfg.
func (f flagConfig) apply(cfg *config.Config) {
	if f.listen != "" {
		cfg.Listen = f.listen
	}
	if f.jsonOut != "" {
		cfg.Output.JSON = f.jsonOut
	}
	if f.icsOut != "" {
		cfg.Output.ICS = f.icsOut
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
}

func main() {
	mode, flags := parseFlags()
	appLog.Info("slotcal starting", "version", version, "mode", mode)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	flags.apply(conf)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"lookahead_days", conf.LookaheadDays,
		"ordering", conf.Ordering,
		"busy_calendars", len(conf.BusyCalendars),
		"tasks", len(conf.Tasks),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	p := planner.New(conf)

	switch mode {
	case "plan":
		err = runPlan(ctx, p)
	case "serve":
		err = runServe(ctx, p, flags)
	}
	if err != nil {
		appLog.Error("slotcal failed", err, "mode", mode)
		os.Exit(1)
	}
	appLog.Info("slotcal exiting")
}

// runPlan performs one pass and exits.
func runPlan(ctx context.Context, p *planner.Planner) error {
	plan, err := p.Run(ctx)
	if err != nil {
		return err
	}
	for _, l := range plan.Logs {
		appLog.Info("schedule "+string(l.Type), "message", l.Message)
	}
	for _, s := range plan.Sources {
		if s.Error != "" {
			appLog.Warn("busy calendar unavailable", "id", s.ID, "err", s.Error)
		}
	}
	return nil
}

// runServe plans once, then serves the API, re-plans on the refresh spec and
// follows config edits until ctx is cancelled.
func runServe(ctx context.Context, p *planner.Planner, flags flagConfig) error {
	if _, err := p.Run(ctx); err != nil {
		appLog.Error("initial plan failed", err)
	}

	runner := planner.NewRunner(p)
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	if !flags.noWatch {
		go func() {
			_ = planner.Watch(ctx, flags.configPath, func(cfg *config.Config) {
				flags.apply(cfg)
				appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
				if err := runner.Apply(cfg); err != nil {
					appLog.Error("failed to apply reloaded config", err)
					return
				}
				runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
				defer cancel()
				if _, err := p.Run(runCtx); err != nil {
					appLog.Error("plan after reload failed", err)
				}
			})
		}()
	}

	return web.StartServer(ctx, p.Config().Listen, web.NewServer(p))
}

func parseFlags() (string, flagConfig) {
	var cfg flagConfig

	fs := flag.NewFlagSet("slotcal", flag.ExitOnError)
	fs.StringVar(&cfg.configPath, "config", "./slotcal.yaml", "Path to config file")
	fs.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	fs.StringVar(&cfg.jsonOut, "json", "", "Write the plan as JSON to this path (overrides config)")
	fs.StringVar(&cfg.icsOut, "ics", "", "Write the plan as iCalendar to this path (overrides config)")
	fs.StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	fs.BoolVar(&cfg.noWatch, "no-watch", false, "Do not reload the config file on change (serve only)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: slotcal [plan|serve] [flags]\n\n")
		fs.PrintDefaults()
	}

	args := os.Args[1:]
	mode := "plan"
	if len(args) > 0 && (args[0] == "plan" || args[0] == "serve") {
		mode, args = args[0], args[1:]
	}
	_ = fs.Parse(args)

	return mode, cfg
}
