// Package main is the entry point for chatsync-host.
// chatsync-host is a reference host: it serves the host protocol from a
// local SQLite store so the engine and TUI can run without a phone bridge.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tOgg1/chatsync/internal/config"
	"github.com/tOgg1/chatsync/internal/db"
	"github.com/tOgg1/chatsync/internal/hostsim"
	"github.com/tOgg1/chatsync/internal/logging"
	"github.com/tOgg1/chatsync/internal/models"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configFile := flag.String("config", "", "config file (default is $HOME/.config/chatsync/config.yaml)")
	addr := flag.String("addr", "", "listen address, unix socket path or host:port (default host.addr)")
	dbPath := flag.String("db", "", "SQLite database path (default hostsim.db_path)")
	logLevel := flag.String("log-level", "", "override logging level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "override logging format (json, console)")
	seed := flag.Bool("seed", false, "create demo conversations on start")
	console := flag.Bool("console", false, "read simulation commands from stdin")
	flag.Parse()

	cfg, loader, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *addr != "" {
		cfg.Host.Addr = *addr
	}
	if *dbPath != "" {
		cfg.HostSim.DBPath = *dbPath
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	logger := logging.Component("chatsync-host")

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Warn().Err(err).Msg("failed to create directories")
	}

	if cfgUsed := loader.ConfigFileUsed(); cfgUsed != "" {
		logger.Debug().Str("config_file", cfgUsed).Msg("loaded config file")
	}

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Msg("chatsync-host starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := hostsim.New(hostsim.Config{
		DBPath:               cfg.HostSimDBPath(),
		CheckDelay:           cfg.HostSim.CheckDelay,
		FollowUpDelay:        cfg.HostSim.FollowUpDelay,
		InterventionDuration: cfg.HostSim.InterventionDuration,
		JournalLimit:         cfg.HostSim.JournalLimit,
		Store: db.Options{
			BusyTimeout:   cfg.HostSim.BusyTimeout,
			WriteAttempts: cfg.HostSim.WriteAttempts,
		},
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to open host store")
		os.Exit(1)
	}
	defer h.Close()

	if *seed {
		if err := seedDemo(ctx, h); err != nil {
			logger.Error().Err(err).Msg("failed to seed demo data")
			os.Exit(1)
		}
	}

	ln, err := hostsim.Listen(cfg.Host.Addr)
	if err != nil {
		logger.Error().Err(err).Str("addr", cfg.Host.Addr).Msg("failed to listen")
		os.Exit(1)
	}
	logger.Info().Str("addr", cfg.Host.Addr).Msg("listening")

	srv := hostsim.NewServer(h)
	go sweepLoop(ctx, h, cfg.HostSim.SweepInterval)
	if *console {
		go runConsole(ctx, h, os.Stdin)
	}

	if err := srv.Serve(ctx, ln); err != nil {
		logger.Error().Err(err).Msg("chatsync-host exited with error")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.SetConfigFile(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

func sweepLoop(ctx context.Context, h *hostsim.Host, interval time.Duration) {
	logger := logging.Component("chatsync-host")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Sweep(ctx); err != nil {
				logger.Warn().Err(err).Msg("sweep failed")
			}
		}
	}
}

func seedDemo(ctx context.Context, h *hostsim.Host) error {
	chats := []struct {
		id, name string
		group    bool
	}{
		{"alice@c.us", "Alice", false},
		{"bob@c.us", "Bob", false},
		{"family@g.us", "Family", true},
	}
	for _, c := range chats {
		if err := h.SeedChat(ctx, c.id, c.name, c.group); err != nil {
			return err
		}
	}
	if _, err := h.Receive(ctx, "alice@c.us", "Are we still on for Friday?"); err != nil {
		return err
	}
	now := time.Now()
	if _, err := h.SeedFollowUp(ctx, "bob@c.us", now.Add(2*time.Minute), "Did you get a chance to look at the quote?", 1, 2); err != nil {
		return err
	}
	if _, err := h.SeedFollowUp(ctx, "bob@c.us", now.Add(24*time.Hour), "Happy to answer any questions.", 2, 2); err != nil {
		return err
	}
	return nil
}

// runConsole reads simple commands so a developer can drive pushes:
//
//	recv <chat> <text>   peer message
//	status <status>      connection status
//	log                  recent pushes
func runConsole(ctx context.Context, h *hostsim.Host, in *os.File) {
	logger := logging.Component("chatsync-host")
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.SplitN(strings.TrimSpace(scanner.Text()), " ", 3)
		switch {
		case len(fields) == 3 && fields[0] == "recv":
			if _, err := h.Receive(ctx, fields[1], fields[2]); err != nil {
				logger.Warn().Err(err).Msg("recv failed")
			}
		case len(fields) >= 2 && fields[0] == "status":
			reason := ""
			if len(fields) == 3 {
				reason = fields[2]
			}
			h.SetStatus(models.ParseConnectionStatus(fields[1]), reason)
		case len(fields) == 1 && fields[0] == "log":
			pushes, err := h.RecentPushes(ctx, 20)
			if err != nil {
				logger.Warn().Err(err).Msg("log failed")
				continue
			}
			for _, p := range pushes {
				fmt.Fprintf(os.Stdout, "%s  %-24s %-16s %s\n", p.SentAt.Local().Format("15:04:05"), p.Name, p.ChatID, p.Payload)
			}
		case len(fields) == 1 && fields[0] == "":
		default:
			fmt.Fprintln(os.Stderr, "commands: recv <chat> <text> | status <status> [reason] | log")
		}
	}
}
