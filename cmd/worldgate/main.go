package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/voxelhall/worldgate/internal/config"
	"github.com/voxelhall/worldgate/internal/core/event"
	coresys "github.com/voxelhall/worldgate/internal/core/system"
	"github.com/voxelhall/worldgate/internal/data"
	"github.com/voxelhall/worldgate/internal/handler"
	gonet "github.com/voxelhall/worldgate/internal/net"
	"github.com/voxelhall/worldgate/internal/net/packet"
	"github.com/voxelhall/worldgate/internal/persist"
	"github.com/voxelhall/worldgate/internal/policy"
	"github.com/voxelhall/worldgate/internal/scripting"
	"github.com/voxelhall/worldgate/internal/system"
	"github.com/voxelhall/worldgate/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              worldgate  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-len(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("WORLDGATE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	// 3. Connect to PostgreSQL and run migrations
	printSection("database")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	printOK("PostgreSQL connected")

	version, err := persist.RunMigrations(ctx, db.Pool, log)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	printOK(fmt.Sprintf("migrations applied (version %d)", version))
	fmt.Println()

	// 4. Repositories and data tables
	accountRepo := persist.NewAccountRepo(db)
	auditRepo := persist.NewAuditRepo(db)

	printSection("data")
	media, err := data.LoadMediaTable(cfg.Media.Manifest, cfg.Media.Dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("media manifest missing, announcing no media", zap.String("path", cfg.Media.Manifest))
		media = nil
	case err != nil:
		return fmt.Errorf("media: %w", err)
	default:
		printStat("media files", media.Count())
	}

	// 5. Scripting
	engine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer engine.Close()
	var hook policy.Hook
	if engine.HasViolationHook() {
		hook = engine
		printOK("policy hook on_violation loaded")
	}
	fmt.Println()

	// 6. Command table
	worldState := world.NewState()
	deps := &handler.Deps{
		Accounts: accountRepo,
		Config:   cfg,
		Log:      log,
		World:    worldState,
		Media:    media,
	}
	registry, err := handler.NewRegistry(deps)
	if err != nil {
		return fmt.Errorf("command table: %w", err)
	}
	dispatcher := packet.NewDispatcher(registry, log)
	guard := policy.NewGuard(cfg.Policy, hook, log)

	printSection("commands")
	live, deprecated := 0, 0
	registry.Range(func(_ packet.Opcode, d packet.Descriptor) {
		switch {
		case d.Deprecated:
			deprecated++
		case !d.IsNull():
			live++
		}
	})
	printStat("commands", live)
	printStat("deprecated", deprecated)
	fmt.Println()

	// 7. Create network server
	pps := 0
	if cfg.RateLimit.Enabled {
		pps = cfg.RateLimit.PacketsPerSecond
	}
	netServer, err := gonet.NewServer(cfg.Network.BindAddress, gonet.SessionOptions{
		InQueueSize:      cfg.Network.InQueueSize,
		OutQueueSize:     cfg.Network.OutQueueSize,
		PacketsPerSecond: pps,
		WriteTimeout:     cfg.Network.WriteTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	go netServer.AcceptLoop()

	// 8. Create systems and register with runner
	bus := event.NewBus()
	stats := &system.Stats{}
	runner := coresys.NewRunner(cfg.Network.TickRate, log)
	inputSys := system.NewInputSystem(netServer, dispatcher, guard, gonet.NewSessionStore(),
		worldState, bus, stats, cfg.Network.MaxPacketsPerTick, log)
	runner.Register(inputSys)
	runner.Register(system.NewEventSystem(bus))
	runner.Register(system.NewStatsSystem(stats, bus, cfg.Logging.StatsInterval, inputSys.SessionCount, log))
	var auditSys *system.AuditSystem
	if cfg.Audit.Enabled {
		auditSys = system.NewAuditSystem(auditRepo, bus, cfg.Audit, log)
		runner.Register(auditSys)
	}

	// 9. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("game loop running (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			netServer.Shutdown()
			inputSys.CloseAll()
			// deliver the termination events raised above before the last flush
			runner.TickPhase(coresys.PhasePreUpdate, 0)
			if auditSys != nil {
				auditSys.Flush()
			}
			log.Info("server stopped", zap.Int64("unreleased_sessions", netServer.Live()))
			return nil
		}
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
