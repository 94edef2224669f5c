package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rockfall/arena/internal/auth"
	"github.com/rockfall/arena/internal/config"
	"github.com/rockfall/arena/internal/core/event"
	coresys "github.com/rockfall/arena/internal/core/system"
	"github.com/rockfall/arena/internal/data"
	"github.com/rockfall/arena/internal/lobby"
	gonet "github.com/rockfall/arena/internal/net"
	"github.com/rockfall/arena/internal/persist"
	"github.com/rockfall/arena/internal/physics"
	"github.com/rockfall/arena/internal/scripting"
	"github.com/rockfall/arena/internal/system"
	"github.com/rockfall/arena/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "token: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m            Rockfall Arena  v0.1.0         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s\n\n", serverName)
}

func printSection(title string) {
	lineLen := max(46-len(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value string) {
	dotsLen := max(42-len(label)-len(value), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), value)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func configPath() string {
	if p := os.Getenv("ARENA_CONFIG"); p != "" {
		return p
	}
	return "config/server.toml"
}

func run() error {
	// 1. Config and logger
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	printBanner(cfg.Server.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Game log storage
	printSection("storage")
	var (
		sink    system.ResultSink
		writer  *persist.ResultWriter
		results gonet.Results
	)
	if cfg.Database.DSN == "" {
		sink = persist.NewLogSink(log)
		printOK("no database configured, results go to the log")
	} else {
		connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(connCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		err = persist.RunMigrations(connCtx, db.Pool)
		cancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printOK("migrations applied")

		repo := persist.NewGameLogRepo(db)
		writer = persist.NewResultWriter(repo, persist.WriterOptions{QueueSize: cfg.Database.WriteQueueSize}, log)
		sink, results = writer, repo
	}
	fmt.Println()

	// 3. Game data and scoring
	printSection("game data")
	maps, err := data.LoadMapTable(cfg.Game.MapsFile)
	if err != nil {
		return fmt.Errorf("maps: %w", err)
	}
	printStat("maps", fmt.Sprintf("%d", maps.Count()))

	lua, err := scripting.NewEngine(cfg.Game.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer lua.Close()
	printOK("scoring scripts loaded")
	fmt.Println()

	// 4. Rooms, lobby and identity
	validator, err := newValidator(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	variant, err := gonet.ParseRelayVariant(cfg.Relay.Variant)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	rooms := world.NewManager(cfg.Game.CommandQueueSize, log)
	roster := lobby.NewRoster(log)
	hub := gonet.NewHub(log)
	authoritative := gonet.NewAuthoritative(rooms, hub, maps, cfg.Game.JoinTimeout, log)
	relay := gonet.NewRelay(variant, hub, roster, sink, log)

	// 5. Systems, registered in phase order by the runner
	bus := event.NewBus()
	engine := physics.NewEngine(lua, log)
	outbox := &system.Outbox{}
	now := time.Now
	finalizer := system.NewFinalizer(rooms, bus, sink, roster, cfg.Game.CleanupDelay, log)

	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(rooms, engine, bus, cfg.Game.Countdown, cfg.Game.MaxCommandsTick, now, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewSimulationSystem(rooms, engine, finalizer, bus, outbox, now, log))
	runner.Register(system.NewOutputSystem(outbox, hub, log))
	runner.Register(system.NewCleanupSystem(rooms, now, log))
	system.SubscribeGameLog(bus, log)

	// 6. HTTP and websocket surface
	wsOpts := gonet.ConnOptions{
		OutQueueSize:   cfg.Network.OutQueueSize,
		ReadTimeout:    cfg.Network.ReadTimeout,
		WriteTimeout:   cfg.Network.WriteTimeout,
		MaxMessageSize: cfg.Network.MaxMessageSize,
	}
	handler := gonet.NewHandler(hub, validator, roster, authoritative, relay, wsOpts, log)
	api := gonet.NewAPI(roster, rooms, authoritative, relay, hub, results, cfg.Game.Countdown, log)
	router := gonet.NewRouter(handler, api, cfg.Network.AllowedOrigins)

	server, err := gonet.NewServer(cfg.Network.BindAddress, router, log)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", server.Addr().String()))
	printReady(fmt.Sprintf("game loop started (tick: %s)", cfg.Network.TickRate))
	printReady(fmt.Sprintf("relay variant %s, auth %s", cfg.Relay.Variant, cfg.Auth.Mode))
	fmt.Println()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error {
		gameLoop(gctx, runner, cfg.Network.TickRate)
		return nil
	})
	if writer != nil {
		g.Go(func() error { return writer.Run(gctx) })
	}

	err = g.Wait()
	log.Info("server stopped", zap.Int("rooms", rooms.Count()), zap.Int("relay_rooms", relay.Count()))
	return err
}

func gameLoop(ctx context.Context, runner *coresys.Runner, tickRate time.Duration) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runner.Tick(tickRate)
		case <-ctx.Done():
			return
		}
	}
}

func newValidator(cfg config.AuthConfig) (auth.Validator, error) {
	switch strings.ToLower(cfg.Mode) {
	case "static":
		return auth.NewStaticValidator(cfg.Users), nil
	case "jwt":
		return auth.NewJWTValidator(cfg.Secret, cfg.Issuer), nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
}

// issueToken prints a session token for local testing:
// arena token <username> [ttl]
func issueToken(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: arena token <username> [ttl]")
	}
	ttl := 24 * time.Hour
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("ttl: %w", err)
		}
		ttl = d
	}
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	if !strings.EqualFold(cfg.Auth.Mode, "jwt") {
		return fmt.Errorf("tokens can only be issued in jwt mode")
	}
	tok, err := auth.NewJWTValidator(cfg.Auth.Secret, cfg.Auth.Issuer).Issue(args[0], ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
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
