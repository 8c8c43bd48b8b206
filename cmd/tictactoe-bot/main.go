// Package main runs the tic-tac-toe chat bot together with its telnet chat
// gateway, metrics endpoint and gRPC health service.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tictactoe-bot/internal/bot"
	"github.com/cory-johannsen/tictactoe-bot/internal/bot/commands"
	"github.com/cory-johannsen/tictactoe-bot/internal/chat"
	"github.com/cory-johannsen/tictactoe-bot/internal/config"
	"github.com/cory-johannsen/tictactoe-bot/internal/game/ai"
	"github.com/cory-johannsen/tictactoe-bot/internal/gateway"
	"github.com/cory-johannsen/tictactoe-bot/internal/gateway/telnet"
	"github.com/cory-johannsen/tictactoe-bot/internal/messaging"
	"github.com/cory-johannsen/tictactoe-bot/internal/observability"
	"github.com/cory-johannsen/tictactoe-bot/internal/scripting"
	"github.com/cory-johannsen/tictactoe-bot/internal/server"
	"github.com/cory-johannsen/tictactoe-bot/internal/session"
	"github.com/cory-johannsen/tictactoe-bot/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "tictactoe-bot")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := messaging.ParsePolicy(cfg.Bot.ReplyPolicy)
	if err != nil {
		logger.Fatal("parsing reply policy", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	// Game history is optional; without a database stats are unavailable.
	var recorder session.ResultRecorder = session.NopRecorder{}
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		if err := pool.Health(ctx, 0); err != nil {
			logger.Fatal("database health check", zap.Error(err))
		}
		recorder = pool.Results()
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}

	scripts := scripting.NewManager(logger.Named("scripting"))
	defer scripts.Close()
	aiReg, err := loadAI(cfg.AI, scripts, logger)
	if err != nil {
		logger.Fatal("loading ai profiles", zap.Error(err))
	}
	logger.Info("ai profiles loaded",
		zap.Strings("profiles", aiReg.IDs()),
		zap.String("default", aiReg.Default().ID),
	)

	hub := gateway.NewHub(cfg.Bot.Name, logger.Named("gateway"))

	registry := session.NewRegistry(session.NewFactory(session.Deps{
		Settings: session.Settings{
			GameExpiry: cfg.Bot.GameExpiry,
			DuelExpiry: cfg.Bot.DuelExpiry,
			BotName:    cfg.Bot.Name,
			Prefix:     cfg.Bot.CommandPrefix,
		},
		Recorder: recorder,
		Observer: metrics,
		Logger:   logger.Named("session"),
	}), metrics)

	b := bot.New(hub, registry, bot.Options{
		Prefix:   cfg.Bot.CommandPrefix,
		Policy:   policy,
		Observer: metrics,
	}, logger.Named("bot"))
	if err := commands.Register(b, commands.Deps{
		Host:     b,
		AI:       aiReg,
		Users:    hub,
		Recorder: recorder,
		Logger:   logger.Named("commands"),
	}); err != nil {
		logger.Fatal("registering commands", zap.Error(err))
	}
	hub.Attach(func(ctx context.Context, e chat.Event) {
		b.HandleEvent(ctx, e)
	})

	lc := server.NewLifecycle(logger)

	acceptor := telnet.NewAcceptor(cfg.Gateway, hub, logger.Named("telnet"))
	if err := acceptor.Listen(); err != nil {
		logger.Fatal("starting chat gateway", zap.Error(err))
	}
	lc.Add("gateway", &server.FuncService{
		StartFn: acceptor.ListenAndServe,
		StopFn:  acceptor.Stop,
	})
	// Stopped before the gateway so connected users see their games retracted.
	lc.Add("sessions", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  b.Shutdown,
	})

	if cfg.Metrics.Enabled {
		router := server.NewMetricsRouter(metrics.Handler(), registry)
		lc.Add("metrics", server.NewHTTPService(cfg.Metrics.Addr(), router, logger.Named("metrics")))
	}

	if cfg.Health.Enabled {
		hs := server.NewHealthService(cfg.Health.Addr(), logger.Named("health"))
		if err := hs.Listen(); err != nil {
			logger.Fatal("starting health service", zap.Error(err))
		}
		components := []string{"gateway", "bot"}
		if cfg.Database.Enabled {
			components = append(components, "database")
		}
		hs.SetServing(true, components...)
		lc.Add("health", hs)
	}

	logger.Info("tictactoe bot ready",
		zap.String("gateway_addr", acceptor.Addr()),
		zap.String("prefix", cfg.Bot.CommandPrefix),
		zap.String("reply_policy", string(policy)),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lc.Run(ctx); err != nil {
		logger.Error("bot stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

// loadAI builds the difficulty registry. With no profiles directory only
// the builtin opponent is available.
func loadAI(cfg config.AIConfig, scripts *scripting.Manager, logger *zap.Logger) (*ai.Registry, error) {
	var profiles []*ai.Profile
	if cfg.ProfilesDir != "" {
		loaded, err := ai.LoadProfiles(cfg.ProfilesDir)
		if err != nil {
			return nil, err
		}
		for _, p := range loaded {
			if p.InstructionLimit == 0 {
				p.InstructionLimit = cfg.InstructionLimit
			}
		}
		profiles = loaded
	}
	return ai.NewRegistry(profiles, scripts, cfg.ScriptsDir, logger.Named("ai"))
}
