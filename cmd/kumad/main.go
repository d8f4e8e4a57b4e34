package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kumachain/config"
	"kumachain/core/events"
	"kumachain/native/stake"
	"kumachain/native/token"
	"kumachain/observability/logging"
	"kumachain/rpc"
	"kumachain/services/hive"
	"kumachain/storage"
)

// slogEmitter forwards engine events to the structured logger.
type slogEmitter struct{}

func (slogEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	slog.Info("event", "type", evt.EventType())
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("KUMA_ENV"))
	logger := logging.Setup("kumad", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	owner, err := cfg.OwnerAddress()
	if err != nil {
		logger.Error("Invalid owner address", slog.Any("error", err))
		os.Exit(1)
	}
	module, err := cfg.ModuleAddress()
	if err != nil {
		logger.Error("Invalid module account", slog.Any("error", err))
		os.Exit(1)
	}
	maxSupply, err := cfg.MaxSupplyAmount()
	if err != nil {
		logger.Error("Invalid max supply", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	store := storage.NewStore(db)
	tokens := token.NewLedger(store, maxSupply)
	for _, addr := range [][20]byte{owner, module} {
		if !tokens.Registered(addr) {
			if err := tokens.Register(addr); err != nil {
				logger.Error("Failed to register account", slog.Any("error", err))
				os.Exit(1)
			}
		}
	}

	engine := stake.NewEngine(owner, module)
	engine.SetState(store)
	engine.SetTokenLedger(tokens)
	engine.SetEmitter(slogEmitter{})
	if err := engine.SetParams(stake.Params{FeePercent: cfg.FeePercent, RewardRate: cfg.RewardRate}); err != nil {
		logger.Error("Invalid staking params", slog.Any("error", err))
		os.Exit(1)
	}

	factory := hive.NewSimulator(engine)
	engine.SetDispatcher(factory)
	factory.Start()
	defer factory.Stop()

	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	server := rpc.NewServer(engine, tokens)
	logger.Info("Starting JSON-RPC server", slog.String("address", cfg.RPCAddress))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
