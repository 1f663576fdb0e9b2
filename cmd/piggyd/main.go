package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"piggyvault/config"
	"piggyvault/core/events"
	"piggyvault/core/types"
	"piggyvault/native/dex"
	"piggyvault/native/piggy"
	"piggyvault/native/registry"
	"piggyvault/observability/logging"
	"piggyvault/rpc"
	"piggyvault/state"
	"piggyvault/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to the TOML config file")
	flag.Parse()

	logger := logging.Setup("piggyd", os.Getenv("PIGGY_ENV"))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	bus := events.NewBus(0)

	admin, err := adminAddress(cfg)
	if err != nil {
		logger.Error("invalid admin address", "error", err)
		os.Exit(1)
	}

	piggyEngine := piggy.NewEngine()
	piggyEngine.SetState(manager)
	piggyEngine.SetTreasury(admin)
	piggyEngine.SetEmitter(bus)

	registryEngine := registry.NewEngine()
	registryEngine.SetState(manager)
	registryEngine.SetFactory(piggyEngine)
	registryEngine.SetAdmin(admin)
	registryEngine.SetEmitter(bus)

	dexEngine := dex.NewEngine()
	dexEngine.SetState(manager)
	dexEngine.SetAdmin(admin)
	dexEngine.SetEmitter(bus)

	if err := registryEngine.Bootstrap(); err != nil {
		logger.Error("registry bootstrap failed", "error", err)
		os.Exit(1)
	}
	if err := seedWhitelist(registryEngine, admin, cfg); err != nil {
		logger.Error("whitelist seeding failed", "error", err)
		os.Exit(1)
	}
	if err := manager.DexSetFeeBps(cfg.SwapFeeBps); err != nil {
		logger.Error("failed to set swap fee", "error", err)
		os.Exit(1)
	}

	server := rpc.NewServer(registryEngine, piggyEngine, dexEngine, manager, bus)
	logger.Info("starting rpc server",
		"address", cfg.RPCAddress,
		"network", cfg.NetworkName,
		"swap_fee_bps", cfg.SwapFeeBps)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "error", err)
		os.Exit(1)
	}
}

func adminAddress(cfg *config.Config) ([20]byte, error) {
	raw := strings.TrimSpace(cfg.AdminAddr)
	if raw == "" {
		return [20]byte{}, nil
	}
	asset, err := types.ParseAsset(raw)
	if err != nil {
		return [20]byte{}, err
	}
	return [20]byte(asset), nil
}

// seedWhitelist applies the configured token whitelist through the engine so
// the same validation and events fire as for runtime whitelisting.
func seedWhitelist(engine *registry.Engine, admin [20]byte, cfg *config.Config) error {
	if len(cfg.Whitelist) > 0 && admin == ([20]byte{}) {
		return fmt.Errorf("AdminAddress required to seed the token whitelist")
	}
	for _, entry := range cfg.Whitelist {
		asset, err := types.ParseAsset(entry.Asset)
		if err != nil {
			return err
		}
		var maxAmount *big.Int
		if trimmed := strings.TrimSpace(entry.MaxAmount); trimmed != "" {
			var ok bool
			maxAmount, ok = new(big.Int).SetString(trimmed, 10)
			if !ok {
				return fmt.Errorf("invalid MaxAmount %q for asset %s", entry.MaxAmount, asset)
			}
		}
		if err := engine.WhitelistAsset(admin, asset, maxAmount); err != nil {
			return err
		}
		slog.Info("whitelisted asset from config", "asset", asset.String())
	}
	return nil
}
