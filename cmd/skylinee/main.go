package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/abdoulgee/skylinee/internal/app"
	"github.com/abdoulgee/skylinee/pkg/config"
)

// build metadata, set via ldflags on release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Explicit flags win over env and file.
	if setFlags["addr"] {
		if host, port, ok := strings.Cut(addrVal, ":"); ok {
			cfg.Server.Address = host
			if p, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = p
			}
		} else {
			cfg.Server.Address = addrVal
		}
	}
	if setFlags["db"] || cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = dbVal
	}

	var srcs []string
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}

	a, err := app.New(cfg, strings.Join(srcs, ", "), version, commit, buildDate)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		log.Printf("signal received: %v, shutting down", s)
		cancel()
	}()

	if err := a.Run(ctx); err != nil {
		a.Shutdown()
		log.Fatalf("server error: %v", err)
	}
	a.Shutdown()
}
