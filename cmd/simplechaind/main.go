// Command simplechaind runs one peer-to-peer cryptocurrency node: it binds
// a wallet identity, a ledger, and a peer registry to an HTTP listener on
// --port (spec §6 CLI surface).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/vrecan/death/v3"

	"github.com/simplechain-go/simplechain/config"
	"github.com/simplechain-go/simplechain/httpapi"
	"github.com/simplechain-go/simplechain/node"
	"github.com/simplechain-go/simplechain/pkg/logging"
)

func main() {
	port := flag.Int("port", config.DefaultPort, "HTTP listen port; also selects the persisted state and wallet file names")
	dataDir := flag.String("data-dir", ".", "directory holding the config, state, and wallet files")
	logLevel := flag.String("log-level", "", "override the configured log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(config.PathIn(*dataDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "simplechaind: load config: %v\n", err)
		os.Exit(1)
	}
	cfg.DataDir = *dataDir
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "port" {
			cfg.Port = *port
		}
	})
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logging.SetDefault(logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Prefix: "simplechaind",
		Output: os.Stderr,
	}))
	log := logging.GetDefault().Component("main")

	n, err := node.New(cfg)
	if err != nil {
		log.Error("failed to start node", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      httpapi.NewHandler(n),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("listening", "port", cfg.Port, "data_dir", cfg.DataDir)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped unexpectedly", "error", err)
		}
	}()

	d := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	d.WaitForDeathWithFunc(func() {
		defer runtime.Goexit()
		log.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("error during shutdown", "error", err)
		}
	})
}
