package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IlyasAtabaev731/nickpay/internal/config"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/logger"
	"github.com/IlyasAtabaev731/nickpay/internal/lib/logger/sl"
	"github.com/IlyasAtabaev731/nickpay/internal/sandbox"
	"github.com/shopspring/decimal"
)

func main() {
	var configPath string
	var seed bool

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.BoolVar(&seed, "seed", false, "create demo accounts maria/abc and joao/xyz")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := logger.Setup(cfg.Env, os.Stdout)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.Sandbox.Host),
		slog.Int("port", cfg.Sandbox.Port),
	)

	startingBalance, err := decimal.NewFromString(cfg.Sandbox.StartingBalance)
	if err != nil {
		log.Error("Invalid starting balance", sl.Err(err))
		os.Exit(1)
	}

	apiServer := sandbox.New(cfg.Sandbox, log, sandbox.NewLedger(startingBalance))

	if seed {
		for _, u := range []struct{ name, document, nickname, password string }{
			{"Maria Silva", "00000000001", "maria", "abc"},
			{"Joao Souza", "00000000002", "joao", "xyz"},
		} {
			if _, err := apiServer.RegisterUser(u.name, u.document, u.nickname, u.password); err != nil {
				log.Error("Failed to seed user", slog.String("nickname", u.nickname), sl.Err(err))
				os.Exit(1)
			}
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		log.Error("Stopping server error", sl.Err(err))
	}
}
