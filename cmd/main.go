package main

import (
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/joho/godotenv"
	cli "gopkg.in/urfave/cli.v1"

	"raffle/internal/config"
	"raffle/internal/handlers"
	"raffle/internal/keeper"
	"raffle/internal/payouts"
	"raffle/internal/services"
	"raffle/internal/store"
	"raffle/internal/vrf"
)

func main() {
	app := cli.NewApp()
	app.Name = "raffled"
	app.Usage = "fixed-stake raffle service driven by an external randomness oracle"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "config.toml",
			Usage: "path to the TOML configuration file",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	// .env is optional; everything it doesn't cover comes from the config file.
	_ = godotenv.Load()

	defer logger.Init(c.App.Name, c.Bool("verbose"), false, io.Discard).Close()

	// 1. Load and validate the configuration
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	settings := cfg.DrawSettings()

	// 2. Open the notification log
	var eventSink services.EventSink
	var eventSource handlers.EventSource
	if cfg.Store.Enabled {
		eventLog, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer eventLog.Close()
		eventSink, eventSource = eventLog, eventLog
	} else {
		mem := store.NewMemorySink(1000)
		eventSink, eventSource = mem, mem
	}

	// 3. Pick the randomness provider
	var provider vrf.Provider
	var local *vrf.LocalProvider
	switch cfg.VRF.Mode {
	case "http":
		provider = vrf.NewHTTPProvider(cfg.VRF.URL, time.Duration(cfg.VRF.TimeoutSeconds)*time.Second)
	default:
		local = vrf.NewLocalProvider(time.Duration(cfg.VRF.LocalDelaySeconds) * time.Second)
		provider = local
	}

	// 4. Pick the payment rail
	var rail payouts.Rail
	switch cfg.Payout.Mode {
	case "http":
		rail = payouts.NewHTTPRail(cfg.Payout.URL, time.Duration(cfg.Payout.TimeoutSeconds)*time.Second)
	default:
		rail = payouts.LogRail{}
	}

	// 5. Initialize the raffle service
	raffleService := services.NewRaffleService(settings, provider, rail, eventSink)
	if local != nil {
		local.Bind(func(requestID string, randomWords []*big.Int) error {
			_, err := raffleService.FulfillRandomness(requestID, randomWords)
			return err
		})
	}

	// 6. Start the upkeep keeper
	if cfg.Keeper.Enabled {
		k := keeper.New(raffleService, time.Duration(cfg.Keeper.PollSeconds)*time.Second)
		if err := k.Start(); err != nil {
			return err
		}
		defer k.Stop()
	} else {
		logger.Infof("Upkeep keeper disabled; draws rely on an external trigger source")
	}

	// 7. Set up the Gin router and run
	router := gin.Default()
	httpHandler := handlers.NewHTTPHandler(raffleService, eventSource)
	httpHandler.RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("Raffle open: entrance fee %s wei, interval %s, listening on %s",
		settings.EntranceFee, settings.Interval, addr)
	return router.Run(addr)
}
