package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kass/go-proximity-index/pkg/config"
	"github.com/kass/go-proximity-index/pkg/logger"
	"github.com/kass/go-proximity-index/pkg/metrics"
	"github.com/kass/go-proximity-index/pkg/notify"
	"github.com/kass/go-proximity-index/pkg/server"
	"github.com/kass/go-proximity-index/pkg/tracker"
)

var (
	configFile string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "proximity-index",
	Short: "Geohash-bucketed live proximity detection engine",
	Long:  `Tracks live agent positions in a geohash-bucketed index and detects which agents are within a small distance threshold of each position update.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the location update API server",
	Long:  `Start the HTTP server that receives position updates and returns detected encounters.`,
	Run:   runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(serveCmd, benchCmd, simulateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	engine, err := tracker.New(cfg.TrackerConfig())
	if err != nil {
		log.Error("failed to create tracker", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	reg.MustRegister(metrics.NewTrackerCollector(engine))

	sinks := notify.Multi{notify.NewSlog(log)}
	if cfg.Notify.DiscordWebhookURL != "" {
		sinks = append(sinks, notify.NewDiscord(cfg.Notify.DiscordWebhookURL))
		log.Info("discord notifications enabled")
	}
	if cfg.Notify.Redis.Addr != "" {
		redisSink := notify.NewRedis(cfg.Notify.Redis.Addr, cfg.Notify.Redis.Channel)
		defer redisSink.Close()
		sinks = append(sinks, redisSink)
		log.Info("redis notifications enabled", "channel", cfg.Notify.Redis.Channel)
	}

	srv := server.New(engine, sinks, log, reg)

	log.Info("listening",
		"addr", cfg.Server.Addr,
		"precision", cfg.Tracker.Precision,
		"threshold_m", cfg.Tracker.ThresholdMeters,
		"window_s", cfg.Tracker.TimeWindowSeconds,
	)
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Handler()); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
