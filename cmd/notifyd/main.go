package main

import (
	"context"
	"flag"
	"log/slog"
	"notify-backend/lib/configutil"
	"notify-backend/lib/serviceutil"
	"notify-backend/lib/telemetry"
	"notify-backend/services/brightspace/db"
	"notify-backend/services/brightspace/scraper"
	"notify-backend/services/brightspace/server"
	"notify-backend/services/brightspace/session"
	"os"
	"time"
)

type Config struct {
	Port   int `json:"port"`
	Portal struct {
		BaseUrl string `json:"base_url"`
	} `json:"portal"`
	Browser struct {
		ExecPath string `json:"exec_path"`
	} `json:"browser"`
	Session struct {
		StatePath string `json:"state_path"`
		// hours between unconditional session expiries
		ExpiryHours int `json:"expiry_hours"`
	} `json:"session"`
	Database struct {
		Path string `json:"path"`
	} `json:"database"`
	// seconds a scrape result stays served from cache
	CacheSeconds int `json:"cache_seconds"`
}

func main() {
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()
	telemetry.InitSlog(*verbose)

	ctx := serviceutil.SignalContext()

	// every setting has a default, a missing config file just means
	// a stock local deployment
	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !os.IsNotExist(err) {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.Port == 0 {
		config.Port = 8420
	}
	if config.Portal.BaseUrl == "" {
		config.Portal.BaseUrl = "https://bigsky.benilde.edu.ph"
	}
	if config.Session.StatePath == "" {
		config.Session.StatePath = "state.json"
	}
	if config.Session.ExpiryHours == 0 {
		config.Session.ExpiryHours = 24 * 7
	}
	if config.Database.Path == "" {
		config.Database.Path = "notify.db"
	}
	if config.CacheSeconds == 0 {
		config.CacheSeconds = 120
	}

	t, err := telemetry.SetupFromEnv(ctx, "notifyd")
	if err != nil {
		slog.Warn("running without telemetry", "err", err)
	} else {
		defer t.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)
	}

	database, err := db.Open(config.Database.Path)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}
	defer database.Close()

	sessions := session.NewFileStore(config.Session.StatePath)
	sessions.StartExpiryDaemon(ctx, time.Duration(config.Session.ExpiryHours)*time.Hour)

	backend, err := scraper.New(scraper.Options{
		BaseUrl:  config.Portal.BaseUrl,
		ExecPath: config.Browser.ExecPath,
		Store:    sessions,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize scraper", err)
	}

	service := server.NewService(
		backend,
		sessions,
		db.NewSnapshotStore(database),
		time.Duration(config.CacheSeconds)*time.Second,
	)

	go serviceutil.StartHttpServer(config.Port, service.Router())

	<-ctx.Done()
}
