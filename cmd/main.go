package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "heater_host/docs"
	"heater_host/internal/handlers"
	"heater_host/internal/heater"
	"heater_host/internal/logger"
	"heater_host/internal/repository"
	"heater_host/internal/repository/db"
	"heater_host/internal/server"
	"heater_host/internal/service"

	"github.com/spf13/viper"
)

const defaultSimTick = 250 * time.Millisecond

// heaterEntry is one item of the config's heaters list: the heater
// parameters plus the simulated plant backing it.
type heaterEntry struct {
	heater.Config `mapstructure:",squash"`
	Plant         service.PlantConfig `mapstructure:"plant"`
}

// @title           Heater Host API
// @version         1.0
// @description     Closed-loop temperature control for 3D-printer heaters: live telemetry, target commands and bump-test calibration.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	clock := heater.NewSystemClock()
	registry := heater.NewRegistry(log)
	sim := service.NewSimulatorService(repos.StateRepo, repos.EventRepo, registry, clock, log)

	if err := setupHeaters(registry, sim, clock); err != nil {
		log.Fatalw("failed to set up heaters", "err", err)
	}

	services := service.NewService(service.Deps{
		Repos:      repos,
		Registry:   registry,
		Clock:      clock,
		Simulator:  sim,
		SigningKey: viper.GetString("signing_key"),
		Log:        log,
	})
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start the simulated plants (via composed service)
	go services.Simulator.Run(ctx, simTick())

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "heater_host.db")
		dbPath = "heater_host.db"
	}
	return db.InitDB(dbPath)
}

// setupHeaters builds one simulated plant per configured heater and
// registers the heaters with the registry. The plant doubles as PWM
// output and temperature sensor.
func setupHeaters(registry *heater.Registry, sim *service.SimulatorService, clock heater.Clock) error {
	var entries []heaterEntry
	if err := viper.UnmarshalKey("heaters", &entries); err != nil {
		return err
	}
	registry.AddSensorFactory("simulated", func(cfg heater.Config) (heater.Sensor, error) {
		p, ok := sim.Plant(cfg.Name)
		if !ok {
			return nil, heater.NewError(heater.ErrUnknownSensor, "no simulated plant for heater %q", cfg.Name)
		}
		return p, nil
	})
	for _, e := range entries {
		plant := sim.CreatePlant(e.Config.Name, e.Plant)
		if _, err := registry.SetupHeater(e.Config, plant, clock); err != nil {
			return err
		}
	}
	return nil
}

func simTick() time.Duration {
	if ms := viper.GetInt("sim.tick_ms"); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultSimTick
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
