package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/sam831212/battery-etl/dblock"
	"github.com/sam831212/battery-etl/ingest"
	"github.com/sam831212/battery-etl/journal"
	"github.com/sam831212/battery-etl/logger"
	"github.com/sam831212/battery-etl/repository"
	"github.com/sam831212/battery-etl/server"
	service_registry "github.com/sam831212/battery-etl/srvreg"
)

var (
	configPath   string
	httpPort     string
	postgresHost string
)

// Config is the service configuration, loaded from TOML
type Config struct {
	Database struct {
		Driver     string `mapstructure:"driver"` // "postgres" or "sqlite"
		Host       string `mapstructure:"host"`
		User       string `mapstructure:"user"`
		Password   string `mapstructure:"password"`
		Name       string `mapstructure:"name"`
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"database"`
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Ingest struct {
		BatchSize   int     `mapstructure:"batch_size"`
		IntervalMin float64 `mapstructure:"interval_min"`
		IntervalMax float64 `mapstructure:"interval_max"`
	} `mapstructure:"ingest"`
	Lock struct {
		Path           string `mapstructure:"path"`
		Holder         string `mapstructure:"holder"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
		RemoteDir      string `mapstructure:"remote_dir"`
		DBName         string `mapstructure:"db_name"`
	} `mapstructure:"lock"`
	Journal struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"journal"`
}

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the TOML config file")
	flag.StringVar(&httpPort, "http-port", "", "HTTP web server port (overrides config)")
	flag.StringVar(&postgresHost, "postgres-host", "", "DB host address (overrides config)")
}

func loadConfig() (*Config, error) {
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost:5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.name", "battery_etl")
	viper.SetDefault("database.sqlite_path", "battery_etl.db")
	viper.SetDefault("server.port", "5000")
	viper.SetDefault("ingest.batch_size", ingest.DefaultBatchSize)
	viper.SetDefault("ingest.interval_min", ingest.DefaultIntervalBounds.Min)
	viper.SetDefault("ingest.interval_max", ingest.DefaultIntervalBounds.Max)
	viper.SetDefault("lock.timeout_seconds", 600)
	viper.SetDefault("journal.path", "journal")

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// Flag overrides
	if httpPort != "" {
		config.Server.Port = httpPort
	}
	if postgresHost != "" {
		config.Database.Host = postgresHost
	}
	return config, nil
}

func main() {
	flag.Parse()

	config, err := loadConfig()
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}

	appLogger := logger.New(os.Stdout)

	switch config.Database.Driver {
	case "sqlite":
		if config.Lock.RemoteDir != "" {
			// Shared database file mode: the whole serve session runs
			// under the advisory lock, between download and upload.
			if err := serveSharedSQLite(config, appLogger); err != nil {
				log.Fatalf("Serving: %v", err)
			}
			return
		}
		if err := serve(config, appLogger, func(r *repository.Repository) error {
			return r.OpenSQLite(config.Database.SQLitePath)
		}); err != nil {
			log.Fatalf("Serving: %v", err)
		}
	case "postgres":
		dsn := fmt.Sprintf("postgresql://%s:%s@%s/%s",
			config.Database.User, config.Database.Password, config.Database.Host, config.Database.Name)
		log.Printf("Connecting to: %s\n", config.Database.Host)
		if err := serve(config, appLogger, func(r *repository.Repository) error {
			return r.ConnectDB(dsn)
		}); err != nil {
			log.Fatalf("Serving: %v", err)
		}
	default:
		log.Fatalf("Unknown database driver: %s", config.Database.Driver)
	}
}

// serveSharedSQLite wraps the serve session in the advisory file lock:
// acquire, download the shared database, serve (mutate), upload, release.
func serveSharedSQLite(config *Config, appLogger logger.Logger) error {
	remote, err := dblock.NewDirRemote(config.Lock.RemoteDir)
	if err != nil {
		return err
	}
	holder := config.Lock.Holder
	if holder == "" {
		holder, _ = os.Hostname()
	}
	lockPath := config.Lock.Path
	if lockPath == "" {
		lockPath = config.Database.SQLitePath + ".lock"
	}
	dbName := config.Lock.DBName
	if dbName == "" {
		dbName = "battery_etl.db"
	}
	lock := dblock.NewFileLock(lockPath, holder, time.Duration(config.Lock.TimeoutSeconds)*time.Second)
	synced := dblock.NewSyncedDB(remote, lock, dbName, config.Database.SQLitePath)

	return synced.WithLock(context.Background(), func(localPath string) error {
		return serve(config, appLogger, func(r *repository.Repository) error {
			return r.OpenSQLite(localPath)
		})
	})
}

// serve runs the service until an interrupt signal arrives.
func serve(config *Config, appLogger logger.Logger, connect func(*repository.Repository) error) error {
	repo := repository.NewRepository()
	if err := connect(repo); err != nil {
		return err
	}
	if err := repo.Migrate(); err != nil {
		return err
	}

	runJournal, err := journal.Open(config.Journal.Path)
	if err != nil {
		return err
	}
	defer func() {
		if err := runJournal.Close(); err != nil {
			log.Printf("Closing journal: %v", err)
		}
	}()

	bounds := ingest.IntervalBounds{
		Min: config.Ingest.IntervalMin,
		Max: config.Ingest.IntervalMax,
	}
	pipeline := ingest.NewPipeline(repo, runJournal, appLogger, config.Ingest.BatchSize, bounds)

	serviceRegistry := service_registry.NewServiceRegistry(repo, pipeline, appLogger)
	serviceRegistry.RegisterDefaultServices()

	webserver, err := server.NewWebServer(config.Server.Port, appLogger, serviceRegistry, repo)
	if err != nil {
		return fmt.Errorf("creating web server: %w", err)
	}
	if err := webserver.Start(); err != nil {
		return fmt.Errorf("starting HTTP server: %w", err)
	}

	// Wait for interrupt signal to gracefully shut down the server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := webserver.Shutdown(ctx); err != nil {
		appLogger.Error("Shutting down HTTP web server", "err", err)
		return err
	}
	appLogger.Info("HTTP web server gracefully stopped")
	return nil
}
