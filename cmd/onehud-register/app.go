package main

import (
	"context"
	"fmt"

	_ "github.com/onehud/registrar/migrations"

	"github.com/onehud/registrar/internal/api"
	"github.com/onehud/registrar/internal/esptool"
	"github.com/onehud/registrar/internal/infrastructure/config"
	"github.com/onehud/registrar/internal/infrastructure/database"
	"github.com/onehud/registrar/internal/infrastructure/influxdb"
	"github.com/onehud/registrar/internal/infrastructure/logging"
	"github.com/onehud/registrar/internal/infrastructure/mqtt"
	"github.com/onehud/registrar/internal/ledger"
	"github.com/onehud/registrar/internal/notify"
	"github.com/onehud/registrar/internal/process"
	"github.com/onehud/registrar/internal/registration"
	"github.com/onehud/registrar/internal/serialport"
	"github.com/onehud/registrar/internal/telemetry"
)

// loadConfig reads the configuration and builds the logger.
//
// Parameters:
//   - validate: false for commands that never deliver (ports, receipts) and
//     so must work without notifier credentials
//
// Returns:
//   - *config.Config: Loaded configuration with --log-level applied
//   - *logging.Logger: Logger configured from it
//   - error: If the file cannot be read or validation fails
func (o *globalOptions) loadConfig(validate bool) (*config.Config, *logging.Logger, error) {
	load := config.Read
	if validate {
		load = config.Load
	}
	cfg, err := load(o.configPath, !o.explicit)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	log := logging.New(cfg.Logging, version)
	log.Debug("configuration loaded", "path", o.configPath)
	return cfg, log, nil
}

// app is the wired registration workflow plus the optional
// infrastructure behind it.
type app struct {
	log        *logging.Logger
	controller *registration.Controller
	metrics    *telemetry.Metrics

	// receipts is nil when the ledger is disabled.
	receipts *ledger.SQLiteRepository

	// checks holds the infrastructure that /health reports on.
	checks map[string]api.HealthChecker

	closers []func()
}

// newApp connects the optional infrastructure and builds the controller.
//
// The ledger fails startup when it cannot be opened, since it was asked for
// explicitly. MQTT and InfluxDB only feed telemetry, so an unreachable
// broker or server is logged and registration proceeds without it.
//
// Parameters:
//   - ctx: Context for migrations
//   - cfg: Validated configuration
//   - log: Logger
//   - prompter: Asked when several ports qualify; nil in the web panel
//
// Returns:
//   - *app: Ready to Submit; call Close when done
//   - error: If the notifier or ledger cannot be set up
func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger, prompter serialport.Prompter) (*app, error) {
	a := &app{
		log:     log,
		metrics: telemetry.NewMetrics(),
		checks:  make(map[string]api.HealthChecker),
	}

	notifier, err := notify.NewTelegram(cfg.Notifier, cfg.Location(), log)
	if err != nil {
		return nil, fmt.Errorf("creating notifier: %w", err)
	}

	recorders := []registration.Recorder{a.metrics}

	if cfg.Database.Enabled {
		repo, err := a.openLedger(ctx, cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.receipts = repo
		recorders = append(recorders, repo)
	} else {
		log.Info("ledger disabled")
	}

	if cfg.MQTT.Enabled {
		if pub := a.connectMQTT(cfg.MQTT); pub != nil {
			recorders = append(recorders, pub)
		}
	}

	if cfg.InfluxDB.Enabled {
		if rec := a.connectInflux(cfg.InfluxDB); rec != nil {
			recorders = append(recorders, rec)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	binary, unavailable := probe(cfg.Device)
	runner := process.NewExec()
	runner.SetLogger(log)

	a.controller = registration.New(registration.Deps{
		Transports: &serialport.Acquirer{
			Port:        cfg.Device.Port,
			WaitTimeout: cfg.Device.WaitTimeout,
			Prompter:    prompter,
			Logger:      log,
		},
		NewLoader: func(t serialport.Transport) registration.Loader {
			return esptool.New(t, esptool.Options{
				Binary:   binary,
				BaudRate: cfg.Device.BaudRate,
				Runner:   runner,
				Logger:   log,
			})
		},
		Notifier:    notifier,
		BaudRate:    cfg.Device.BaudRate,
		ReadTimeout: cfg.Device.ReadTimeout,
		Unavailable: unavailable,
		Recorders:   recorders,
		Logger:      log,
	})
	return a, nil
}

func (a *app) openLedger(ctx context.Context, cfg config.DatabaseConfig) (*ledger.SQLiteRepository, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.onClose("database", db.Close)

	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	a.checks["database"] = db
	a.log.Info("ledger enabled", "path", cfg.Path)
	return ledger.NewSQLiteRepository(db.DB), nil
}

func (a *app) connectMQTT(cfg config.MQTTConfig) registration.Recorder {
	client, err := mqtt.Connect(cfg)
	if err != nil {
		a.log.Warn("MQTT unavailable, registrations will not be announced", "error", err)
		return nil
	}
	client.SetLogger(a.log)
	a.onClose("MQTT", client.Close)
	a.checks["mqtt"] = client
	a.log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)
	return telemetry.NewMQTTPublisher(client)
}

func (a *app) connectInflux(cfg config.InfluxDBConfig) registration.Recorder {
	client, err := influxdb.Connect(cfg)
	if err != nil {
		a.log.Warn("InfluxDB unavailable, attempts will not be written", "error", err)
		return nil
	}
	client.SetOnError(func(err error) {
		a.log.Error("InfluxDB write error", "error", err)
	})
	a.onClose("InfluxDB", client.Close)
	a.checks["influxdb"] = client
	a.log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return telemetry.NewInfluxRecorder(client)
}

func (a *app) onClose(name string, fn func() error) {
	a.closers = append(a.closers, func() {
		a.log.Debug("closing " + name)
		if err := fn(); err != nil {
			a.log.Error("error closing "+name, "error", err)
		}
	})
}

// Close releases infrastructure in reverse order of setup.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// receiptStore returns the ledger as an interface, nil when disabled.
func (a *app) receiptStore() ledger.Repository {
	if a.receipts == nil {
		return nil
	}
	return a.receipts
}

// probe is the startup capability check: serial ports must be enumerable
// and esptool must be installed.
//
// Returns:
//   - string: Resolved esptool path
//   - error: Why the serial transport is unavailable, or nil
func probe(cfg config.DeviceConfig) (string, error) {
	if err := serialport.Probe(); err != nil {
		return "", err
	}
	return esptool.Locate(cfg.Esptool)
}
