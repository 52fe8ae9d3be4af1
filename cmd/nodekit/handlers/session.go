// Package handlers implements the business logic for nodekit CLI commands.
//
// Every handler opens a session from the global flags, runs one service
// operation and renders the result. Provider construction and timeouts are
// package variables so tests can swap in the in-memory provider.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"

	"github.com/imamik/nodekit/internal/compute/service"
	"github.com/imamik/nodekit/internal/config"
	"github.com/imamik/nodekit/internal/credstore"
	"github.com/imamik/nodekit/internal/events"
	"github.com/imamik/nodekit/internal/logging"
	"github.com/imamik/nodekit/internal/metrics"
	"github.com/imamik/nodekit/internal/platform/hcloud"
	"github.com/imamik/nodekit/internal/provider"
	"github.com/imamik/nodekit/internal/provider/fake"
	"github.com/imamik/nodekit/internal/util/async"
)

// Options are the global flags shared by every command.
type Options struct {
	ConfigPath  string
	Provider    string
	Output      string
	MetricsFile string
	LogLevel    string
}

// Factory function variables - can be replaced in tests.
var (
	newProvider = func(cfg *config.Config, log logr.Logger, recorder *metrics.Recorder) (provider.Client, error) {
		switch cfg.Provider {
		case config.ProviderMemory:
			return fake.New(), nil
		case config.ProviderHCloud:
			if cfg.HCloud.Token == "" {
				return nil, fmt.Errorf("HCLOUD_TOKEN environment variable is required")
			}
			return hcloud.NewFromConfig(cfg.HCloud, hcloud.WithLogger(log), hcloud.WithRecorder(recorder)), nil
		default:
			return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
		}
	}

	newTimeouts = config.LoadTimeouts

	logWriter io.Writer = os.Stderr
)

// session bundles the service built from one command invocation.
type session struct {
	svc      *service.Service
	recorder *metrics.Recorder
	metrics  string
	closers  []io.Closer
	log      logr.Logger
}

// loadConfig reads the config file when given and applies flag overrides.
func loadConfig(opts Options) (*config.Config, error) {
	var cfg *config.Config
	if opts.ConfigPath != "" {
		loaded, err := config.LoadFile(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if opts.Provider != "" {
		cfg.Provider = opts.Provider
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.MetricsFile != "" {
		cfg.Metrics.Textfile = opts.MetricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func openSession(ctx context.Context, opts Options) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log, err := logging.NewWithWriter(cfg.Logging.Level, cfg.Logging.Format, logWriter)
	if err != nil {
		return nil, err
	}
	log = log.WithName("nodekit")

	s := &session{recorder: metrics.NewRecorder(), metrics: cfg.Metrics.Textfile, log: log}

	client, err := newProvider(cfg, log, s.recorder)
	if err != nil {
		return nil, err
	}

	store, err := credstore.Open(ctx, cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	observers := []events.Observer{events.NewLogObserver(log)}
	if cfg.Events.NATS.URL != "" {
		pub, err := events.DialNATS(cfg.Events.NATS.URL, cfg.Events.NATS.SubjectPrefix, log)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		observers = append(observers, pub)
		s.closers = append(s.closers, pub)
	}

	s.svc = service.New(client,
		service.WithPool(async.NewPool(cfg.Concurrency)),
		service.WithTimeouts(newTimeouts()),
		service.WithCredentialStore(store),
		service.WithObserver(events.Multi(observers...)),
		service.WithRecorder(s.recorder),
		service.WithLogger(log),
		service.WithDefaults(cfg.Defaults),
	)
	return s, nil
}

// Close releases the service and writes the metrics textfile when configured.
func (s *session) Close() error {
	errs := []error{s.svc.Close()}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	if s.metrics != "" {
		errs = append(errs, s.recorder.WriteTextfile(s.metrics))
	}
	return errors.Join(errs...)
}

// run opens a session, hands it to fn and closes it again. A close failure
// is only logged so it never hides the result of fn.
func run(ctx context.Context, opts Options, fn func(*session) error) error {
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			s.log.Info("Warning: failed to close session", "error", cerr.Error())
		}
	}()
	return fn(s)
}
