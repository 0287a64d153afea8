package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/capture"
	"github.com/sells-group/leadscan/internal/connectivity"
	"github.com/sells-group/leadscan/internal/metrics"
	"github.com/sells-group/leadscan/internal/monitoring"
	"github.com/sells-group/leadscan/internal/ocr"
	"github.com/sells-group/leadscan/internal/queue"
	"github.com/sells-group/leadscan/internal/sink"
	"github.com/sells-group/leadscan/internal/store"
	"github.com/sells-group/leadscan/pkg/appscript"
)

// appEnv holds the components shared by the commands. Its fields are the
// explicit application state: nothing here lives in package globals.
type appEnv struct {
	Store     store.Store
	Metrics   *metrics.Metrics
	Monitor   *connectivity.Monitor
	Sink      *sink.Sink
	Queue     *queue.Manager
	Pipeline  *capture.Pipeline
	Collector *monitoring.Collector
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		path := cfg.Store.Path
		if path == "" {
			path = "leadscan.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initApp validates config for mode, opens and migrates the store, and
// wires the capture flow. The connectivity monitor starts from one probe
// unless --offline is set. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	m := metrics.New()

	var prober connectivity.Prober
	if !forceOffline && cfg.Connectivity.ProbeURL != "" {
		prober = connectivity.NewHTTPProber(cfg.Connectivity.ProbeURL,
			time.Duration(cfg.Connectivity.ProbeTimeoutSecs)*time.Second)
	}
	mon := connectivity.NewMonitor(prober, !forceOffline,
		connectivity.WithInterval(time.Duration(cfg.Connectivity.IntervalSecs)*time.Second),
		connectivity.WithMetrics(m),
	)
	mon.Check(ctx)

	var client appscript.Client
	if cfg.Sink.Endpoint != "" {
		client = appscript.NewClient(cfg.Sink.Endpoint,
			appscript.WithTimeout(time.Duration(cfg.Sink.TimeoutSecs)*time.Second))
	}
	sk := sink.New(client, mon, sink.WithRateLimit(cfg.Sink.RatePerSec), sink.WithMetrics(m))

	q := queue.NewManager(st, sk, mon, queue.WithMetrics(m))
	if err := q.Refresh(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	rec, err := ocr.NewRecognizer(cfg.OCR)
	if err != nil {
		zap.L().Warn("ocr unavailable, scans fall back to manual entry", zap.Error(err))
	}

	p := capture.New(st, sk, q, rec,
		capture.WithCrop(cfg.Capture.CropWidth, cfg.Capture.CropHeight),
		capture.WithMetrics(m),
	)

	return &appEnv{
		Store:     st,
		Metrics:   m,
		Monitor:   mon,
		Sink:      sk,
		Queue:     q,
		Pipeline:  p,
		Collector: monitoring.NewCollector(st, mon, sk.Configured()),
	}, nil
}

// drainOnReconnect wires the queue to drain whenever the network comes back.
func (e *appEnv) drainOnReconnect() {
	e.Monitor.OnOnline(func(ctx context.Context) {
		if _, err := e.Queue.Drain(ctx); err != nil {
			zap.L().Error("drain after reconnect failed", zap.Error(err))
		}
	})
}
