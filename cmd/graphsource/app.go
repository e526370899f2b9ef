package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	assets "github.com/hanpama/graphsource/internal/assets"
	config "github.com/hanpama/graphsource/internal/config"
	eventbus "github.com/hanpama/graphsource/internal/eventbus"
	gqlclient "github.com/hanpama/graphsource/internal/gqlclient"
	logging "github.com/hanpama/graphsource/internal/logging"
	nodestore "github.com/hanpama/graphsource/internal/nodestore"
	otel "github.com/hanpama/graphsource/internal/otel"
	querygen "github.com/hanpama/graphsource/internal/querygen"
	runcache "github.com/hanpama/graphsource/internal/runcache"
	sourcing "github.com/hanpama/graphsource/internal/sourcing"
	upstream "github.com/hanpama/graphsource/internal/upstream"
)

// app is one configured process: the upstream clients, the stores and the source
// wired together.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	bus      *eventbus.Bus
	registry *gqlclient.Registry
	upstream *upstream.Client
	store    nodestore.Store
	source   *sourcing.Source

	closers []func(context.Context) error
}

func newApp(opts *rootOptions, stderr io.Writer) (a *app, err error) {
	log, err := logging.New(stderr, opts.LogLevel, opts.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, err
	}

	a = &app{cfg: cfg, log: log, bus: eventbus.New()}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()
	eventbus.Use(a.bus)
	shutdown, err := otel.Setup(opts.OtelEndpoint, opts.OtelService)
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	a.registry = gqlclient.NewRegistry(gqlclient.WithHeaders(cfg.Headers), gqlclient.WithToken(cfg.Token))
	a.closers = append(a.closers, func(context.Context) error { return a.registry.Close() })
	client, err := a.registry.Client(cfg.APIURL)
	if err != nil {
		return nil, err
	}
	a.upstream = upstream.New(cfg.APIURL, client,
		upstream.WithToken(cfg.Token),
		upstream.WithHeaders(cfg.Headers),
		upstream.WithLogger(log))

	if cfg.Store == config.MemoryStore {
		a.store = nodestore.NewMemory()
	} else {
		db, err := nodestore.OpenSQLite(cfg.Store)
		if err != nil {
			return nil, err
		}
		a.store = db
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
	}

	var cache runcache.Cache = runcache.Nop{}
	switch {
	case !cfg.CacheEnabled():
	case cfg.CacheFile != "":
		b, err := runcache.OpenBolt(cfg.CacheFile, "")
		if err != nil {
			return nil, err
		}
		cache = b
		a.closers = append(a.closers, func(context.Context) error { return b.Close() })
	default:
		cache = runcache.NewMemory()
	}

	sopts := []sourcing.Option{
		sourcing.WithOwner(cfg.Owner),
		sourcing.WithTargets(querygen.Targets{CollectionTypes: cfg.CollectionTypes, SingleTypes: cfg.SingleTypes}),
		sourcing.WithLocales(cfg.Locale...),
		sourcing.WithPreview(cfg.Preview),
		sourcing.WithAPIURL(cfg.APIURL),
		sourcing.WithHeaders(cfg.Headers),
		sourcing.WithInlineImages(cfg.InlineImages.TypesToParse),
		sourcing.WithDownloadPolicy(cfg.Download.DownloadPolicy),
		sourcing.WithCache(cache),
		sourcing.WithLogger(logging.NewDeduper(log)),
	}
	if cfg.AssetsDir != "" {
		m, err := assets.New(cfg.AssetsDir, assets.WithPolicy(cfg.Download.DownloadPolicy), assets.WithLogger(log))
		if err != nil {
			return nil, err
		}
		sopts = append(sopts, sourcing.WithMaterializer(m))
	}
	a.source = sourcing.New(a.upstream, client, a.store, sopts...)
	return a, nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	eventbus.Use(nil)
	return errors.Join(errs...)
}
