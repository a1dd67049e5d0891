package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"weatherportal-web/internal/config"
	httpapi "weatherportal-web/internal/httpapi"
	weather "weatherportal-web/internal/modules/weather"
	"weatherportal-web/internal/modules/weather/dataview"
	"weatherportal-web/internal/modules/weather/service"
	weatherviews "weatherportal-web/internal/modules/weather/views"
	"weatherportal-web/internal/mqtt"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"authURL", cfg.AuthURL,
		"logoutURL", cfg.LogoutURL,
		"backendURL", cfg.BackendURL,
		"fetchTimeout", cfg.FetchTimeout,
		"backendRPS", cfg.BackendRPS,
		"backendBurst", cfg.BackendBurst,
		"networkErrorPolicy", cfg.NetworkErrorPolicy,
		"sessionCookies", cfg.SessionCookies,
		"viewTTL", cfg.ViewTTL,
		"maxViews", cfg.MaxViews,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopicPrefix", cfg.MQTTTopicPrefix,
	)

	if err := weatherviews.LoadTemplates(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var (
		publisher *mqtt.Publisher
		sink      dataview.EventSink
		broker    httpapi.BrokerStatus
	)
	if cfg.MQTTBroker != "" {
		publisher = mqtt.NewPublisher(cfg, slog.Default())
		sink = service.NewEventPublisher(publisher, cfg.MQTTTopicPrefix, slog.Default())
		broker = publisher

		// Short timeout so a missing broker does not block startup.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := publisher.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt not connected at startup (events dropped until it is)", "error", err)
		}
		g.Go(func() error { return publisher.Run(gctx) })
	} else {
		slog.Info("mqtt disabled")
	}

	mux := http.NewServeMux()
	registry := weather.RegisterFeature(mux, cfg, sink, slog.Default())
	httpapi.RegisterHealthcheck(mux, registry, broker)

	srv := httpapi.NewServer(cfg, mux)

	g.Go(func() error {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return registry.Run(gctx, sweepInterval)
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		slog.Info("http shutting down")
		err := srv.Shutdown(shutdownCtx)

		if publisher != nil {
			slog.Info("mqtt disconnecting")
			publisher.Disconnect()
		}
		return err
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}
