package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/Alturino/storefront/cart/controller"
	"github.com/Alturino/storefront/cart/service"
	"github.com/Alturino/storefront/internal/config"
	"github.com/Alturino/storefront/internal/constants"
	"github.com/Alturino/storefront/internal/infra"
	"github.com/Alturino/storefront/internal/log"
	"github.com/Alturino/storefront/internal/metrics"
	"github.com/Alturino/storefront/internal/middleware"
	"github.com/Alturino/storefront/internal/otel"
	orderController "github.com/Alturino/storefront/order/controller"
	"github.com/Alturino/storefront/order/gateway"
	orderService "github.com/Alturino/storefront/order/service"
	productClient "github.com/Alturino/storefront/product/client"
)

func runServe(c context.Context, f flags) {
	c, span := otel.Tracer.Start(c, "runServe")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyAppName, constants.AppStorefrontApi).
		Str(log.KeyTag, "main runServe").
		Logger()

	logger = logger.With().Str(log.KeyProcess, "init config").Logger()
	logger.Info().Msg("initializing config")
	c = logger.WithContext(c)
	cfg := config.InitConfig(c, f.config)
	logger = logger.With().Any(log.KeyConfig, cfg).Logger()
	logger.Info().Msg("initialized config")

	logger = logger.With().Str(log.KeyProcess, "initializing otel sdk").Logger()
	logger.Info().Msg("initializing otel sdk")
	c = logger.WithContext(c)
	otelShutdowns, err := otel.InitOtelSdk(c, constants.AppStorefrontApi, cfg.Otel)
	if err != nil {
		err = fmt.Errorf("failed initializing otel sdk with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	defer func() {
		logger.Info().Msg("shutting down otel")
		// the signal context is already done here
		if err := otel.ShutdownOtel(context.WithoutCancel(c), otelShutdowns); err != nil {
			err = fmt.Errorf("failed shutting down otel with error=%w", err)
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("shutdown otel")
	}()
	logger.Info().Msg("initialized otel sdk")

	var cache *redis.Client
	if cfg.Storage.Driver == driverRedis || cfg.Storage.Driver == "" || cfg.Cache.Host != "" {
		logger = logger.With().Str(log.KeyProcess, "initializing cache").Logger()
		logger.Info().Msg("initializing cache")
		c = logger.WithContext(c)
		cache = infra.NewCacheClient(c, cfg.Cache)
		defer func() {
			logger = logger.With().Str(log.KeyProcess, "shutting down cache").Logger()
			logger.Info().Msg("shutting down cache")
			if err := cache.Close(); err != nil {
				err = fmt.Errorf("failed shutting down cache with error=%w", err)
				otel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				return
			}
			logger.Info().Msg("shutdown cache")
		}()
		logger.Info().Msg("initialized cache")
	}

	logger = logger.With().Str(log.KeyProcess, "initializing storage").Logger()
	logger.Info().Msg("initializing storage")
	c = logger.WithContext(c)
	storage, closeStorage, err := newStorage(c, cfg, cache)
	if err != nil {
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	defer closeStorage()
	logger.Info().Str(log.KeyStorage, storage.Name()).Msg("initialized storage")

	m := metrics.Default()
	registry := service.NewRegistry(storage, m)
	defer func() {
		logger = logger.With().Str(log.KeyProcess, "flushing carts").Logger()
		logger.Info().Msg("flushing carts")
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(c), 10*time.Second)
		defer cancel()
		if err := registry.Close(flushCtx); err != nil {
			otel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return
		}
		logger.Info().Msg("flushed carts")
	}()

	logger = logger.With().Str(log.KeyProcess, "initializing gateways").Logger()
	logger.Info().Msg("initializing gateways")
	catalog := productClient.NewClient(cfg.Gateway.CatalogURL, cache, m)
	orders := gateway.NewClient(cfg.Gateway, m)
	composer := orderService.NewComposer(orders, cfg.Gateway.Timeout, m)
	logger.Info().Msg("initialized gateways")

	logger = logger.With().Str(log.KeyProcess, "initializing router").Logger()
	logger.Info().Msg("initializing router")
	router := mux.NewRouter()
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	api := router.NewRoute().Subrouter()
	api.Use(
		otelmux.Middleware(constants.AppStorefrontApi),
		middleware.Logging,
		middleware.RecoverPanic,
		middleware.Identity(cfg.Application.SecretKey),
	)
	controller.AttachCartController(api, registry, catalog, composer)
	orderController.AttachOrderController(api, orders)
	logger.Info().Msg("initialized router")

	logger = logger.With().Str(log.KeyProcess, "initializing server").Logger()
	logger.Info().Msg("initializing server")
	httpServer := http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Application.Host, cfg.Application.Port),
		BaseContext:  func(net.Listener) context.Context { return c },
		Handler:      router,
		ReadTimeout:  45 * time.Second,
		WriteTimeout: 45 * time.Second,
	}
	logger.Info().Msg("initialized server")

	serverErr := make(chan error, 1)
	go func() {
		logger := logger.With().Str(log.KeyProcess, "start server").Logger()
		logger.Info().Msgf("start listening request at %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("error=%w occured while server is running", err)
			return
		}
		logger.Info().Msg("server stopped")
	}()

	select {
	case err := <-serverErr:
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	case <-c.Done():
	}

	logger = logger.With().Str(log.KeyProcess, "shutting down http server").Logger()
	logger.Info().Msg("received interuption signal shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(c), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		err = fmt.Errorf("failed shutting down http server with error=%w", err)
		otel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return
	}
	logger.Info().Msg("shutdown http server")
}
