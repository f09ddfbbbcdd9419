package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"lintang/deliverynav/pkg/comparator"
	"lintang/deliverynav/pkg/config"
	"lintang/deliverynav/pkg/kv"
	"lintang/deliverynav/pkg/metrics"
	"lintang/deliverynav/pkg/navigation"
	"lintang/deliverynav/pkg/provider"
	"lintang/deliverynav/pkg/queues"
	"lintang/deliverynav/pkg/routing"
	"lintang/deliverynav/pkg/server/rest"
	"lintang/deliverynav/pkg/traffic"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configFile = flag.String("config", "", "yaml config file, kosong pakai default")
	listenAddr = flag.String("listenaddr", "", "server listen address, override server.port di config")
)

//	@title			deliverynav API
//	@version		1.0
//	@description	navigasi driver delivery dengan rerouting berdasarkan traffic

//	@contact.name	lintang birda saputra

// @host		localhost:5000
// @BasePath	/api
// @schemes	http
func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	kvDB, err := kv.Open(cfg.Storage.Dir)
	if err != nil {
		logger.Fatal("open usage store", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	p, err := provider.New(cfg.Provider.Name, cfg.ProviderOptions())
	if err != nil {
		logger.Fatal("routing provider", zap.Error(err))
	}
	routingClient, err := routing.NewClient(p, cfg.RoutingConfig(), kvDB,
		routing.WithMetrics(m), routing.WithLogger(logger.Named("routing")))
	if err != nil {
		logger.Fatal("routing client", zap.Error(err))
	}

	monitorOpts := []traffic.Option{traffic.WithLogger(logger.Named("traffic")), traffic.WithMetrics(m)}
	var amqpClient *queues.Client
	if cfg.AMQP.URL != "" {
		amqpClient = queues.New(cfg.AMQP.URL, logger.Named("amqp"))
		monitorOpts = append(monitorOpts, traffic.WithPublisher(queues.NewPublisher(amqpClient)))
	}
	monitor := traffic.NewMonitor(routingClient, cfg.TrafficConfig(), monitorOpts...)

	sessions := navigation.NewSessions(routingClient, cfg.NavigationConfig(),
		navigation.WithLogger(logger.Named("navigation")))
	cmp := comparator.NewComparator(routingClient, cfg.ComparatorConfig(), logger.Named("comparator"))

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(metrics.PromeHttpMiddleware(m)) // prometheus http middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Mount("/debug", middleware.Profiler())

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	rest.NavigationRouter(r, sessions)
	rest.TrafficRouter(r, monitor)
	rest.RoutesRouter(r, routingClient, cmp)

	addr := *listenAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Server.Port)
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", zap.String("addr", addr), zap.String("provider", p.Name()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}

	monitor.Close()
	routingClient.Close()
	if amqpClient != nil {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("amqp close", zap.Error(err))
		}
	}
	if err := kvDB.Close(); err != nil {
		logger.Error("close usage store", zap.Error(err))
	}
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
