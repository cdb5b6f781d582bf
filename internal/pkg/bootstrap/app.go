// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"membermall/internal/pkg/logger"
	"membermall/internal/pkg/nacos"
	"membermall/internal/pkg/tracing"
)

type AppCtx struct {
	Router chi.Router
	Nacos  *nacos.Client // 未启用 nacos 时为 nil
	Tracer trace.Tracer
	Config Config
}

// AppInfo 包含了启动服务所需的特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 注册业务路由，返回的函数在关停时按注册的逆序执行
	RegisterHandlers func(appCtx AppCtx) (cleanup func(ctx context.Context), err error)
}

// StartService 封装了通用的启动和优雅关停逻辑，阻塞直到收到退出信号。
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return err
	}

	// 2. 可选的 Nacos，注册与发现共用一个客户端
	var (
		namingClient *nacos.Client
		ip           string
	)
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return err
		}
	}

	// 3. 路由
	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	var cleanup func(ctx context.Context)
	if info.RegisterHandlers != nil {
		cleanup, err = info.RegisterHandlers(AppCtx{
			Router: router,
			Nacos:  namingClient,
			Tracer: otel.Tracer(info.ServiceName),
			Config: cfg,
		})
		if err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.L().Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 4. 服务注册放在监听之后，避免注册中心把流量导到尚未就绪的实例
	if namingClient != nil {
		ip, err = nacos.GetOutboundIP()
		if err == nil {
			err = namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port)
		}
		if err != nil {
			logger.L().Error().Err(err).Msg("Nacos registration failed, continuing without it")
			ip = ""
		}
	}

	// 5. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serveErr:
		logger.L().Error().Err(err).Msg("HTTP server failed")
	}
	logger.L().Info().Str("service", info.ServiceName).Msg("Shutting down service...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// a. 先从注册中心注销，不再接收新流量
	if namingClient != nil {
		if ip != "" {
			if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				logger.L().Error().Err(err).Msg("Error deregistering from Nacos")
			}
		}
		namingClient.Close()
	}

	// b. 关闭 HTTP 服务器，等待进行中的兑换完成
	if err := server.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("Error shutting down http server")
	}

	// c. 业务资源
	if cleanup != nil {
		cleanup(ctx)
	}

	// d. 最后关闭 Tracer Provider，确保关停过程中的 span 也被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		logger.L().Error().Err(err).Msg("Error shutting down tracer provider")
	}

	logger.L().Info().Str("service", info.ServiceName).Msg("Service gracefully shut down")
	return nil
}
