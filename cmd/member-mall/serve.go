// cmd/member-mall/serve.go
package main

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"membermall/internal/pkg/bootstrap"
	"membermall/internal/pkg/httpclient"
	"membermall/internal/pkg/logger"
	"membermall/internal/pkg/mq"
	"membermall/internal/pkg/nacos"
	"membermall/internal/service/member/application"
	"membermall/internal/service/member/domain/port"
	"membermall/internal/service/member/infrastructure/adapter"
	"membermall/internal/service/member/infrastructure/journal"
	"membermall/internal/service/member/infrastructure/rule"
	"membermall/internal/service/member/infrastructure/session"
	"membermall/internal/service/member/interfaces"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the member mall HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			// 缺失的配置只告警，相关操作在入口处以 ErrNotConfigured 拒绝
			for _, key := range cfg.Validate() {
				logger.L().Warn().Str("key", key).Msg("Missing or invalid configuration, dependent actions will be refused")
			}
			return bootstrap.StartService(bootstrap.AppInfo{
				ServiceName:      cfg.App.Name,
				Port:             cfg.App.Port,
				RegisterHandlers: registerMall,
			})
		},
	}
}

// registerMall 是服务的组装根：创建并组装所有依赖项，然后注册路由。
func registerMall(appCtx bootstrap.AppCtx) (func(ctx context.Context), error) {
	cfg := appCtx.Config
	var closers []func(ctx context.Context)
	cleanup := func(ctx context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i](ctx)
		}
	}

	client := httpclient.NewClient(appCtx.Tracer)

	// 1. 记录库、券服务、邮件服务
	strapi := adapter.NewStrapiHTTPAdapter(client, adapter.StrapiOptions{
		Endpoint:             cfg.CMS.Endpoint,
		APIKey:               cfg.CMS.APIKey,
		MembershipCollection: cfg.CMS.MembershipCollection,
		ProductCollection:    cfg.CMS.ProductCollection,
	})
	coupons := adapter.NewCouponHTTPAdapter(client, endpoint(appCtx.Nacos, cfg.Coupon.ServiceName, cfg.Coupon.Endpoint))
	mailer := adapter.NewEmailHTTPAdapter(client, endpoint(appCtx.Nacos, cfg.Email.ServiceName, cfg.Email.Endpoint), cfg.Email.Namespace)

	// 2. Redis：会话后端与兑换锁共用一个客户端
	var redisClient redis.UniversalClient
	if cfg.Infra.Redis.Addr != "" {
		redisClient = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    strings.Split(cfg.Infra.Redis.Addr, ","),
			Password: cfg.Infra.Redis.Password,
			DB:       cfg.Infra.Redis.DB,
		})
		closers = append(closers, func(context.Context) {
			if err := redisClient.Close(); err != nil {
				logger.L().Warn().Err(err).Msg("Error closing redis client")
			}
		})
	}

	var sessions session.Binder = session.NewCookieStore(cfg.Session.CookieName, cfg.Session.TTL, cfg.Session.Secure)
	if cfg.Session.Backend == "redis" && redisClient != nil {
		sessions = session.NewRedisStore(redisClient, cfg.Session.CookieName, cfg.Session.TTL, cfg.Session.Secure)
	}

	var lock port.RedemptionLock
	if redisClient != nil {
		lock = adapter.NewRedemptionLockRedisAdapter(redisClient, cfg.RedemptionLockTTL())
	}

	// 3. 兑换流水
	db, err := journal.Open(cfg.Infra.MySQL.DSN(), cfg.App.JournalPath)
	if err != nil {
		cleanup(context.Background())
		return nil, err
	}
	repo := journal.NewGormRedemptionRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		cleanup(context.Background())
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, func(context.Context) { _ = sqlDB.Close() })
	}

	// 4. 人工介入事件
	var support port.SupportNotifier
	if len(cfg.Infra.Kafka.Brokers) > 0 {
		kafkaSupport := adapter.NewSupportKafkaAdapter(mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.RedemptionTopic))
		support = kafkaSupport
		closers = append(closers, func(context.Context) {
			if err := kafkaSupport.Close(); err != nil {
				logger.L().Warn().Err(err).Msg("Error closing kafka writer")
			}
		})
	} else {
		logger.L().Warn().Msg("Kafka brokers not configured, support events are only logged")
	}

	// 5. 目录可见性规则
	var visibility port.VisibilityRule
	if cfg.Catalog.VisibilityRule != "" {
		celRule, err := rule.NewCELVisibilityAdapter(cfg.Catalog.VisibilityRule)
		if err != nil {
			cleanup(context.Background())
			return nil, err
		}
		visibility = celRule
	}

	// 6. 应用服务与路由
	authSvc := application.NewAuthService(strapi, appCtx.Tracer)
	profileSvc := application.NewProfileService(strapi, appCtx.Tracer)
	catalogSvc := application.NewCatalogService(strapi, visibility, appCtx.Tracer)
	redeemSvc := application.NewRedemptionService(application.RedemptionConfig{
		ProcessingTimeout: cfg.App.ProcessingTimeout,
		CouponValidity:    cfg.Coupon.Validity,
		QRImageURL:        cfg.App.QRImageURL,
	}, appCtx.Tracer, catalogSvc, strapi, coupons, mailer, repo, support, lock)

	interfaces.NewMallHandler(authSvc, profileSvc, catalogSvc, redeemSvc, sessions).RegisterRoutes(appCtx.Router)
	return cleanup, nil
}

// endpoint 配置了服务名且启用 nacos 时走服务发现，否则使用静态地址
func endpoint(nc *nacos.Client, serviceName, static string) httpclient.Endpoint {
	if nc != nil && serviceName != "" {
		return nc.Endpoint(serviceName)
	}
	return httpclient.StaticEndpoint(static)
}
