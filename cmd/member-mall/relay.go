// cmd/member-mall/relay.go
package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"membermall/internal/pkg/bootstrap"
	"membermall/internal/pkg/mq"
	"membermall/internal/service/member/interfaces"
)

func supportRelayCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "support-relay",
		Short: "Consume redemption events that need manual support",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if len(cfg.Infra.Kafka.Brokers) == 0 {
				return errors.New("support-relay requires infra.kafka.brokers")
			}
			if port == 0 {
				port = cfg.App.Port + 1
			}
			return bootstrap.StartService(bootstrap.AppInfo{
				ServiceName:      cfg.App.Name + "-support-relay",
				Port:             port,
				RegisterHandlers: registerRelay,
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Port for /healthz and /metrics (default: app.port+1)")
	return cmd
}

// registerRelay 只暴露健康检查与指标，消费循环随服务启动与关停
func registerRelay(appCtx bootstrap.AppCtx) (func(ctx context.Context), error) {
	kafkaCfg := appCtx.Config.Infra.Kafka
	reader := mq.NewKafkaReader(kafkaCfg.Brokers, kafkaCfg.RedemptionTopic, kafkaCfg.ConsumerGroup)

	consumer := interfaces.NewSupportConsumer(reader, kafkaCfg.RedemptionTopic)
	ctx, cancel := context.WithCancel(context.Background())
	consumer.Start(ctx)

	return func(shutdownCtx context.Context) {
		cancel()
		consumer.Stop(shutdownCtx)
	}, nil
}
