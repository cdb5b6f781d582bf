// internal/service/member/interfaces/support_consumer.go
package interfaces

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"membermall/internal/pkg/logger"
	"membermall/internal/pkg/metrics"
	"membermall/internal/pkg/mq"
	"membermall/internal/service/member/domain"
)

// MessageReader 是 *kafka.Reader 中消费者用到的部分
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// SupportConsumer 监听兑换事件 topic，把需要人工处理的兑换以 CRITICAL 日志输出
type SupportConsumer struct {
	reader MessageReader
	topic  string
	wg     sync.WaitGroup
}

func NewSupportConsumer(reader MessageReader, topic string) *SupportConsumer {
	return &SupportConsumer{reader: reader, topic: topic}
}

// Start 在后台循环消费，ctx 取消后退出
func (c *SupportConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", c.topic).Msg("Support relay started")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("Support relay shutting down")
					return
				}
				logger.Ctx(ctx).Warn().Err(err).Msg("Failed to fetch support event")
				continue
			}

			c.Handle(ctx, msg)

			// 事件只做记录，处理完即提交
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Error().Err(err).Int64("offset", msg.Offset).Msg("Failed to commit support event")
			}
		}
	}()
}

// Stop 关闭 reader 并等待消费循环退出
func (c *SupportConsumer) Stop(ctx context.Context) {
	if err := c.reader.Close(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Error closing support reader")
	}
	c.wg.Wait()
	logger.Ctx(ctx).Info().Str("topic", c.topic).Msg("Support relay stopped")
}

// Handle 处理单条事件，无法解析的消息同样记录下来
func (c *SupportConsumer) Handle(ctx context.Context, msg kafka.Message) {
	ctx = mq.ExtractTraceContext(ctx, msg.Headers)
	ctx, span := otel.Tracer("member-mall").Start(ctx, "support-relay.Handle")
	defer span.End()

	var event domain.NeedsSupportEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		span.RecordError(err)
		metrics.SupportEvents.WithLabelValues("unparsable").Inc()
		logger.Ctx(ctx).Error().Err(err).
			Str("key", string(msg.Key)).
			Str("value", string(msg.Value)).
			Msg("CRITICAL: Unparsable support event received")
		return
	}

	span.SetAttributes(
		attribute.String("redemption.id", event.RedemptionID),
		attribute.String("redemption.failed_step", event.FailedStep),
	)
	metrics.SupportEvents.WithLabelValues(event.FailedStep).Inc()

	logger.Ctx(ctx).Error().
		Str("reason", "redemption_needs_support").
		Str("redemption", event.RedemptionID).
		Str("member", event.MemberNumber).
		Str("email", event.MemberEmail).
		Str("product", event.ProductName).
		Str("coupon", event.CouponID).
		Str("cash_due", event.CashDue).
		Str("deduction", event.Deduction).
		Str("failed_step", event.FailedStep).
		Str("failure", event.Reason).
		Time("at", event.At).
		Msg("CRITICAL: Redemption needs manual support")
}
