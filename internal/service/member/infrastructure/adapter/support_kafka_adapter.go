package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"membermall/internal/pkg/mq"
	"membermall/internal/service/member/domain"
)

// SupportKafkaAdapter 实现了 port.SupportNotifier 接口，把需要人工处理的兑换写入 Kafka。
type SupportKafkaAdapter struct {
	writer *kafka.Writer
}

func NewSupportKafkaAdapter(writer *kafka.Writer) *SupportKafkaAdapter {
	return &SupportKafkaAdapter{writer: writer}
}

func (a *SupportKafkaAdapter) NotifyNeedsSupport(ctx context.Context, event domain.NeedsSupportEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal support event: %w", err)
	}
	// 以会员号为 key，同一会员的事件落在同一分区，保持顺序
	return mq.ProduceMessage(ctx, a.writer, []byte(event.MemberNumber), eventBytes)
}

// Close 关闭底层的Kafka writer。
func (a *SupportKafkaAdapter) Close() error {
	return a.writer.Close()
}
