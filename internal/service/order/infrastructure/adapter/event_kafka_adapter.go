package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"storefront/internal/pkg/logger"
	"storefront/internal/pkg/mq"
	"storefront/internal/service/order/domain"
)

// EventKafkaAdapter 实现了 port.EventPublisher 接口。
// 以订单 ID 作为消息 key，同一订单的事件落在同一分区内保持顺序。
type EventKafkaAdapter struct {
	writer *kafka.Writer
}

func NewEventKafkaAdapter(writer *kafka.Writer) *EventKafkaAdapter {
	return &EventKafkaAdapter{writer: writer}
}

func (a *EventKafkaAdapter) Publish(ctx context.Context, event *domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	// 调用通用的 mq.ProduceMessage，它会自动处理追踪上下文注入
	return mq.ProduceMessage(ctx, a.writer,
		[]byte(strconv.FormatInt(event.OrderID, 10)), payload,
		kafka.Header{Key: "event_type", Value: []byte(event.Type)},
		kafka.Header{Key: "event_id", Value: []byte(event.EventID)},
	)
}

// Close 关闭底层的Kafka writer
func (a *EventKafkaAdapter) Close() error {
	return a.writer.Close()
}

// LogEventPublisher 未配置 Kafka 时使用，事件只写日志
type LogEventPublisher struct{}

func (LogEventPublisher) Publish(ctx context.Context, event *domain.OrderEvent) error {
	logger.Ctx(ctx).Info().
		Str("event_id", event.EventID).
		Str("event_type", string(event.Type)).
		Int64("order_id", event.OrderID).
		Str("status", string(event.Status)).
		Str("reason", event.Reason).
		Msg("order event")
	return nil
}
