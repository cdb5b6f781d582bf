package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membermall/internal/pkg/metrics"
	"membermall/internal/service/member/domain"
)

// fakeReader 依次返回预置消息，取完后阻塞到 ctx 取消
type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func supportMessage(t *testing.T, offset int64, step string) kafka.Message {
	t.Helper()
	value, err := json.Marshal(domain.NeedsSupportEvent{
		RedemptionID: "r-1",
		MemberNumber: "M001",
		CouponID:     "coupon-1",
		FailedStep:   step,
		Reason:       "smtp down",
		At:           time.Now(),
	})
	require.NoError(t, err)
	return kafka.Message{Key: []byte("M001"), Value: value, Offset: offset}
}

func TestSupportConsumer_Handle(t *testing.T) {
	c := NewSupportConsumer(newFakeReader(), "member-mall-redemptions")
	step := testutil.ToFloat64(metrics.SupportEvents.WithLabelValues("debit"))
	bad := testutil.ToFloat64(metrics.SupportEvents.WithLabelValues("unparsable"))

	c.Handle(context.Background(), supportMessage(t, 1, "debit"))
	c.Handle(context.Background(), kafka.Message{Value: []byte("{oops")})

	assert.Equal(t, step+1, testutil.ToFloat64(metrics.SupportEvents.WithLabelValues("debit")))
	assert.Equal(t, bad+1, testutil.ToFloat64(metrics.SupportEvents.WithLabelValues("unparsable")))
}

func TestSupportConsumer_CommitsEveryMessage(t *testing.T) {
	reader := newFakeReader(
		supportMessage(t, 10, "notify"),
		kafka.Message{Offset: 11, Value: []byte("not json")},
		supportMessage(t, 12, "debit"),
	)
	c := NewSupportConsumer(reader, "member-mall-redemptions")

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	require.Eventually(t, func() bool { return reader.commits() == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	c.Stop(context.Background())
	assert.True(t, reader.closed)
	assert.Equal(t, []int64{10, 11, 12}, reader.committed)
}
