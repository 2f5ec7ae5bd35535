// Package trigger listens on a Kafka topic for upstream "data updated"
// notifications and invalidates the cached dataset when one arrives.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"covidlens/internal/metrics"
)

const defaultPoll = 500 * time.Millisecond

type messageReader interface {
	ReadMessage(timeout time.Duration) (*ck.Message, error)
}

// Listener calls OnUpdate for every notification whose key matches Key.
// An empty Key accepts every message.
type Listener struct {
	r        messageReader
	key      string
	onUpdate func()
	poll     time.Duration
	metrics  *metrics.Registry
	log      *zap.Logger
	closeFn  func() error
}

// NewKafkaListener subscribes a fresh consumer to topic. Offsets start at
// the latest message: only notifications sent while running matter.
func NewKafkaListener(bootstrap, groupID, topic, key string, onUpdate func(), m *metrics.Registry, log *zap.Logger) (*Listener, error) {
	c, err := ck.NewConsumer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"group.id":           groupID,
		"enable.auto.commit": true,
		"auto.offset.reset":  "latest",
	})
	if err != nil {
		return nil, fmt.Errorf("consumer: %w", err)
	}
	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	l := NewListenerWith(c, key, onUpdate, m, log)
	l.closeFn = c.Close
	return l, nil
}

// NewListenerWith allows injecting a custom reader (for testing).
func NewListenerWith(r messageReader, key string, onUpdate func(), m *metrics.Registry, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{r: r, key: key, onUpdate: onUpdate, poll: defaultPoll, metrics: m, log: log}
}

// Run polls until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msg, err := l.r.ReadMessage(l.poll)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			l.log.Warn("read trigger", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.poll):
			}
			continue
		}
		if l.key != "" && string(msg.Key) != l.key {
			continue
		}
		l.log.Info("source update received", zap.ByteString("key", msg.Key))
		if l.metrics != nil {
			l.metrics.Triggers.Inc()
		}
		l.onUpdate()
	}
}

func (l *Listener) Close() error {
	if l.closeFn == nil {
		return nil
	}
	return l.closeFn()
}

func isTimeout(err error) bool {
	var kerr ck.Error
	return errors.As(err, &kerr) && kerr.Code() == ck.ErrTimedOut
}
