package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"assesy/internal/common/mq"
	"assesy/internal/interview/model"
	"assesy/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultEventQueueSize = 256

type queuedEvent struct {
	ctx   context.Context
	event model.StatusEvent
}

// StatusEventPublisher announces persisted session transitions on a topic.
// Events are delivered by one background sender in the order they were
// published.
// A nil publisher is valid and publishes nothing.
type StatusEventPublisher struct {
	producer mq.Producer
	topic    string
	queue    chan queuedEvent
	once     sync.Once
}

func NewStatusEventPublisher(producer mq.Producer, topic string) *StatusEventPublisher {
	if producer == nil || topic == "" {
		return nil
	}
	return &StatusEventPublisher{
		producer: producer,
		topic:    topic,
		queue:    make(chan queuedEvent, defaultEventQueueSize),
	}
}

// start runs the sender on tasks until the group shuts down.
func (p *StatusEventPublisher) start(tasks *TaskGroup) {
	if p == nil || tasks == nil {
		return
	}
	p.once.Do(func() {
		tasks.Go(context.Background(), "status-event-sender", func(context.Context) error {
			p.run(tasks.stopping)
			return nil
		})
	})
}

func (p *StatusEventPublisher) run(stopping <-chan struct{}) {
	for {
		select {
		case item := <-p.queue:
			p.send(item)
		case <-stopping:
			for {
				select {
				case item := <-p.queue:
					p.send(item)
				default:
					return
				}
			}
		}
	}
}

// Publish queues the event and returns at once. A full queue drops the event.
func (p *StatusEventPublisher) Publish(ctx context.Context, token string, from, to model.SessionStatus, at time.Time) {
	if p == nil {
		return
	}
	item := queuedEvent{
		ctx:   context.WithoutCancel(ctx),
		event: model.StatusEvent{Token: token, From: from, To: to, At: at.UTC()},
	}
	select {
	case p.queue <- item:
	default:
		logger.Warn(ctx, "status event queue full, dropping event",
			zap.String("topic", p.topic),
			zap.String("status", string(to)),
		)
	}
}

func (p *StatusEventPublisher) send(item queuedEvent) {
	ctx, ev := item.ctx, item.event
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Warn(ctx, "marshal status event failed", zap.Error(err))
		return
	}
	message := mq.NewMessage(payload)
	message.ID = fmt.Sprintf("session-%s-%s-%d", ev.Token, ev.To, ev.At.UnixNano())
	message.Key = ev.Token
	message.SetHeader("status", string(ev.To))
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		logger.Warn(ctx, "publish status event failed",
			zap.String("topic", p.topic),
			zap.String("status", string(ev.To)),
			zap.Error(err),
		)
	}
}
