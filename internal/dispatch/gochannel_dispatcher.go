package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/panjf2000/ants/v2"

	"commonbook-be/internal/pkg/logger"
)

const taskTopic = "tasks"

// GoChannelDispatcher runs the queue in process memory. Single-binary
// deployments get the same single-task worker semantics as the NATS
// setup without an external broker.
type GoChannelDispatcher struct {
	pubSub *gochannel.GoChannel
	pool   *ants.Pool
	limits Limits
	log    logger.ILogger

	closeOnce sync.Once
}

var _ IDispatcher = &GoChannelDispatcher{}

func NewGoChannelDispatcher(limits Limits, log logger.ILogger) (*GoChannelDispatcher, error) {
	// One worker slot: a second task waits until the first finishes.
	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &GoChannelDispatcher{
		pubSub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false)),
		pool:   pool,
		limits: limits,
		log:    log,
	}, nil
}

func (d *GoChannelDispatcher) Dispatch(_ context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := d.pubSub.Publish(taskTopic, msg); err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	return nil
}

func (d *GoChannelDispatcher) Start(ctx context.Context, handler Handler) error {
	messages, err := d.pubSub.Subscribe(ctx, taskTopic)
	if err != nil {
		return fmt.Errorf("subscribe to task topic: %w", err)
	}

	go func() {
		for msg := range messages {
			var task Task
			if err := json.Unmarshal(msg.Payload, &task); err != nil {
				d.log.Error("dispatch", "dropping undecodable task", map[string]interface{}{
					"message_id": msg.UUID,
					"error":      err.Error(),
				})
				msg.Ack()
				continue
			}

			var wg sync.WaitGroup
			wg.Add(1)
			submitErr := d.pool.Submit(func() {
				defer wg.Done()
				if err := runBounded(ctx, handler, task, d.limits, d.log); err != nil {
					d.log.Error("dispatch", "task handler failed", map[string]interface{}{
						"session_id": task.SessionID.String(),
						"task_type":  string(task.Type),
						"error":      err.Error(),
					})
				}
			})
			if submitErr != nil {
				wg.Done()
				d.log.Error("dispatch", "worker pool rejected task", map[string]interface{}{
					"session_id": task.SessionID.String(),
					"error":      submitErr.Error(),
				})
				msg.Nack()
				continue
			}
			// Ack only after the handler has fully run.
			wg.Wait()
			msg.Ack()
		}
	}()
	return nil
}

func (d *GoChannelDispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.pool.Release()
		err = d.pubSub.Close()
	})
	return err
}
