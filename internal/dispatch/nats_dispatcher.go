package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"commonbook-be/internal/pkg/logger"
)

const (
	taskStream      = "TASKS"
	taskSubjectBase = "tasks"
	workerDurable   = "commonbook-worker"
)

// NatsDispatcher queues tasks through a JetStream work-queue stream so
// the API and worker can run as separate processes.
type NatsDispatcher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	limits Limits
	log    logger.ILogger

	consumeCtx jetstream.ConsumeContext
}

var _ IDispatcher = &NatsDispatcher{}

func NewNatsDispatcher(url string, limits Limits, log logger.ILogger) (*NatsDispatcher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      taskStream,
		Subjects:  []string{taskSubjectBase + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.WorkQueuePolicy,
	})
	if err != nil {
		log.Warn("dispatch", "failed to ensure task stream", map[string]interface{}{
			"stream": taskStream,
			"error":  err.Error(),
		})
	}

	return &NatsDispatcher{nc: nc, js: js, limits: limits, log: log}, nil
}

func (d *NatsDispatcher) Dispatch(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	subject := fmt.Sprintf("%s.%s", taskSubjectBase, task.Type)
	if _, err := d.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("failed to publish task to subject %s: %w", subject, err)
	}
	return nil
}

func (d *NatsDispatcher) Start(ctx context.Context, handler Handler) error {
	ackWait := d.limits.Hard + 5*time.Minute
	if d.limits.Hard == 0 {
		ackWait = time.Hour
	}

	consumer, err := d.js.CreateOrUpdateConsumer(ctx, taskStream, jetstream.ConsumerConfig{
		Durable:       workerDurable,
		FilterSubject: taskSubjectBase + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		// One in-flight task per worker; the queue holds the rest.
		MaxAckPending: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var task Task
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			d.log.Error("dispatch", "dropping undecodable task", map[string]interface{}{
				"subject": msg.Subject(),
				"error":   err.Error(),
			})
			msg.Term()
			return
		}

		if err := runBounded(ctx, handler, task, d.limits, d.log); err != nil {
			d.log.Error("dispatch", "task handler failed", map[string]interface{}{
				"session_id": task.SessionID.String(),
				"task_type":  string(task.Type),
				"error":      err.Error(),
			})
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	d.consumeCtx = consumeCtx

	d.log.Info("dispatch", "worker consuming tasks", map[string]interface{}{
		"stream":  taskStream,
		"durable": workerDurable,
	})
	return nil
}

func (d *NatsDispatcher) Close() error {
	if d.consumeCtx != nil {
		d.consumeCtx.Stop()
	}
	if d.nc != nil {
		d.nc.Close()
	}
	return nil
}
