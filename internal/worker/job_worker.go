package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"scholarai/internal/logger"
	"scholarai/internal/model"
)

// JobWorker consumes job messages from RabbitMQ and acks each one only after
// its handler has returned.
type JobWorker struct {
	conn        *amqp.Connection
	dispatcher  *Dispatcher
	queueName   string
	prefetch    int
	concurrency int
	log         *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJobWorker(conn *amqp.Connection, dispatcher *Dispatcher, queueName string, prefetch, concurrency int, log *logger.Logger) *JobWorker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if prefetch < concurrency {
		prefetch = concurrency
	}
	return &JobWorker{
		conn:        conn,
		dispatcher:  dispatcher,
		queueName:   queueName,
		prefetch:    prefetch,
		concurrency: concurrency,
		log:         log.With("component", "job_worker", "queue", queueName),
	}
}

func (w *JobWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	var consumers sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			w.consume(workerCtx, deliveries)
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		consumers.Wait()
		_ = ch.Close()
	}()

	w.log.Info("job worker started", "concurrency", w.concurrency)
	return nil
}

// consume stops taking deliveries once ctx is done. A job already handed to
// its handler runs on a context that ignores that cancellation, and Close
// waits for it.
func (w *JobWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	jobCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				_ = d.Nack(false, true)
				return
			}
			w.handle(jobCtx, d)
		}
	}
}

func (w *JobWorker) handle(ctx context.Context, d amqp.Delivery) {
	var msg model.JobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.JobID == "" {
		w.log.Error("decode job message failed", "error", err, "message_id", d.MessageId)
		_ = d.Nack(false, false)
		return
	}

	if err := w.dispatcher.Dispatch(ctx, msg); err != nil {
		// One requeue for transient store failures; a second failure drops the message.
		w.log.Error("dispatch job failed", "job_id", msg.JobID, "redelivered", d.Redelivered, "error", err)
		_ = d.Nack(false, !d.Redelivered)
		return
	}
	_ = d.Ack(false)
}

func (w *JobWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
