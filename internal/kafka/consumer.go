package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Handler must return nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const handlerAttempts = 3

type Consumer struct {
	r       Reader
	workers int
	backoff time.Duration
	log     *log.Entry
}

// NewConsumer joins group and reads every topic in topics.
func NewConsumer(brokers []string, group string, topics []string, workers int, logger *log.Entry) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
	})
	return newConsumer(r, workers, logger)
}

func newConsumer(r Reader, workers int, logger *log.Entry) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = log.WithField("component", "kafka-consumer")
	}
	return &Consumer{r: r, workers: workers, backoff: 200 * time.Millisecond, log: logger}
}

// Start dispatches messages to a worker pool until ctx ends. Messages of
// one partition always go to the same worker, in offset order, and are
// committed after their handler succeeds. When a handler still fails after
// handlerAttempts the consumer stops without committing that offset and
// Start returns the handler error, so the message is redelivered on restart.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		failOnce sync.Once
		failErr  error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			failErr = err
			cancel()
		})
	}

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 4)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := c.process(ctx, id, h, m); err != nil {
					fail(err)
				}
			}
		}(i, lanes[i])
	}

	err := c.fetch(ctx, lanes)
	for _, l := range lanes {
		close(l)
	}
	wg.Wait()

	if failErr != nil {
		return failErr
	}
	return err
}

func (c *Consumer) fetch(ctx context.Context, lanes []chan kafka.Message) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case lanes[lane(m, len(lanes))] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func lane(m kafka.Message, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(m.Topic))
	_, _ = h.Write([]byte{byte(m.Partition >> 24), byte(m.Partition >> 16), byte(m.Partition >> 8), byte(m.Partition)})
	return int(h.Sum32() % uint32(n))
}

func (c *Consumer) process(ctx context.Context, worker int, h Handler, m kafka.Message) error {
	entry := c.log.WithFields(log.Fields{
		"worker":    worker,
		"topic":     m.Topic,
		"partition": m.Partition,
		"offset":    m.Offset,
	})
	var err error
	for attempt := 1; attempt <= handlerAttempts; attempt++ {
		if err = h(ctx, m); err == nil {
			break
		}
		entry.WithError(err).WithField("attempt", attempt).Warn("handler failed")
		if attempt == handlerAttempts {
			break
		}
		select {
		case <-time.After(c.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return nil
		}
	}
	if err != nil {
		entry.WithError(err).Error("giving up on message, stopping consumer")
		return fmt.Errorf("%s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		entry.WithError(err).Error("commit failed")
	}
	return nil
}
