package bootstrap

import (
	"context"
	"os"
	"sync"
	"time"

	"intake_server/adapter/in/scheduler"
	"intake_server/adapter/in/worker"
	"intake_server/adapter/out/messaging"
	"intake_server/config"
	"intake_server/pkg/logger"

	"github.com/rs/zerolog"
)

// Worker runs the background side of the service: the scheduled mailbox
// sweeps and the draft-job stream consumer.
type Worker struct {
	consumer  *messaging.Consumer
	scheduler *scheduler.Scheduler
	cleanup   func()
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewWorker builds the worker from config.
func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "intake-worker",
	})

	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		cleanup: cleanup,
		ctx:     ctx,
		cancel:  cancel,
	}

	// Stream consumer delivers queued draft jobs to the webhook. Only
	// wired when jobs actually flow through the queue.
	if deps.Redis != nil && cfg.DispatchMode == "queue" {
		processor := worker.NewDraftProcessor(deps.Notifier, zlog)
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:                cfg.ConsumerGroup,
			Consumer:             cfg.ConsumerID,
			Streams:              []string{messaging.StreamDraftJobs},
			Handler:              processor,
			Logger:               zlog,
			MaxRetries:           cfg.ConsumerMaxRetries,
			PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
		})
	}

	if cfg.SchedulerEnabled {
		w.scheduler = scheduler.New(deps.Intake, cfg.SchedulerInterval(), logger.Default())
	}

	return w, cleanup, nil
}

// Start runs the consumer and scheduler until Stop is called.
func (w *Worker) Start() {
	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Run(w.ctx); err != nil && w.ctx.Err() == nil {
				logger.WithError(err).Error("stream consumer exited")
			}
		}()
	}

	if w.scheduler != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.scheduler.Run(w.ctx); err != nil && w.ctx.Err() == nil {
				logger.WithError(err).Error("scheduler exited")
			}
		}()
	}

	if w.consumer == nil && w.scheduler == nil {
		logger.Warn("worker started with nothing to run: no queue and scheduler disabled")
	}

	w.wg.Wait()
}

// Stop cancels all loops and waits for them to drain.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}
