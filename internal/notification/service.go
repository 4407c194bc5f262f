package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dispatch-service/internal/logging"
	"dispatch-service/internal/metrics"
	"dispatch-service/internal/models"
)

var errQueueFull = errors.New("notification queue full")

// Sink delivers one event to one channel. Send may block; it runs on a worker.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev models.Event) error
}

// Config sizes the worker pool.
type Config struct {
	QueueSize   int
	MaxWorkers  int
	SendTimeout time.Duration
}

// Service fans committed alert events out to its sinks on a worker pool.
type Service struct {
	logger  *logging.Logger
	metrics *metrics.Metrics
	config  Config
	sinks   []Sink
	tasks   chan models.Event
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
}

// New constructs a notification Service.
func New(logger *logging.Logger, m *metrics.Metrics, cfg Config, sinks ...Sink) *Service {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 500
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		logger:  logger,
		metrics: m,
		config:  cfg,
		sinks:   sinks,
		tasks:   make(chan models.Event, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.config.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop signals the workers to exit. Queued events that were not picked up are dropped.
func (s *Service) Stop() {
	s.cancel()
}

// Notify enqueues ev without blocking. The request context is not carried
// over, so a finished request does not cancel delivery.
func (s *Service) Notify(_ context.Context, ev models.Event) {
	select {
	case s.tasks <- ev:
		s.logger.Debugf("Queued event: type=%s alert_id=%s", ev.Type, ev.AlertID)
	default:
		s.logger.Warnf("Queue full, dropping event: type=%s alert_id=%s", ev.Type, ev.AlertID)
		s.metrics.ObserveNotification("queue", errQueueFull)
	}
}

// worker processes events until the service is stopped.
func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debugf("Worker %d stopped", id)
			return
		case ev := <-s.tasks:
			s.handleEvent(ev)
		}
	}
}

func (s *Service) handleEvent(ev models.Event) {
	for _, sink := range s.sinks {
		ctx, cancel := context.WithTimeout(s.ctx, s.config.SendTimeout)
		err := sink.Send(ctx, ev)
		cancel()
		s.metrics.ObserveNotification(sink.Name(), err)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"sink":     sink.Name(),
				"event":    ev.Type,
				"alert_id": ev.AlertID,
			}).Errorf("Dispatch error: %v", err)
		}
	}
}
