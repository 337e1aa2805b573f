package events

import (
	"context"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	BundleLoaded       EventType = "bundle.loaded"
	CoverageClassified EventType = "coverage.classified"
	ShiftsAttributed   EventType = "shifts.attributed"
	ThirdPartyAnalyzed EventType = "thirdparty.analyzed"
	AnalysisCompleted  EventType = "analysis.completed"
	AnalysisDegraded   EventType = "analysis.degraded"
	SessionSaved       EventType = "session.saved"
	CaptureDetected    EventType = "capture.detected"
)

type Event struct {
	ID        string
	Type      EventType
	SessionID string
	Timestamp time.Time
	Data      map[string]interface{}
}

type Handler func(event Event)

// WorkerPoolConfig holds configuration for the event bus worker pool.
type WorkerPoolConfig struct {
	WorkerCount int
	BufferSize  int
}

// DefaultWorkerPoolConfig returns the default configuration.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	return WorkerPoolConfig{
		WorkerCount: workers,
		BufferSize:  256,
	}
}

type eventTask struct {
	event   Event
	handler Handler
}

// EventBus fans analysis pipeline events out to subscribers on a fixed
// worker pool. Handlers run off the publisher's goroutine; a full pool
// falls back to a one-off goroutine rather than blocking the pipeline.
type EventBus struct {
	handlers   map[EventType][]Handler
	mu         sync.RWMutex
	workerPool chan eventTask
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewEventBus() *EventBus {
	return NewEventBusWithConfig(DefaultWorkerPoolConfig())
}

func NewEventBusWithConfig(config WorkerPoolConfig) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	eb := &EventBus{
		handlers:   make(map[EventType][]Handler),
		workerPool: make(chan eventTask, config.BufferSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < config.WorkerCount; i++ {
		eb.wg.Add(1)
		go eb.worker()
	}

	return eb
}

func (eb *EventBus) worker() {
	defer eb.wg.Done()

	for {
		select {
		case task := <-eb.workerPool:
			runHandler(task.handler, task.event)
		case <-eb.ctx.Done():
			return
		}
	}
}

func runHandler(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: handler panic on %s: %v", e.Type, r)
		}
	}()
	h(e)
}

func (eb *EventBus) Subscribe(eventType EventType, handler Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

func (eb *EventBus) Publish(event Event) {
	event.Timestamp = time.Now()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	eb.mu.RLock()
	handlers := eb.handlers[event.Type]
	eb.mu.RUnlock()

	for _, handler := range handlers {
		task := eventTask{event: event, handler: handler}
		select {
		case eb.workerPool <- task:
		default:
			go runHandler(handler, event)
		}
	}
}

// Shutdown stops the worker pool and waits for in-flight handlers.
func (eb *EventBus) Shutdown() {
	eb.cancel()
	eb.wg.Wait()
}
