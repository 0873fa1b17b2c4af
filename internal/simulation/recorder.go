package simulation

import (
	"context"
	"sync"

	"github.com/yegors/airship-atc/internal/metrics"
	"github.com/yegors/airship-atc/internal/storage/sqlite"
	"github.com/yegors/airship-atc/pkg/logger"
)

// EventStore persists mode changes and docks
type EventStore interface {
	InsertModeChange(rec *sqlite.ModeChangeRecord) (int64, error)
	InsertDockEvent(rec *sqlite.DockEventRecord) (int64, error)
}

// ChatStore persists chat lines
type ChatStore interface {
	StoreChatLine(rec *sqlite.ChatRecord) (int64, error)
}

// recorderQueue bounds the events waiting to be written
const recorderQueue = 1024

// Recorder is an EventSink that writes events to storage from its own
// goroutine so the simulation loop never waits on the database
type Recorder struct {
	events EventStore
	chat   ChatStore
	queue  chan any
	logger *logger.Logger

	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// NewRecorder creates a recorder. chat may be nil.
func NewRecorder(events EventStore, chat ChatStore, log *logger.Logger) *Recorder {
	return &Recorder{
		events: events,
		chat:   chat,
		queue:  make(chan any, recorderQueue),
		logger: log.Named("recorder"),
		closed: make(chan struct{}),
	}
}

// Start begins writing queued events
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

// Close flushes the queue and stops the writer
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.closed)
		r.wg.Wait()
	})
}

func (r *Recorder) OnModeChange(e ModeChange) { r.enqueue(e) }
func (r *Recorder) OnDock(e DockEvent)        { r.enqueue(e) }
func (r *Recorder) OnTick([]AirshipState)     {}

func (r *Recorder) OnChat(e ChatLine) {
	if r.chat != nil {
		r.enqueue(e)
	}
}

func (r *Recorder) enqueue(e any) {
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("Event queue full, dropping event")
		metrics.StorageWriteErrors.WithLabelValues("queue").Inc()
	}
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-r.closed:
			r.drain()
			return
		case <-ctx.Done():
			r.drain()
			return
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		default:
			return
		}
	}
}

func (r *Recorder) write(e any) {
	var table string
	var err error
	switch e := e.(type) {
	case ModeChange:
		table = "mode_changes"
		_, err = r.events.InsertModeChange(&sqlite.ModeChangeRecord{
			RunID:       e.RunID,
			AirshipID:   e.AirshipID,
			RouteID:     e.RouteID,
			Phase:       e.Phase.String(),
			From:        e.From.String(),
			To:          e.Mode.Kind.String(),
			SpeedFactor: float64(e.SpeedFactor),
			Timestamp:   e.Timestamp,
		})
	case DockEvent:
		table = "dock_events"
		d := e.Dock
		_, err = r.events.InsertDockEvent(&sqlite.DockEventRecord{
			RunID:         e.RunID,
			AirshipID:     e.AirshipID,
			RouteID:       e.RouteID,
			Site:          d.Site,
			Leg:           d.Leg,
			DidHold:       d.DidHold,
			SlowCount:     int(d.SlowCount),
			ExtraHold:     float64(d.ExtraHold),
			ExtraSlowdown: float64(d.ExtraSlowdown),
			Wait:          float64(d.Wait),
			Timestamp:     e.Timestamp,
		})
	case ChatLine:
		table = "chat_lines"
		_, err = r.chat.StoreChatLine(&sqlite.ChatRecord{
			RunID:     e.RunID,
			AirshipID: e.AirshipID,
			RouteID:   e.RouteID,
			Key:       e.Key,
			Text:      e.Text,
			CreatedAt: e.Timestamp,
		})
	}
	if err != nil {
		r.logger.Error("Failed to store event", logger.String("table", table), logger.Error(err))
		metrics.StorageWriteErrors.WithLabelValues(table).Inc()
	}
}
