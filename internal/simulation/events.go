package simulation

import (
	"time"

	"github.com/yegors/airship-atc/internal/avoidance"
	"github.com/yegors/airship-atc/internal/pilot"
)

// ModeChange is emitted when an airship's avoidance mode changes
type ModeChange struct {
	RunID       string         `json:"run_id"`
	AirshipID   string         `json:"airship_id"`
	RouteID     int            `json:"route_id"`
	Phase       pilot.Phase    `json:"phase"`
	From        avoidance.Kind `json:"from"`
	Mode        avoidance.Mode `json:"mode"`
	SpeedFactor float32        `json:"speed_factor"`
	SimTime     float64        `json:"sim_time"`
	Timestamp   time.Time      `json:"timestamp"`
}

// DockEvent is emitted when an airship completes a dock
type DockEvent struct {
	RunID     string           `json:"run_id"`
	AirshipID string           `json:"airship_id"`
	RouteID   int              `json:"route_id"`
	Dock      pilot.DockRecord `json:"dock"`
	SimTime   float64          `json:"sim_time"`
	Timestamp time.Time        `json:"timestamp"`
}

// ChatLine is a rendered pilot utterance
type ChatLine struct {
	RunID     string            `json:"run_id"`
	AirshipID string            `json:"airship_id"`
	RouteID   int               `json:"route_id"`
	Key       string            `json:"key"`
	Data      map[string]string `json:"data,omitempty"`
	Text      string            `json:"text"`
	SimTime   float64           `json:"sim_time"`
	Timestamp time.Time         `json:"timestamp"`
}

// EventSink receives simulation events. Calls are made from the simulation
// loop and must not block.
type EventSink interface {
	OnModeChange(ModeChange)
	OnDock(DockEvent)
	OnChat(ChatLine)
	// OnTick receives the state of every airship after a tick
	OnTick([]AirshipState)
}

// MultiSink fans events out to several sinks
type MultiSink []EventSink

func (m MultiSink) OnModeChange(e ModeChange) {
	for _, s := range m {
		s.OnModeChange(e)
	}
}

func (m MultiSink) OnDock(e DockEvent) {
	for _, s := range m {
		s.OnDock(e)
	}
}

func (m MultiSink) OnChat(e ChatLine) {
	for _, s := range m {
		s.OnChat(e)
	}
}

func (m MultiSink) OnTick(states []AirshipState) {
	for _, s := range m {
		s.OnTick(states)
	}
}

// Renderer turns an utterance into text
type Renderer interface {
	Render(key string, data map[string]string) (string, error)
}

// chatBuffer collects the utterances of one airship during a tick
type chatBuffer struct {
	lines []pilot.Utterance
}

func (c *chatBuffer) Say(u pilot.Utterance) {
	c.lines = append(c.lines, u)
}
