package websocket

import (
	"github.com/yegors/airship-atc/internal/simulation"
)

// Publisher turns simulation events into hub broadcasts
type Publisher struct {
	hub *Server
}

// NewPublisher creates a publisher on hub
func NewPublisher(hub *Server) *Publisher {
	return &Publisher{hub: hub}
}

// OnTick sends one airship_update per route
func (p *Publisher) OnTick(states []simulation.AirshipState) {
	if len(states) == 0 {
		return
	}
	byRoute := make(map[int][]simulation.AirshipState)
	var order []int
	for _, st := range states {
		if _, ok := byRoute[st.RouteID]; !ok {
			order = append(order, st.RouteID)
		}
		byRoute[st.RouteID] = append(byRoute[st.RouteID], st)
	}
	for _, id := range order {
		p.hub.Broadcast(&Message{
			Type: MessageTypeAirshipUpdate,
			Data: map[string]any{
				"route_id": id,
				"sim_time": states[0].SimTime,
				"airships": byRoute[id],
			},
			routeID: id,
		})
	}
}

func (p *Publisher) OnModeChange(e simulation.ModeChange) {
	p.hub.Broadcast(&Message{
		Type: MessageTypeAirshipMode,
		Data: map[string]any{
			"airship_id":   e.AirshipID,
			"route_id":     e.RouteID,
			"phase":        e.Phase,
			"from":         e.From,
			"mode":         e.Mode,
			"speed_factor": e.SpeedFactor,
			"sim_time":     e.SimTime,
			"timestamp":    e.Timestamp,
		},
		routeID: e.RouteID,
	})
}

func (p *Publisher) OnDock(e simulation.DockEvent) {
	p.hub.Broadcast(&Message{
		Type: MessageTypeAirshipDock,
		Data: map[string]any{
			"airship_id": e.AirshipID,
			"route_id":   e.RouteID,
			"dock":       e.Dock,
			"sim_time":   e.SimTime,
			"timestamp":  e.Timestamp,
		},
		routeID: e.RouteID,
	})
}

func (p *Publisher) OnChat(e simulation.ChatLine) {
	p.hub.Broadcast(&Message{
		Type: MessageTypeAirshipChat,
		Data: map[string]any{
			"airship_id": e.AirshipID,
			"route_id":   e.RouteID,
			"key":        e.Key,
			"text":       e.Text,
			"sim_time":   e.SimTime,
			"timestamp":  e.Timestamp,
		},
		routeID: e.RouteID,
	})
}
