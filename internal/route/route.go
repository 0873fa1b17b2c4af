package route

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yegors/airship-atc/internal/config"
	"github.com/yegors/airship-atc/internal/physics"
)

var (
	ErrUnknownRoute = errors.New("unknown route")
	ErrUnknownLeg   = errors.New("unknown leg")
)

// ModelKind selects the avoidance model flown on a route
type ModelKind string

const (
	ModelPredecessor ModelKind = "predecessor"
	ModelZone        ModelKind = "zone"
)

// Derived approach geometry, in world units
const (
	TransitionDistance = 600.0 // transition point before the dock, along the leg
	InitialDistance    = 150.0 // initial approach point before the transition point
	FinalDistance      = 250.0 // final approach point behind the docked position
	FinalHeightFactor  = 0.5   // final approach height as a fraction of cruise height
)

// Approach is the static geometry for docking at the end of a leg
type Approach struct {
	SiteName      string       `json:"site_name"`
	DockPos       physics.Vec3 `json:"dock_pos"`
	TransitionPos physics.Vec3 `json:"transition_pos"`
	FinalPos      physics.Vec3 `json:"final_pos"`
	InitialPos    physics.Vec3 `json:"initial_pos"`
	Height        float32      `json:"height"`
	// Direction is the way the airship faces when docked
	Direction physics.Vec2 `json:"direction"`
}

// ZoneReference is the squared radius of the inner zone around the dock
func (a Approach) ZoneReference() float64 {
	return a.DockPos.XY().DistanceSquared(a.FinalPos.XY())
}

// Route is an ordered, circular list of legs. Leg i ends at Legs[i].
type Route struct {
	ID    int        `json:"id"`
	Model ModelKind  `json:"model"`
	Legs  []Approach `json:"legs"`
}

// Network holds every route
type Network struct {
	routes          map[int]Route
	dockingDuration float32
}

// NewNetwork creates a network from fully built routes
func NewNetwork(routes []Route, dockingDuration float32) (*Network, error) {
	n := &Network{routes: make(map[int]Route, len(routes)), dockingDuration: dockingDuration}
	for _, r := range routes {
		if _, ok := n.routes[r.ID]; ok {
			return nil, fmt.Errorf("duplicate route %d", r.ID)
		}
		if len(r.Legs) < 2 {
			return nil, fmt.Errorf("route %d: needs at least two legs", r.ID)
		}
		if r.Model == ModelZone {
			if _, err := Legacy(r); err != nil {
				return nil, err
			}
		}
		n.routes[r.ID] = r
	}
	return n, nil
}

// FromConfig builds the network described by the configuration
func FromConfig(cfg *config.Config) (*Network, error) {
	routes := make([]Route, 0, len(cfg.Routes))
	for _, rc := range cfg.Routes {
		r, err := Build(rc)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	return NewNetwork(routes, float32(cfg.Airships.DockingDurationSecs))
}

// Build derives a route from its configuration. Leg i departs from the dock
// of leg i-1 (wrapping) and ends at its own dock.
func Build(rc config.RouteConfig) (Route, error) {
	if len(rc.Legs) < 2 {
		return Route{}, fmt.Errorf("route %d: needs at least two legs", rc.ID)
	}
	model := ModelKind(rc.Model)
	if model == "" {
		model = ModelPredecessor
	}

	r := Route{ID: rc.ID, Model: model, Legs: make([]Approach, len(rc.Legs))}
	height := float32(rc.CruiseHeight)
	for i, lc := range rc.Legs {
		prev := rc.Legs[(i+len(rc.Legs)-1)%len(rc.Legs)]
		if len(lc.Dock) != 3 || len(prev.Dock) != 3 || len(lc.Direction) != 2 {
			return Route{}, fmt.Errorf("route %d leg %d: malformed geometry", rc.ID, i)
		}
		r.Legs[i] = deriveApproach(lc.Site, vec3(lc.Dock), vec3(prev.Dock), vec2(lc.Direction), height)
		if len(lc.Transition) == 3 {
			r.Legs[i].TransitionPos = vec3(lc.Transition)
		}
		if len(lc.Final) == 3 {
			r.Legs[i].FinalPos = vec3(lc.Final)
		}
		if len(lc.Initial) == 3 {
			r.Legs[i].InitialPos = vec3(lc.Initial)
		}
	}
	return r, nil
}

func deriveApproach(site string, dock, from physics.Vec3, dir physics.Vec2, height float32) Approach {
	facing := dir.NormalizedOr(physics.V2(0, 1))
	along := dock.XY().Sub(from.XY()).NormalizedOr(facing)
	cruiseZ := dock.Z + height

	transition := dock.XY().Sub(along.Scale(TransitionDistance))
	initial := transition.Sub(along.Scale(InitialDistance))
	final := dock.XY().Sub(facing.Scale(FinalDistance))

	return Approach{
		SiteName:      site,
		DockPos:       dock,
		TransitionPos: transition.WithZ(cruiseZ),
		InitialPos:    initial.WithZ(cruiseZ),
		FinalPos:      final.WithZ(dock.Z + height*FinalHeightFactor),
		Height:        height,
		Direction:     facing,
	}
}

func vec3(v []float64) physics.Vec3 {
	return physics.V3(float32(v[0]), float32(v[1]), float32(v[2]))
}

func vec2(v []float64) physics.Vec2 {
	return physics.V2(float32(v[0]), float32(v[1]))
}

func (n *Network) route(id int) (Route, error) {
	r, ok := n.routes[id]
	if !ok {
		return Route{}, fmt.Errorf("route %d: %w", id, ErrUnknownRoute)
	}
	return r, nil
}

// Route returns the route with the given id
func (n *Network) Route(id int) (Route, error) {
	return n.route(id)
}

// Routes returns all routes ordered by id
func (n *Network) Routes() []Route {
	out := make([]Route, 0, len(n.routes))
	for _, r := range n.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ApproachFor returns the approach at the end of leg
func (n *Network) ApproachFor(routeID, leg int) (Approach, error) {
	r, err := n.route(routeID)
	if err != nil {
		return Approach{}, err
	}
	if leg < 0 || leg >= len(r.Legs) {
		return Approach{}, fmt.Errorf("route %d leg %d: %w", routeID, leg, ErrUnknownLeg)
	}
	return r.Legs[leg], nil
}

// IncrementLeg returns the leg after leg, wrapping to the first
func (n *Network) IncrementLeg(routeID, leg int) (int, error) {
	return n.step(routeID, leg, 1)
}

// DecrementLeg returns the leg before leg, wrapping to the last
func (n *Network) DecrementLeg(routeID, leg int) (int, error) {
	return n.step(routeID, leg, -1)
}

func (n *Network) step(routeID, leg, delta int) (int, error) {
	r, err := n.route(routeID)
	if err != nil {
		return 0, err
	}
	count := len(r.Legs)
	if leg < 0 || leg >= count {
		return 0, fmt.Errorf("route %d leg %d: %w", routeID, leg, ErrUnknownLeg)
	}
	return (leg + delta + count) % count, nil
}

// RouteLen returns the number of legs of a route
func (n *Network) RouteLen(routeID int) (int, error) {
	r, err := n.route(routeID)
	if err != nil {
		return 0, err
	}
	return len(r.Legs), nil
}

// NearestLeg returns the leg whose approach is closest to pos. Distances are
// measured to the initial approach point and the dock, whichever is nearer.
func (n *Network) NearestLeg(routeID int, pos physics.Vec2) (int, error) {
	r, err := n.route(routeID)
	if err != nil {
		return 0, err
	}
	best, bestDist := 0, -1.0
	for i, a := range r.Legs {
		d := min(pos.DistanceSquared(a.InitialPos.XY()), pos.DistanceSquared(a.DockPos.XY()))
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

// Model returns the avoidance model flown on a route
func (n *Network) Model(routeID int) (ModelKind, error) {
	r, err := n.route(routeID)
	if err != nil {
		return "", err
	}
	return r.Model, nil
}

// DockingDuration is the base time spent at each dock, in seconds
func (n *Network) DockingDuration() float32 {
	return n.dockingDuration
}
