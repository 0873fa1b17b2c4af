package route

import "fmt"

// LegacyRoute is the out-and-back form used by zone-model routes: two sites,
// each leg ending at one of them
type LegacyRoute struct {
	ID         int
	Approaches [2]Approach
}

// Legacy adapts a two-leg route
func Legacy(r Route) (LegacyRoute, error) {
	if len(r.Legs) != 2 {
		return LegacyRoute{}, fmt.Errorf("route %d: legacy routes have exactly two legs, got %d", r.ID, len(r.Legs))
	}
	return LegacyRoute{ID: r.ID, Approaches: [2]Approach{r.Legs[0], r.Legs[1]}}, nil
}

// Destination returns the approach at the end of leg
func (l LegacyRoute) Destination(leg int) Approach {
	return l.Approaches[leg&1]
}

// Origin returns the approach of the site leg departs from
func (l LegacyRoute) Origin(leg int) Approach {
	return l.Approaches[(leg+1)&1]
}

// Route converts back to the general form
func (l LegacyRoute) Route() Route {
	return Route{ID: l.ID, Model: ModelZone, Legs: []Approach{l.Approaches[0], l.Approaches[1]}}
}

// Legacy returns a zone-model route in its out-and-back form
func (n *Network) Legacy(routeID int) (LegacyRoute, error) {
	r, err := n.route(routeID)
	if err != nil {
		return LegacyRoute{}, err
	}
	return Legacy(r)
}
