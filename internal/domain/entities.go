package domain

// NodeKind distinguishes the closed set of location-bearing entities.
type NodeKind int

const (
	KindDepot NodeKind = iota
	KindCustomer
	KindFacility
)

func (k NodeKind) String() string {
	switch k {
	case KindDepot:
		return "depot"
	case KindCustomer:
		return "customer"
	case KindFacility:
		return "facility"
	default:
		return "unknown"
	}
}

// Locatable is implemented by Depot, Customer and Facility only.
// Distance computation is generic over it.
type Locatable interface {
	NodeID() string
	NodeKind() NodeKind
	// Coords returns false when the entity carries no location.
	Coords() (Coordinates, bool)
	locatable()
}

// A collection point with waste to pick up.
type Customer struct {
	ID       string       `json:"id" yaml:"id" validate:"required"`
	Location *Coordinates `json:"location" yaml:"location" validate:"required"`
	Demand   int          `json:"demand" yaml:"demand" validate:"gte=0"`
	Service  int          `json:"service" yaml:"service" validate:"gte=0"`
}

// Where every route starts and ends.
type Depot struct {
	ID       string       `json:"id" yaml:"id" validate:"required"`
	Location *Coordinates `json:"location" yaml:"location" validate:"required"`
}

// Disposal site where a vehicle unloads and resets its carried load.
type Facility struct {
	ID       string       `json:"id" yaml:"id" validate:"required"`
	Location *Coordinates `json:"location" yaml:"location" validate:"required"`
}

func (c Customer) NodeID() string     { return c.ID }
func (c Customer) NodeKind() NodeKind { return KindCustomer }
func (c Customer) Coords() (Coordinates, bool) {
	return derefCoords(c.Location)
}
func (Customer) locatable() {}

func (d Depot) NodeID() string     { return d.ID }
func (d Depot) NodeKind() NodeKind { return KindDepot }
func (d Depot) Coords() (Coordinates, bool) {
	return derefCoords(d.Location)
}
func (Depot) locatable() {}

func (f Facility) NodeID() string     { return f.ID }
func (f Facility) NodeKind() NodeKind { return KindFacility }
func (f Facility) Coords() (Coordinates, bool) {
	return derefCoords(f.Location)
}
func (Facility) locatable() {}

func derefCoords(c *Coordinates) (Coordinates, bool) {
	if c == nil || !c.Finite() {
		return Coordinates{}, false
	}
	return *c, true
}

// Entities is the raw input of a solve: the fleet plus every node.
type Entities struct {
	Depots     []Depot    `json:"depots" yaml:"depots"`
	Facilities []Facility `json:"facilities" yaml:"facilities"`
	Customers  []Customer `json:"customers" yaml:"customers"`
	Vehicles   []Vehicle  `json:"vehicles" yaml:"vehicles"`
}

// Nodes lists every location-bearing entity: depots, customers, facilities.
func (e Entities) Nodes() []Locatable {
	out := make([]Locatable, 0, len(e.Depots)+len(e.Customers)+len(e.Facilities))
	for _, d := range e.Depots {
		out = append(out, d)
	}
	for _, c := range e.Customers {
		out = append(out, c)
	}
	for _, f := range e.Facilities {
		out = append(out, f)
	}
	return out
}
