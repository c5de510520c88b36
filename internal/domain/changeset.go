package domain

// ArcRef identifies a directed arc by node ids.
type ArcRef struct {
	From string `json:"from" yaml:"from" validate:"required"`
	To   string `json:"to" yaml:"to" validate:"required"`
}

// Changeset is an operational delta applied to a baseline instance.
type Changeset struct {
	RemoveCustomers []string   `json:"remove_customers" yaml:"remove_customers"`
	AddCustomers    []Customer `json:"add_customers" yaml:"add_customers" validate:"dive"`
	DisableVehicles []string   `json:"disable_vehicles" yaml:"disable_vehicles"`
	EnableVehicles  []string   `json:"enable_vehicles" yaml:"enable_vehicles"`
	BlockArcs       []ArcRef   `json:"block_arcs" yaml:"block_arcs" validate:"dive"`
}

func (c Changeset) IsEmpty() bool {
	return len(c.RemoveCustomers) == 0 &&
		len(c.AddCustomers) == 0 &&
		len(c.DisableVehicles) == 0 &&
		len(c.EnableVehicles) == 0 &&
		len(c.BlockArcs) == 0
}
