package domain

import "fmt"

// Collection vehicle. StartupCost is incurred only when the vehicle is used.
type Vehicle struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Capacity    int    `json:"capacity" yaml:"capacity" validate:"gt=0"`
	MaxShift    int    `json:"max_shift" yaml:"max_shift" validate:"gt=0"`
	StartupCost int    `json:"startup_cost" yaml:"startup_cost" validate:"gte=0"`
}

// Hopper tracks what a vehicle carries between disposal visits.
type Hopper struct {
	VehicleID string
	Capacity  int
	Load      int
	Collected int
	Dumps     int
}

func NewHopper(v Vehicle) *Hopper {
	return &Hopper{VehicleID: v.ID, Capacity: v.Capacity}
}

// Fits reports whether demand can be collected without a disposal visit first.
func (h *Hopper) Fits(demand int) bool {
	return h.Load+demand <= h.Capacity
}

// Collect adds a customer's demand to the carried load.
func (h *Hopper) Collect(demand int) error {
	if !h.Fits(demand) {
		return fmt.Errorf(
			"collect: vehicle %s would carry %d (capacity=%d)",
			h.VehicleID, h.Load+demand, h.Capacity,
		)
	}
	h.Load += demand
	h.Collected += demand
	return nil
}

// Dump empties the hopper at the disposal facility.
func (h *Hopper) Dump() {
	h.Load = 0
	h.Dumps++
}
