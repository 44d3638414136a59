package provisioning

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned when a negative occupancy is given.
var ErrInvalidInput = errors.New("invalid input")

// Resource identifies one consumable served in the hall.
type Resource int

const (
	Plates Resource = iota
	RiceKg
	DalLiters
	Rotis
	SabjiKg
)

// Resources lists every resource in report order.
var Resources = []Resource{Plates, RiceKg, DalLiters, Rotis, SabjiKg}

var names = [...]string{
	Plates:    "Plates",
	RiceKg:    "Rice (kg)",
	DalLiters: "Dal (liters)",
	Rotis:     "Rotis",
	SabjiKg:   "Sabji (kg)",
}

// Per-person quantities.
var perPerson = [...]float64{
	Plates:    1,
	RiceKg:    0.25,
	DalLiters: 0.20,
	Rotis:     2,
	SabjiKg:   0.15,
}

func (r Resource) String() string {
	if r < 0 || int(r) >= len(names) {
		return fmt.Sprintf("resource(%d)", int(r))
	}
	return names[r]
}

// Row is one (name, quantity) line of a report.
type Row struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
}

// Table holds the quantities needed for one occupancy value.
type Table struct {
	Occupancy  int
	quantities [len(names)]float64
}

// Get returns the quantity of a single resource.
func (t Table) Get(r Resource) float64 {
	if r < 0 || int(r) >= len(t.quantities) {
		return 0
	}
	return t.quantities[r]
}

// Rows returns the table as ordered (name, quantity) pairs.
func (t Table) Rows() []Row {
	rows := make([]Row, 0, len(Resources))
	for _, r := range Resources {
		rows = append(rows, Row{Name: r.String(), Quantity: t.quantities[r]})
	}
	return rows
}

// Compute maps an occupancy to the resources needed to serve it.
func Compute(occupancy int) (Table, error) {
	if occupancy < 0 {
		return Table{}, fmt.Errorf("occupancy %d: %w", occupancy, ErrInvalidInput)
	}

	table := Table{Occupancy: occupancy}
	for _, r := range Resources {
		table.quantities[r] = round2(float64(occupancy) * perPerson[r])
	}
	return table, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
