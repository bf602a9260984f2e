// Package pricing holds the rate table and the fee calculation.
package pricing

import (
	"errors"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
)

// ErrExitBeforeEntry is returned when a stay would end before it started.
var ErrExitBeforeEntry = errors.New("exit time is before entry time")

// Table maps every vehicle class to its rate schedule.
type Table struct {
	rates map[model.VehicleClass]model.RateSchedule
}

// DefaultTable returns the facility's standard rates.
func DefaultTable() Table {
	return Table{rates: map[model.VehicleClass]model.RateSchedule{
		model.Car:        {FirstHourFee: 5000, HourlyFee: 3000},
		model.Motorcycle: {FirstHourFee: 2000, HourlyFee: 1000},
		model.Truck:      {FirstHourFee: 10000, HourlyFee: 5000},
	}}
}

// NewTable validates that rates covers every vehicle class with
// non-negative fees.
func NewTable(rates map[model.VehicleClass]model.RateSchedule) (Table, error) {
	t := Table{rates: make(map[model.VehicleClass]model.RateSchedule, len(rates))}
	for _, c := range model.VehicleClasses {
		r, ok := rates[c]
		if !ok {
			return Table{}, fmt.Errorf("rate table: no entry for %s", c)
		}
		if r.FirstHourFee < 0 || r.HourlyFee < 0 {
			return Table{}, fmt.Errorf("rate table: negative fee for %s", c)
		}
		t.rates[c] = r
	}
	return t, nil
}

// RateFor returns the schedule for c. Tables are exhaustive by construction,
// so a miss is a programming error.
func (t Table) RateFor(c model.VehicleClass) model.RateSchedule {
	r, ok := t.rates[c]
	if !ok {
		panic(fmt.Sprintf("pricing: no rate for vehicle class %q", c))
	}
	return r
}

// Rates returns a copy of the whole table.
func (t Table) Rates() map[model.VehicleClass]model.RateSchedule {
	out := make(map[model.VehicleClass]model.RateSchedule, len(t.rates))
	for c, r := range t.rates {
		out[c] = r
	}
	return out
}

// BillableHours rounds a stay up to whole hours. Every stay, including a
// zero-length one, is billed at least one hour.
func BillableHours(entry, exit time.Time) (int64, error) {
	if exit.Before(entry) {
		return 0, ErrExitBeforeEntry
	}
	d := exit.Sub(entry)
	hours := int64(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours, nil
}

// ComputeFee charges the first-hour fee plus the hourly fee for every
// started hour after the first.
func (t Table) ComputeFee(entry, exit time.Time, c model.VehicleClass) (int64, error) {
	hours, err := BillableHours(entry, exit)
	if err != nil {
		return 0, err
	}
	r := t.RateFor(c)
	if hours <= 1 {
		return r.FirstHourFee, nil
	}
	return r.FirstHourFee + (hours-1)*r.HourlyFee, nil
}
