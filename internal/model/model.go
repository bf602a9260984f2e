// Package model defines the core domain types for the parking console.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/guregu/null.v4"
)

// VehicleClass is the pricing tier of a vehicle. The set is closed.
type VehicleClass string

const (
	Car        VehicleClass = "CAR"
	Motorcycle VehicleClass = "MOTORCYCLE"
	Truck      VehicleClass = "TRUCK"
)

// VehicleClasses lists every known class in display order.
var VehicleClasses = []VehicleClass{Car, Motorcycle, Truck}

// ParseVehicleClass accepts a class name in any letter case.
func ParseVehicleClass(s string) (VehicleClass, error) {
	c := VehicleClass(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown vehicle class %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the known classes.
func (c VehicleClass) Valid() bool {
	switch c {
	case Car, Motorcycle, Truck:
		return true
	}
	return false
}

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// Ticket is one vehicle's occupancy episode, from entry to (optional) exit.
//
// ExitTime and Fee are set together exactly once, at checkout. Status is
// derived from ExitTime and has no field of its own.
type Ticket struct {
	ID           string       `json:"id"`
	Plate        string       `json:"plate"`
	VehicleClass VehicleClass `json:"vehicle_class"`
	EntryTime    time.Time    `json:"entry_time"`
	ExitTime     null.Time    `json:"exit_time"`
	Fee          null.Int     `json:"fee"`
}

// Status returns COMPLETED once an exit time is recorded, ACTIVE otherwise.
func (t Ticket) Status() Status {
	if t.ExitTime.Valid {
		return StatusCompleted
	}
	return StatusActive
}

// Active reports whether the vehicle is still parked.
func (t Ticket) Active() bool {
	return !t.ExitTime.Valid
}

// MarshalJSON adds the derived status to the encoded ticket.
func (t Ticket) MarshalJSON() ([]byte, error) {
	type plain Ticket
	return json.Marshal(struct {
		plain
		Status Status `json:"status"`
	}{plain(t), t.Status()})
}

// RateSchedule is the two-tier price of one vehicle class.
type RateSchedule struct {
	FirstHourFee int64 `json:"first_hour_fee"`
	HourlyFee    int64 `json:"hourly_fee"`
}

// Stats is a derived summary of the ticket store. It is never stored.
type Stats struct {
	TotalSpots        int                  `json:"total_spots"`
	OccupiedSpots     int                  `json:"occupied_spots"`
	AvailableSpots    int                  `json:"available_spots"`
	TodayTransactions int                  `json:"today_transactions"`
	TotalRevenue      int64                `json:"total_revenue"`
	OccupancyByClass  map[VehicleClass]int `json:"occupancy_by_class"`
}

// Quote previews the fee an active ticket would be charged at a given time.
type Quote struct {
	TicketID      string    `json:"ticket_id"`
	Plate         string    `json:"plate"`
	At            time.Time `json:"at"`
	BillableHours int64     `json:"billable_hours"`
	Fee           int64     `json:"fee"`
}

// Recognition is what an external recognizer extracted from a vehicle image.
type Recognition struct {
	Plate        string       `json:"plate"`
	VehicleClass VehicleClass `json:"vehicle_class"`
	Confidence   float64      `json:"confidence"`
}

// Suggestion pre-fills a pending check-in. The operator may override it.
type Suggestion struct {
	Recognition
	LowConfidence bool `json:"low_confidence"`
}

// Snapshot is a read-only, point-in-time view handed to the assistant.
type Snapshot struct {
	TakenAt time.Time `json:"taken_at"`
	Tickets []Ticket  `json:"tickets"`
	Stats   Stats     `json:"stats"`
}

// RecognizeResponse reports the outcome of a plate scan. Suggestion is nil
// when nothing usable was recognized.
type RecognizeResponse struct {
	Found      bool        `json:"found"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// RecognizeRequest carries a base64 image for JSON clients.
type RecognizeRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// CheckInRequest is the payload for admitting a vehicle.
type CheckInRequest struct {
	Plate        string `json:"plate"`
	VehicleClass string `json:"vehicle_class"`
}

// AskRequest is the payload for a free-text question.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries the assistant's answer. Fallback is true when the
// external service could not produce one.
type AskResponse struct {
	Answer   string `json:"answer"`
	Fallback bool   `json:"fallback"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
