package service

import (
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
)

// CanAdmit reports whether one more vehicle fits.
func CanAdmit(occupied, totalSpots int) bool {
	return occupied < totalSpots
}

// ComputeStats folds the full ticket collection into summary metrics.
// "Today" is the calendar day of now in loc.
func ComputeStats(tickets []model.Ticket, totalSpots int, now time.Time, loc *time.Location) model.Stats {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()

	s := model.Stats{
		TotalSpots:       totalSpots,
		OccupancyByClass: make(map[model.VehicleClass]int, len(model.VehicleClasses)),
	}
	for _, c := range model.VehicleClasses {
		s.OccupancyByClass[c] = 0
	}

	for _, t := range tickets {
		if ty, tm, td := t.EntryTime.In(loc).Date(); ty == y && tm == m && td == d {
			s.TodayTransactions++
		}
		if t.Active() {
			s.OccupiedSpots++
			s.OccupancyByClass[t.VehicleClass]++
			continue
		}
		s.TotalRevenue += t.Fee.Int64
	}

	s.AvailableSpots = totalSpots - s.OccupiedSpots
	if s.AvailableSpots < 0 {
		s.AvailableSpots = 0
	}
	return s
}
