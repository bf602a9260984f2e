// Package service implements the facility controller: validation, capacity
// enforcement, fee calculation and orchestration between the HTTP handlers,
// the ticket store and the external inference services.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"github.com/Shivanand-hulikatti/parking-console/internal/pricing"
	"github.com/Shivanand-hulikatti/parking-console/internal/repository"
	"github.com/google/uuid"
)

// ErrInvalidInput marks malformed input. Nothing is mutated when it is
// returned.
var ErrInvalidInput = errors.New("invalid input")

const maxPlateLen = 32

// TicketStore is the sole owner of tickets.
type TicketStore interface {
	Insert(ctx context.Context, t model.Ticket, admit repository.AdmitFunc) error
	Checkout(ctx context.Context, id string, exitAt time.Time, price repository.PriceFunc) (*model.Ticket, error)
	Get(ctx context.Context, id string) (*model.Ticket, error)
	Snapshot(ctx context.Context) ([]model.Ticket, error)
}

// Publisher receives fresh stats after every successful mutation.
type Publisher interface {
	Publish(stats model.Stats)
}

// Options configures a FacilityService. Zero values fall back to defaults.
type Options struct {
	TotalSpots int
	Location   *time.Location
	Rates      *pricing.Table

	Recognizer             Recognizer
	Answerer               Answerer
	ExternalTimeout        time.Duration
	LowConfidenceThreshold float64

	Publisher Publisher
	Logger    *slog.Logger
}

// FacilityService is the only component allowed to mutate the ticket store.
type FacilityService struct {
	store      TicketStore
	rates      pricing.Table
	totalSpots int
	loc        *time.Location

	recognizer    Recognizer
	answerer      Answerer
	timeout       time.Duration
	lowConfidence float64

	publisher Publisher
	log       *slog.Logger
}

// NewFacilityService constructs a FacilityService with its dependencies.
func NewFacilityService(store TicketStore, opts Options) *FacilityService {
	s := &FacilityService{
		store:         store,
		rates:         pricing.DefaultTable(),
		totalSpots:    opts.TotalSpots,
		loc:           opts.Location,
		recognizer:    opts.Recognizer,
		answerer:      opts.Answerer,
		timeout:       opts.ExternalTimeout,
		lowConfidence: opts.LowConfidenceThreshold,
		publisher:     opts.Publisher,
		log:           opts.Logger,
	}
	if opts.Rates != nil {
		s.rates = *opts.Rates
	}
	if s.totalSpots <= 0 {
		s.totalSpots = 50
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.timeout <= 0 {
		s.timeout = 20 * time.Second
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// TotalSpots returns the facility's capacity.
func (s *FacilityService) TotalSpots() int { return s.totalSpots }

// Rates returns the rate table in use.
func (s *FacilityService) Rates() map[model.VehicleClass]model.RateSchedule { return s.rates.Rates() }

// NormalizePlate trims and upper-cases a license plate.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// CheckIn admits a vehicle and returns its new ticket. Capacity is checked
// and the ticket inserted in one atomic step inside the store.
func (s *FacilityService) CheckIn(ctx context.Context, plate string, class model.VehicleClass, now time.Time) (*model.Ticket, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if len(plate) > maxPlateLen {
		return nil, fmt.Errorf("%w: plate cannot exceed %d characters", ErrInvalidInput, maxPlateLen)
	}
	if !class.Valid() {
		return nil, fmt.Errorf("%w: unknown vehicle class %q", ErrInvalidInput, class)
	}

	admit := func(occupied int) bool { return CanAdmit(occupied, s.totalSpots) }

	// uuid collisions are not expected; the store rejects them regardless.
	var t model.Ticket
	for attempt := 0; ; attempt++ {
		t = model.Ticket{
			ID:           uuid.NewString(),
			Plate:        plate,
			VehicleClass: class,
			EntryTime:    now,
		}
		err := s.store.Insert(ctx, t, admit)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrDuplicateID) && attempt < 3 {
			continue
		}
		if errors.Is(err, repository.ErrCapacityExceeded) {
			s.log.InfoContext(ctx, "check-in refused, facility full", "plate", plate, "total_spots", s.totalSpots)
			return nil, err
		}
		return nil, fmt.Errorf("check in: %w", err)
	}

	s.log.InfoContext(ctx, "vehicle checked in", "ticket_id", t.ID, "plate", t.Plate, "class", t.VehicleClass)
	s.publish(ctx, now)
	return &t, nil
}

// CheckOut closes an active ticket and charges it. It never asks for
// confirmation; that belongs to the caller.
func (s *FacilityService) CheckOut(ctx context.Context, id string, now time.Time) (*model.Ticket, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: ticket id is required", ErrInvalidInput)
	}

	t, err := s.store.Checkout(ctx, id, now, func(t model.Ticket) (int64, error) {
		return s.rates.ComputeFee(t.EntryTime, now, t.VehicleClass)
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound), errors.Is(err, repository.ErrAlreadyCompleted):
			return nil, err
		case errors.Is(err, pricing.ErrExitBeforeEntry):
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, pricing.ErrExitBeforeEntry)
		}
		return nil, fmt.Errorf("check out: %w", err)
	}

	s.log.InfoContext(ctx, "vehicle checked out", "ticket_id", t.ID, "plate", t.Plate, "fee", t.Fee.Int64)
	s.publish(ctx, now)
	return t, nil
}

// Quote previews the fee for an active ticket at now without closing it.
func (s *FacilityService) Quote(ctx context.Context, id string, now time.Time) (*model.Quote, error) {
	t, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Active() {
		return nil, repository.ErrAlreadyCompleted
	}

	hours, err := pricing.BillableHours(t.EntryTime, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	fee, err := s.rates.ComputeFee(t.EntryTime, now, t.VehicleClass)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return &model.Quote{TicketID: t.ID, Plate: t.Plate, At: now, BillableHours: hours, Fee: fee}, nil
}

// GetTicket returns a single ticket by id.
func (s *FacilityService) GetTicket(ctx context.Context, id string) (*model.Ticket, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: ticket id is required", ErrInvalidInput)
	}
	t, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

// Stats recomputes the summary metrics from the current tickets.
func (s *FacilityService) Stats(ctx context.Context, now time.Time) (model.Stats, error) {
	tickets, err := s.store.Snapshot(ctx)
	if err != nil {
		return model.Stats{}, fmt.Errorf("read tickets: %w", err)
	}
	return ComputeStats(tickets, s.totalSpots, now, s.loc), nil
}

// Snapshot returns every ticket and the stats derived from that same read.
func (s *FacilityService) Snapshot(ctx context.Context, now time.Time) (model.Snapshot, error) {
	tickets, err := s.store.Snapshot(ctx)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read tickets: %w", err)
	}
	return model.Snapshot{
		TakenAt: now,
		Tickets: tickets,
		Stats:   ComputeStats(tickets, s.totalSpots, now, s.loc),
	}, nil
}

// ListActive returns parked vehicles, most recent first.
func (s *FacilityService) ListActive(ctx context.Context) ([]model.Ticket, error) {
	return s.filter(ctx, func(t model.Ticket) bool { return t.Active() })
}

// ListCompleted returns the transaction history, most recent first.
func (s *FacilityService) ListCompleted(ctx context.Context) ([]model.Ticket, error) {
	return s.filter(ctx, func(t model.Ticket) bool { return !t.Active() })
}

// FindByPlate returns tickets whose plate contains the query, ignoring case
// and spaces.
func (s *FacilityService) FindByPlate(ctx context.Context, query string) ([]model.Ticket, error) {
	q := compactPlate(query)
	if q == "" {
		return nil, fmt.Errorf("%w: plate query is required", ErrInvalidInput)
	}
	return s.filter(ctx, func(t model.Ticket) bool {
		return strings.Contains(compactPlate(t.Plate), q)
	})
}

func (s *FacilityService) filter(ctx context.Context, keep func(model.Ticket) bool) ([]model.Ticket, error) {
	tickets, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tickets: %w", err)
	}
	out := make([]model.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func compactPlate(p string) string {
	return strings.ReplaceAll(NormalizePlate(p), " ", "")
}

func (s *FacilityService) publish(ctx context.Context, now time.Time) {
	if s.publisher == nil {
		return
	}
	stats, err := s.Stats(ctx, now)
	if err != nil {
		s.log.WarnContext(ctx, "skip live update", "err", err)
		return
	}
	s.publisher.Publish(stats)
}
