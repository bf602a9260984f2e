package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"github.com/Shivanand-hulikatti/parking-console/internal/repository"
	"golang.org/x/sync/errgroup"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePublisher struct {
	mu    sync.Mutex
	stats []model.Stats
}

func (f *fakePublisher) Publish(s model.Stats) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = append(f.stats, s)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stats)
}

func newTestService(totalSpots int) (*FacilityService, *fakePublisher) {
	pub := &fakePublisher{}
	svc := NewFacilityService(repository.NewMemoryStore(), Options{
		TotalSpots: totalSpots,
		Location:   time.UTC,
		Publisher:  pub,
		Logger:     quietLogger,
	})
	return svc, pub
}

func TestCheckIn(t *testing.T) {
	cases := []struct {
		name      string
		plate     string
		class     model.VehicleClass
		wantPlate string
		wantErr   error
	}{
		{"Uppercases plate", "b 1234 cd", model.Car, "B 1234 CD", nil},
		{"Trims surrounding spaces", "  d5678ef ", model.Motorcycle, "D5678EF", nil},
		{"Truck", "TRK1", model.Truck, "TRK1", nil},
		{"Empty plate", "", model.Car, "", ErrInvalidInput},
		{"Whitespace plate", "   ", model.Car, "", ErrInvalidInput},
		{"Unknown class", "ABC", model.VehicleClass("BUS"), "", ErrInvalidInput},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			svc, _ := newTestService(10)
			ticket, err := svc.CheckIn(context.Background(), c.plate, c.class, t0)
			if c.wantErr != nil {
				if !errors.Is(err, c.wantErr) {
					t.Fatalf("CheckIn error = %v, want %v", err, c.wantErr)
				}
				active, _ := svc.ListActive(context.Background())
				if len(active) != 0 {
					t.Errorf("rejected check-in left %d active tickets", len(active))
				}
				return
			}
			if err != nil {
				t.Fatalf("CheckIn: unexpected error: %v", err)
			}
			if ticket.Plate != c.wantPlate {
				t.Errorf("Plate = %q, want %q", ticket.Plate, c.wantPlate)
			}
			if ticket.ID == "" {
				t.Error("ID is empty")
			}
			if ticket.Status() != model.StatusActive {
				t.Errorf("Status = %s, want ACTIVE", ticket.Status())
			}
			if !ticket.EntryTime.Equal(t0) {
				t.Errorf("EntryTime = %v, want %v", ticket.EntryTime, t0)
			}
			if ticket.ExitTime.Valid || ticket.Fee.Valid {
				t.Error("new ticket has exit time or fee")
			}
		})
	}
}

func TestCheckInAssignsUniqueIDs(t *testing.T) {
	svc, _ := newTestService(500)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		tk, err := svc.CheckIn(context.Background(), fmt.Sprintf("P%d", i), model.Car, t0)
		if err != nil {
			t.Fatalf("CheckIn %d: %v", i, err)
		}
		if seen[tk.ID] {
			t.Fatalf("duplicate id %s", tk.ID)
		}
		seen[tk.ID] = true
	}
}

func TestCheckInAtCapacity(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(2)

	for _, p := range []string{"A1", "A2"} {
		if _, err := svc.CheckIn(ctx, p, model.Car, t0); err != nil {
			t.Fatalf("CheckIn %s: %v", p, err)
		}
	}

	_, err := svc.CheckIn(ctx, "A3", model.Car, t0)
	if !errors.Is(err, repository.ErrCapacityExceeded) {
		t.Fatalf("CheckIn at capacity: got %v, want ErrCapacityExceeded", err)
	}

	stats, _ := svc.Stats(ctx, t0)
	if stats.OccupiedSpots != 2 {
		t.Errorf("OccupiedSpots = %d, want 2", stats.OccupiedSpots)
	}
	if pub.count() != 2 {
		t.Errorf("published %d updates, want 2", pub.count())
	}
}

func TestCheckOutFreesSpot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(1)

	tk, err := svc.CheckIn(ctx, "A1", model.Car, t0)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if _, err := svc.CheckOut(ctx, tk.ID, t0.Add(time.Hour)); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if _, err := svc.CheckIn(ctx, "A2", model.Car, t0.Add(time.Hour)); err != nil {
		t.Fatalf("CheckIn after checkout: %v", err)
	}
}

func TestCheckOutRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(10)

	tk, err := svc.CheckIn(ctx, "moto-1", model.Motorcycle, t0)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	out, err := svc.CheckOut(ctx, tk.ID, t0.Add(45*time.Minute))
	if err != nil {
		t.Fatalf("CheckOut: %v", err)
	}
	if out.Status() != model.StatusCompleted {
		t.Errorf("Status = %s, want COMPLETED", out.Status())
	}
	if !out.Fee.Valid || out.Fee.Int64 != 2000 {
		t.Errorf("Fee = %v, want 2000", out.Fee)
	}
	if !out.ExitTime.Valid || !out.ExitTime.Time.Equal(t0.Add(45*time.Minute)) {
		t.Errorf("ExitTime = %v, want %v", out.ExitTime, t0.Add(45*time.Minute))
	}
	if !out.EntryTime.Equal(tk.EntryTime) {
		t.Errorf("EntryTime changed: %v -> %v", tk.EntryTime, out.EntryTime)
	}
}

func TestCheckOutFees(t *testing.T) {
	cases := []struct {
		name  string
		class model.VehicleClass
		stay  time.Duration
		want  int64
	}{
		{"Car 10:00 to 12:30", model.Car, 2*time.Hour + 30*time.Minute, 11000},
		{"Car five hours one minute", model.Car, 5*time.Hour + time.Minute, 20000},
		{"Truck same instant", model.Truck, 0, 10000},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			svc, _ := newTestService(10)
			tk, err := svc.CheckIn(ctx, "X", c.class, t0)
			if err != nil {
				t.Fatalf("CheckIn: %v", err)
			}
			out, err := svc.CheckOut(ctx, tk.ID, t0.Add(c.stay))
			if err != nil {
				t.Fatalf("CheckOut: %v", err)
			}
			if out.Fee.Int64 != c.want {
				t.Errorf("Fee = %d, want %d", out.Fee.Int64, c.want)
			}
		})
	}
}

func TestCheckOutTwiceFails(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(10)

	tk, _ := svc.CheckIn(ctx, "A1", model.Car, t0)
	first, err := svc.CheckOut(ctx, tk.ID, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("first CheckOut: %v", err)
	}

	_, err = svc.CheckOut(ctx, tk.ID, t0.Add(9*time.Hour))
	if !errors.Is(err, repository.ErrAlreadyCompleted) {
		t.Fatalf("second CheckOut: got %v, want ErrAlreadyCompleted", err)
	}

	got, err := svc.GetTicket(ctx, tk.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if got.Fee != first.Fee || !got.ExitTime.Time.Equal(first.ExitTime.Time) {
		t.Errorf("second checkout altered ticket: fee %v exit %v", got.Fee, got.ExitTime)
	}
}

func TestCheckOutErrors(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(10)
	tk, _ := svc.CheckIn(ctx, "A1", model.Car, t0)

	if _, err := svc.CheckOut(ctx, "missing", t0); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown id: got %v, want ErrNotFound", err)
	}
	if _, err := svc.CheckOut(ctx, "", t0); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty id: got %v, want ErrInvalidInput", err)
	}
	if _, err := svc.CheckOut(ctx, tk.ID, t0.Add(-time.Minute)); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("exit before entry: got %v, want ErrInvalidInput", err)
	}

	got, _ := svc.GetTicket(ctx, tk.ID)
	if !got.Active() {
		t.Error("failed checkout mutated the ticket")
	}
	if pub.count() != 1 {
		t.Errorf("published %d updates, want 1", pub.count())
	}
}

func TestConcurrentCheckInsForLastSpot(t *testing.T) {
	for round := 0; round < 50; round++ {
		ctx := context.Background()
		svc, _ := newTestService(1)

		var ok, full atomic.Int32
		var g errgroup.Group
		for i := 0; i < 2; i++ {
			plate := fmt.Sprintf("R%d", i)
			g.Go(func() error {
				_, err := svc.CheckIn(ctx, plate, model.Car, t0)
				switch {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, repository.ErrCapacityExceeded):
					full.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("round %d: unexpected error: %v", round, err)
		}
		if ok.Load() != 1 || full.Load() != 1 {
			t.Fatalf("round %d: %d succeeded, %d refused; want 1 and 1", round, ok.Load(), full.Load())
		}
	}
}

func TestConcurrentCheckOutsChargeOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(10)
	tk, _ := svc.CheckIn(ctx, "A1", model.Car, t0)

	var ok, done atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		exit := t0.Add(time.Duration(i+1) * time.Hour)
		g.Go(func() error {
			_, err := svc.CheckOut(ctx, tk.ID, exit)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, repository.ErrAlreadyCompleted):
				done.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok.Load() != 1 || done.Load() != 7 {
		t.Fatalf("%d succeeded, %d refused; want 1 and 7", ok.Load(), done.Load())
	}
}

func TestListsAreMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(10)

	a, _ := svc.CheckIn(ctx, "A", model.Car, t0)
	b, _ := svc.CheckIn(ctx, "B", model.Car, t0.Add(time.Minute))
	c, _ := svc.CheckIn(ctx, "C", model.Truck, t0.Add(2*time.Minute))
	if _, err := svc.CheckOut(ctx, b.ID, t0.Add(time.Hour)); err != nil {
		t.Fatalf("CheckOut: %v", err)
	}

	active, _ := svc.ListActive(ctx)
	if len(active) != 2 || active[0].ID != c.ID || active[1].ID != a.ID {
		t.Errorf("ListActive order = %v", plates(active))
	}

	completed, _ := svc.ListCompleted(ctx)
	if len(completed) != 1 || completed[0].ID != b.ID {
		t.Errorf("ListCompleted = %v", plates(completed))
	}
}

func TestFindByPlate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(10)
	_, _ = svc.CheckIn(ctx, "B 1234 CD", model.Car, t0)
	_, _ = svc.CheckIn(ctx, "D 5678 EF", model.Motorcycle, t0)

	got, err := svc.FindByPlate(ctx, "1234cd")
	if err != nil {
		t.Fatalf("FindByPlate: %v", err)
	}
	if len(got) != 1 || got[0].Plate != "B 1234 CD" {
		t.Errorf("FindByPlate = %v", got)
	}

	if _, err := svc.FindByPlate(ctx, " "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty query: got %v, want ErrInvalidInput", err)
	}
}

func TestQuoteDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(10)
	tk, _ := svc.CheckIn(ctx, "A1", model.Car, t0)

	q, err := svc.Quote(ctx, tk.ID, t0.Add(2*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.BillableHours != 3 || q.Fee != 11000 {
		t.Errorf("Quote = %+v, want 3 hours / 11000", q)
	}

	got, _ := svc.GetTicket(ctx, tk.ID)
	if !got.Active() {
		t.Error("Quote closed the ticket")
	}

	_, _ = svc.CheckOut(ctx, tk.ID, t0.Add(time.Hour))
	if _, err := svc.Quote(ctx, tk.ID, t0.Add(2*time.Hour)); !errors.Is(err, repository.ErrAlreadyCompleted) {
		t.Errorf("Quote on completed: got %v, want ErrAlreadyCompleted", err)
	}
}

func TestRevenueTracksCompletedTickets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(10)

	a, _ := svc.CheckIn(ctx, "A", model.Car, t0)
	_, _ = svc.CheckIn(ctx, "B", model.Truck, t0)

	before, _ := svc.Stats(ctx, t0)
	if before.TotalRevenue != 0 {
		t.Fatalf("TotalRevenue = %d before any checkout", before.TotalRevenue)
	}

	out, _ := svc.CheckOut(ctx, a.ID, t0.Add(3*time.Hour))
	after, _ := svc.Stats(ctx, t0.Add(3*time.Hour))
	if after.TotalRevenue-before.TotalRevenue != out.Fee.Int64 {
		t.Errorf("revenue grew by %d, want %d", after.TotalRevenue-before.TotalRevenue, out.Fee.Int64)
	}
	if after.OccupiedSpots != 1 || after.AvailableSpots != 9 {
		t.Errorf("occupancy = %d/%d", after.OccupiedSpots, after.AvailableSpots)
	}
}

type errStore struct{ repository.MemoryStore }

func (errStore) Snapshot(context.Context) ([]model.Ticket, error) {
	return nil, errors.New("connection reset")
}

func TestStatsPropagatesStoreErrors(t *testing.T) {
	svc := NewFacilityService(&errStore{}, Options{Logger: quietLogger})
	if _, err := svc.Stats(context.Background(), t0); err == nil {
		t.Error("Stats: expected error")
	}
}

func plates(ts []model.Ticket) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Plate
	}
	return out
}
