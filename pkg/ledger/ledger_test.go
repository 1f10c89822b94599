package ledger

import (
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"

	"github.com/TheNoZER0/ticketcalculator/pkg/scenario"
	"github.com/TheNoZER0/ticketcalculator/pkg/spec"
)

func event(name string) spec.EventConfig {
	return spec.EventConfig{
		Name:                 name,
		FixedCosts:           5000,
		CateringCost:         4000,
		TotalAttendees:       180,
		MerchMode:            spec.OptionalMerch,
		MerchUnitCost:        20,
		ExpectedMerchSold:    30,
		LastYearRegularPrice: spec.Float(30),
		RefundRate:           0.03,
		PlatformFeeRate:      0.04,
		PriceIncreaseCap:     5,
	}
}

func TestCommitMaintainsInvariant(t *testing.T) {
	l := New(19000)
	allocations := []float64{4000, 2500.5, 0, 7000}
	sum := 0.0
	for i, a := range allocations {
		sc := scenario.Evaluate(event("E"), a, l.Remaining())
		ev, err := l.Commit(sc, a)
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		sum += a
		if ev.BudgetAfterCommit != 19000-sum {
			t.Errorf("commit %d snapshot = %v, want %v", i, ev.BudgetAfterCommit, 19000-sum)
		}
		if math.Abs(l.Remaining()-(l.Total()-sum)) > 1e-9 || l.Remaining() < 0 {
			t.Errorf("remaining = %v, want %v", l.Remaining(), l.Total()-sum)
		}
	}
	if len(l.Events()) != len(allocations) {
		t.Errorf("events = %d, want %d", len(l.Events()), len(allocations))
	}
}

func TestCommitTicketLines(t *testing.T) {
	l := New(19000)
	sc := scenario.Evaluate(event("Careers"), 1000, l.Remaining())
	ev, err := l.Commit(sc, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(ev.Tickets) != 2 {
		t.Fatalf("tickets = %v, want regular and merch lines", ev.Tickets)
	}
	if ev.Tickets[0].Type != spec.TierRegular || ev.Tickets[0].Sold != 150 {
		t.Errorf("first line = %+v", ev.Tickets[0])
	}
	if ev.Tickets[1].Type != spec.TierMerchInclusive || ev.Tickets[1].Sold != 30 {
		t.Errorf("second line = %+v", ev.Tickets[1])
	}
	if ev.Tickets[0].Price != sc.Tiers[0].GrossPrice {
		t.Errorf("price = %v, want gross %v", ev.Tickets[0].Price, sc.Tiers[0].GrossPrice)
	}
}

func TestCommitRepricesAtChosenAllocation(t *testing.T) {
	l := New(19000)
	cfg := event("Careers")
	tested := scenario.Evaluate(cfg, 1000, l.Remaining())
	ev, err := l.Commit(tested, 3000)
	if err != nil {
		t.Fatal(err)
	}
	want := scenario.Evaluate(cfg, 3000, 19000)
	if ev.SponsorshipAllocated != 3000 || l.Remaining() != 16000 {
		t.Errorf("allocated = %v remaining = %v", ev.SponsorshipAllocated, l.Remaining())
	}
	for i, line := range ev.Tickets {
		if line.Price != want.Tiers[i].GrossPrice {
			t.Errorf("%s price = %v, want %v priced at 3000", line.Type, line.Price, want.Tiers[i].GrossPrice)
		}
		if line.Price >= tested.Tiers[i].GrossPrice {
			t.Errorf("%s price %v should drop below %v with more sponsorship", line.Type, line.Price, tested.Tiers[i].GrossPrice)
		}
	}
}

func TestCommitZeroMerchTierOmitted(t *testing.T) {
	cfg := event("No takers")
	cfg.ExpectedMerchSold = 0
	l := New(19000)
	ev, err := l.Commit(scenario.Evaluate(cfg, 0, l.Remaining()), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ev.Tickets) != 1 || ev.Tickets[0].Type != spec.TierRegular {
		t.Errorf("tickets = %+v, want only the regular line", ev.Tickets)
	}
}

func TestCommitBudgetExceededLeavesStateUnchanged(t *testing.T) {
	l := New(5000)
	if _, err := l.Commit(scenario.Evaluate(event("A"), 3000, l.Remaining()), 3000); err != nil {
		t.Fatal(err)
	}
	before := l.Events()

	sc := scenario.Evaluate(event("B"), 1000, l.Remaining())
	for _, chosen := range []float64{2000.01, -1, math.NaN()} {
		_, err := l.Commit(sc, chosen)
		if !errors.Is(err, ErrBudgetExceeded) {
			t.Errorf("chosen %v: err = %v, want ErrBudgetExceeded", chosen, err)
		}
	}
	if l.Remaining() != 2000 {
		t.Errorf("remaining = %v, want 2000", l.Remaining())
	}
	if !reflect.DeepEqual(before, l.Events()) {
		t.Error("events changed after failed commit")
	}
}

func TestCommitRefusesOverBudgetScenario(t *testing.T) {
	l := New(1000)
	sc := scenario.Evaluate(event("A"), 1500, l.Remaining())
	if _, err := l.Commit(sc, 500); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("err = %v, want ErrBudgetExceeded", err)
	}
	if len(l.Events()) != 0 {
		t.Error("over-budget scenario was committed")
	}
}

func TestCommitRefusesInputError(t *testing.T) {
	cfg := event("A")
	cfg.ExpectedMerchSold = 999
	l := New(1000)
	if _, err := l.Commit(scenario.Evaluate(cfg, 0, l.Remaining()), 0); !errors.Is(err, ErrInputError) {
		t.Errorf("err = %v, want ErrInputError", err)
	}
}

func TestCommitNoValidPrice(t *testing.T) {
	cfg := event("A")
	cfg.PlatformFeeRate = 1
	l := New(1000)
	_, err := l.Commit(scenario.Evaluate(cfg, 100, l.Remaining()), 100)
	if !errors.Is(err, ErrNoValidPrice) {
		t.Errorf("err = %v, want ErrNoValidPrice", err)
	}
	if l.Remaining() != 1000 {
		t.Errorf("remaining = %v, want 1000", l.Remaining())
	}
}

func TestCommitZeroAttendeesAllowed(t *testing.T) {
	cfg := event("Sponsor dinner")
	cfg.TotalAttendees = 0
	cfg.ExpectedMerchSold = 0
	l := New(1000)
	ev, err := l.Commit(scenario.Evaluate(cfg, 400, l.Remaining()), 400)
	if err != nil {
		t.Fatalf("zero-attendee commit: %v", err)
	}
	if len(ev.Tickets) != 0 {
		t.Errorf("tickets = %v, want none", ev.Tickets)
	}
	if l.Remaining() != 600 {
		t.Errorf("remaining = %v, want 600", l.Remaining())
	}
}

func TestCommitConcurrentNeverOverdraws(t *testing.T) {
	l := New(1000)
	sc := scenario.Evaluate(event("A"), 100, l.Remaining())

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Commit(sc, 100); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if ok != 10 {
		t.Errorf("successful commits = %d, want 10", ok)
	}
	if l.Remaining() != 0 {
		t.Errorf("remaining = %v, want 0", l.Remaining())
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	l := New(19000)
	for _, a := range []float64{1000, 2500, 300} {
		if _, err := l.Commit(scenario.Evaluate(event("E"), a, l.Remaining()), a); err != nil {
			t.Fatal(err)
		}
	}
	exported := l.ExportAll()

	other := New(19000)
	report := other.ImportAll(exported)
	if !report.Empty() {
		t.Errorf("unexpected findings: %v", report.Messages())
	}
	if other.Remaining() != l.Remaining() {
		t.Errorf("remaining = %v, want %v", other.Remaining(), l.Remaining())
	}
	if !reflect.DeepEqual(other.Events(), exported) {
		t.Error("imported events differ from export")
	}
}

func TestImportRecomputesSnapshots(t *testing.T) {
	l := New(10000)
	records := []CommittedEvent{
		{Name: "A", SponsorshipAllocated: 1000, BudgetAfterCommit: 1},
		{Name: "B", SponsorshipAllocated: math.NaN()},
		{Name: "C", SponsorshipAllocated: -5},
		{Name: "D", SponsorshipAllocated: 500},
	}
	report := l.ImportAll(records)
	if len(report.Warnings) != 2 {
		t.Errorf("warnings = %d, want 2: %v", len(report.Warnings), report.Messages())
	}
	events := l.Events()
	want := []float64{9000, 9000, 9000, 8500}
	for i, ev := range events {
		if ev.BudgetAfterCommit != want[i] {
			t.Errorf("%s snapshot = %v, want %v", ev.Name, ev.BudgetAfterCommit, want[i])
		}
	}
	if l.Remaining() != 8500 {
		t.Errorf("remaining = %v, want 8500", l.Remaining())
	}
	if records[0].BudgetAfterCommit != 1 {
		t.Error("import mutated its input")
	}
}

func TestImportOverdrawnWarns(t *testing.T) {
	l := New(1000)
	report := l.ImportAll([]CommittedEvent{{Name: "A", SponsorshipAllocated: 1500}})
	if len(report.Warnings) != 1 {
		t.Errorf("warnings = %v", report.Messages())
	}
	if l.Remaining() != -500 {
		t.Errorf("remaining = %v, want -500", l.Remaining())
	}
}

func TestReinitialize(t *testing.T) {
	l := New(1000)
	if _, err := l.Commit(scenario.Evaluate(event("A"), 100, 1000), 100); err != nil {
		t.Fatal(err)
	}
	l.Reinitialize(5000)
	if l.Total() != 5000 || l.Remaining() != 5000 || len(l.Events()) != 0 {
		t.Errorf("after reinitialize: total=%v remaining=%v events=%d", l.Total(), l.Remaining(), len(l.Events()))
	}
}
