package dataset

import (
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestGroupBy(t *testing.T) {
	ds := domain.Dataset{
		{"Code": "A", "Amount": 10.0},
		{"Code": "B", "Amount": 20.0},
		{"Code": "A", "Amount": 30.0},
		{"Code": "", "Amount": 40.0},
	}

	key := func(row domain.Record) (string, bool) {
		code := String(row, "Code")
		return code, code != ""
	}

	groups := GroupBy(ds, key)

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups["A"].Count != 2 {
		t.Errorf("expected group A count 2, got %d", groups["A"].Count)
	}
	if groups["B"].Count != 1 {
		t.Errorf("expected group B count 1, got %d", groups["B"].Count)
	}
	if len(groups["A"].Entries) != 2 {
		t.Errorf("expected 2 entries in group A, got %d", len(groups["A"].Entries))
	}
}

func TestGroupSum(t *testing.T) {
	ds := domain.Dataset{
		{"Code": "A", "Amount": 10.0},
		{"Code": "A", "Amount": 30.0},
		{"Code": "A", "Amount": "bad"},
	}

	key := func(row domain.Record) (string, bool) {
		return String(row, "Code"), true
	}
	amount := func(row domain.Record) (float64, bool) {
		return Number(row, "Amount")
	}

	groups := GroupSum(ds, key, amount)

	g := groups["A"]
	if g == nil {
		t.Fatal("expected group A")
	}
	// The unparsable row stays in the group but not in the aggregates
	if g.Count != 3 {
		t.Errorf("expected count 3, got %d", g.Count)
	}
	if g.Sum != 40.0 {
		t.Errorf("expected sum 40, got %v", g.Sum)
	}
	if g.Min != 10.0 {
		t.Errorf("expected min 10, got %v", g.Min)
	}
	if g.Max != 30.0 {
		t.Errorf("expected max 30, got %v", g.Max)
	}
}

func TestGroupBy2(t *testing.T) {
	ds := domain.Dataset{
		{"PAN": "P1", "Emp": "E1"},
		{"PAN": "P1", "Emp": "E2"},
		{"PAN": "P1", "Emp": "E2"},
		{"PAN": "P2", "Emp": "E3"},
		{"PAN": "", "Emp": "E4"},
	}

	outer := func(row domain.Record) (string, bool) {
		pan := String(row, "PAN")
		return pan, pan != ""
	}
	inner := func(row domain.Record) (string, bool) {
		return String(row, "Emp"), true
	}

	groups := GroupBy2(ds, outer, inner)

	if len(groups) != 2 {
		t.Fatalf("expected 2 outer groups, got %d", len(groups))
	}
	if len(groups["P1"]) != 2 {
		t.Errorf("expected 2 inner groups under P1, got %d", len(groups["P1"]))
	}
	if groups["P1"]["E2"].Count != 2 {
		t.Errorf("expected E2 count 2, got %d", groups["P1"]["E2"].Count)
	}
	if len(groups["P2"]) != 1 {
		t.Errorf("expected 1 inner group under P2, got %d", len(groups["P2"]))
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"2024-03": 1, "2024-01": 2, "2024-02": 3}

	keys := SortedKeys(m)

	want := []string{"2024-01", "2024-02", "2024-03"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("expected keys[%d] = %s, got %s", i, k, keys[i])
		}
	}
}

func TestPeriodKeys(t *testing.T) {
	t.Run("MonthKey", func(t *testing.T) {
		d := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
		if got := MonthKey(d); got != "2024-03" {
			t.Errorf("expected '2024-03', got %q", got)
		}
	})

	t.Run("WeekKey", func(t *testing.T) {
		d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		if got := WeekKey(d); got != "2024-W01" {
			t.Errorf("expected '2024-W01', got %q", got)
		}

		// ISO week years cross calendar years
		d = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		if got := WeekKey(d); got != "2022-W52" {
			t.Errorf("expected '2022-W52', got %q", got)
		}
	})
}

func TestCompositeKey(t *testing.T) {
	if got := CompositeKey("A", "2024-01"); got != "A|2024-01" {
		t.Errorf("expected 'A|2024-01', got %q", got)
	}
	if got := CompositeKey("single"); got != "single" {
		t.Errorf("expected 'single', got %q", got)
	}
}

func TestSortByDate(t *testing.T) {
	ds := []domain.Record{
		{"ID": "c", "Date": "2024-03-01"},
		{"ID": "a", "Date": "2024-01-01"},
		{"ID": "x", "Date": "garbage"},
		{"ID": "b", "Date": "2024-02-01"},
	}

	sorted := SortByDate(ds, "Date")

	// Unparsable dates sort to the front, the rest ascending
	wantOrder := []string{"x", "a", "b", "c"}
	for i, want := range wantOrder {
		if sorted[i]["ID"] != want {
			t.Errorf("expected position %d to be %s, got %v", i, want, sorted[i]["ID"])
		}
	}

	// Input slice untouched
	if ds[0]["ID"] != "c" {
		t.Errorf("expected input order preserved, got %v first", ds[0]["ID"])
	}
}
