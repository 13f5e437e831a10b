package ledger

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

// fakeStore keeps entries keyed by (username, date), mirroring the unique
// constraint the real schema enforces.
type fakeStore struct {
	entries map[string]Entry
	nextID  int64
	clock   time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries: make(map[string]Entry),
		clock:   time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func key(username, date string) string { return username + "|" + date }

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeStore) Upsert(_ context.Context, username, date string, status Status) error {
	k := key(username, date)
	e, ok := f.entries[k]
	if !ok {
		f.nextID++
		e = Entry{ID: f.nextID, Username: username, Date: date}
	}
	e.Status = status
	e.MarkedAt = f.tick()
	f.entries[k] = e
	return nil
}

func (f *fakeStore) StatusOn(_ context.Context, username, date string) (Status, bool, error) {
	e, ok := f.entries[key(username, date)]
	if !ok {
		return "", false, nil
	}
	return e.Status, true, nil
}

func (f *fakeStore) History(_ context.Context, username string) ([]Entry, error) {
	var out []Entry
	for _, e := range f.entries {
		if e.Username == username {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (f *fakeStore) Between(_ context.Context, username, from, to string) ([]Entry, error) {
	var out []Entry
	for _, e := range f.entries {
		if e.Username == username && e.Date >= from && e.Date < to {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (f *fakeStore) Counts(_ context.Context, username string) (int, int, error) {
	total, present := 0, 0
	for _, e := range f.entries {
		if e.Username != username {
			continue
		}
		total++
		if e.Status == StatusPresent {
			present++
		}
	}
	return total, present, nil
}

func TestMarkValidation(t *testing.T) {
	svc := NewService(newFakeStore(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		date     string
		status   Status
	}{
		{"empty username", "", "2025-01-10", StatusPresent},
		{"bad date", "sara", "10/01/2025", StatusPresent},
		{"empty date", "sara", "", StatusAbsent},
		{"bad status", "sara", "2025-01-10", Status("late")},
		{"unmarked not storable", "sara", "2025-01-10", StatusUnmarked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Mark(ctx, tt.username, tt.date, tt.status)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestMarkIdempotence(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)
	ctx := context.Background()

	if err := svc.Mark(ctx, "sara", "2025-01-10", StatusPresent); err != nil {
		t.Fatal(err)
	}
	firstMarked := fs.entries[key("sara", "2025-01-10")].MarkedAt

	if err := svc.Mark(ctx, "sara", "2025-01-10", StatusPresent); err != nil {
		t.Fatal(err)
	}

	if len(fs.entries) != 1 {
		t.Fatalf("marking twice produced %d entries, want 1", len(fs.entries))
	}
	e := fs.entries[key("sara", "2025-01-10")]
	if e.Status != StatusPresent {
		t.Errorf("status: got %q, want present", e.Status)
	}
	if !e.MarkedAt.After(firstMarked) {
		t.Error("marked_at should advance on re-mark")
	}
}

func TestMarkLastWriteWins(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)
	ctx := context.Background()

	if err := svc.Mark(ctx, "sara", "2025-01-10", StatusPresent); err != nil {
		t.Fatal(err)
	}
	if err := svc.Mark(ctx, "sara", "2025-01-10", StatusAbsent); err != nil {
		t.Fatal(err)
	}

	if len(fs.entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(fs.entries))
	}
	status, marked, err := svc.StatusOn(ctx, "sara", "2025-01-10")
	if err != nil {
		t.Fatal(err)
	}
	if !marked || status != StatusAbsent {
		t.Fatalf("got (%q, %v), want (absent, true)", status, marked)
	}
}

func TestStatusOnUnmarkedDay(t *testing.T) {
	svc := NewService(newFakeStore(), nil, nil)
	status, marked, err := svc.StatusOn(context.Background(), "sara", "2025-01-10")
	if err != nil {
		t.Fatal(err)
	}
	if marked || status != "" {
		t.Fatalf("got (%q, %v), want unmarked", status, marked)
	}
}

func TestSummary(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)
	ctx := context.Background()

	days := []struct {
		date   string
		status Status
	}{
		{"2025-01-06", StatusPresent},
		{"2025-01-07", StatusPresent},
		{"2025-01-08", StatusAbsent},
		{"2025-01-09", StatusPresent},
		{"2025-01-10", StatusAbsent},
	}
	for _, d := range days {
		if err := svc.Mark(ctx, "sara", d.date, d.status); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := svc.Summary(ctx, "sara")
	if err != nil {
		t.Fatal(err)
	}
	want := Summary{Total: 5, Present: 3, Absent: 2, PresentPercentage: 60.0}
	if sum != want {
		t.Fatalf("got %+v, want %+v", sum, want)
	}
}

func TestSummaryEmptyHistory(t *testing.T) {
	svc := NewService(newFakeStore(), nil, nil)
	sum, err := svc.Summary(context.Background(), "sara")
	if err != nil {
		t.Fatal(err)
	}
	if sum.Total != 0 || sum.PresentPercentage != 0 {
		t.Fatalf("empty history summary should be all zero, got %+v", sum)
	}
}

func TestMonthView(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)
	ctx := context.Background()

	if err := svc.Mark(ctx, "sara", "2025-02-14", StatusPresent); err != nil {
		t.Fatal(err)
	}
	// An entry in an adjacent month must not leak into the view.
	if err := svc.Mark(ctx, "sara", "2025-03-01", StatusAbsent); err != nil {
		t.Fatal(err)
	}

	view, err := svc.MonthView(ctx, "sara", 2025, 2)
	if err != nil {
		t.Fatal(err)
	}
	if view.Days[14] != StatusPresent {
		t.Errorf("day 14: got %q, want present", view.Days[14])
	}
	for d := 1; d <= 28; d++ {
		if d == 14 {
			continue
		}
		if view.Days[d] != StatusUnmarked {
			t.Errorf("day %d: got %q, want unmarked", d, view.Days[d])
		}
	}
	if _, ok := view.Days[30]; ok {
		t.Error("day 30 should not be represented in february")
	}
}

func TestMonthViewValidation(t *testing.T) {
	svc := NewService(newFakeStore(), nil, nil)
	for _, month := range []int{0, 13, -1} {
		if _, err := svc.MonthView(context.Background(), "sara", 2025, month); !errors.Is(err, ErrValidation) {
			t.Errorf("month %d: got %v, want ErrValidation", month, err)
		}
	}
}

func TestHistoryOrder(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, nil, nil)
	ctx := context.Background()

	for _, d := range []string{"2025-01-06", "2025-01-08", "2025-01-07"} {
		if err := svc.Mark(ctx, "sara", d, StatusPresent); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := svc.History(ctx, "sara")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Date < entries[i].Date {
			t.Fatalf("history not date-descending: %s before %s", entries[i-1].Date, entries[i].Date)
		}
	}
}
