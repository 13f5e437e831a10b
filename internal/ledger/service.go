package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studentdesk/internal/queue"
)

const dateLayout = "2006-01-02"

// Status of one attendance day. Unmarked never hits storage; it only
// exists in derived reads.
type Status string

const (
	StatusPresent  Status = "present"
	StatusAbsent   Status = "absent"
	StatusUnmarked Status = "unmarked"
)

// Entry is one recorded attendance day.
type Entry struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Date     string    `json:"date"`
	Status   Status    `json:"status"`
	MarkedAt time.Time `json:"marked_at"`
}

// Summary aggregates a student's full history.
type Summary struct {
	Total             int     `json:"total"`
	Present           int     `json:"present_count"`
	Absent            int     `json:"absent_count"`
	PresentPercentage float64 `json:"present_percentage"`
}

// ErrValidation marks input rejected before any store access.
var ErrValidation = errors.New("validation failed")

// Store is the persistence surface the service needs.
type Store interface {
	Upsert(ctx context.Context, username, date string, status Status) error
	StatusOn(ctx context.Context, username, date string) (Status, bool, error)
	History(ctx context.Context, username string) ([]Entry, error)
	Between(ctx context.Context, username, from, to string) ([]Entry, error)
	Counts(ctx context.Context, username string) (total, present int, err error)
}

// Service coordinates attendance marking and the derived reads. The redis
// client and queue are optional; without them summaries are always computed
// from the store.
type Service struct {
	store Store
	cache *redis.Client
	queue queue.Queue
}

// NewService creates a service backed by a store.
func NewService(store Store, cache *redis.Client, q queue.Queue) *Service {
	return &Service{store: store, cache: cache, queue: q}
}

func summaryKey(username string) string { return "attendance:summary:" + username }

// Mark records or replaces the status for (username, date). Marking an
// already-marked day replaces the prior status and refreshes marked_at;
// there is never a second row for the same day.
func (s *Service) Mark(ctx context.Context, username, date string, status Status) error {
	if username == "" {
		return fmt.Errorf("%w: username required", ErrValidation)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	if status != StatusPresent && status != StatusAbsent {
		return fmt.Errorf("%w: status must be present or absent", ErrValidation)
	}
	if err := s.store.Upsert(ctx, username, date, status); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Del(ctx, summaryKey(username))
	}
	if s.queue != nil {
		// Best effort: a lost message only means a cold cache.
		_ = s.queue.Publish(ctx, queue.Message{Type: queue.TypeSummaryRefresh, Body: []byte(username)})
	}
	return nil
}

// StatusOn returns the status for one day; ok is false when unmarked.
// Callers use this to disable re-marking of an already-marked day.
func (s *Service) StatusOn(ctx context.Context, username, date string) (Status, bool, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", false, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
	}
	return s.store.StatusOn(ctx, username, date)
}

// History returns all entries for a student, newest date first.
func (s *Service) History(ctx context.Context, username string) ([]Entry, error) {
	return s.store.History(ctx, username)
}

// MonthView returns the calendar grid for one month: Monday-first weeks
// where every in-month day carries present, absent or unmarked.
func (s *Service) MonthView(ctx context.Context, username string, year, month int) (MonthView, error) {
	if month < 1 || month > 12 {
		return MonthView{}, fmt.Errorf("%w: month must be 1..12", ErrValidation)
	}
	if year < 1 {
		return MonthView{}, fmt.Errorf("%w: year must be positive", ErrValidation)
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)
	entries, err := s.store.Between(ctx, username, first.Format(dateLayout), next.Format(dateLayout))
	if err != nil {
		return MonthView{}, err
	}
	marked := make(map[int]Status, len(entries))
	for _, e := range entries {
		if d, err := time.Parse(dateLayout, e.Date); err == nil {
			marked[d.Day()] = e.Status
		}
	}
	return buildMonth(year, month, marked), nil
}

// Summary aggregates the full history. Reads through the redis cache when
// one is configured; percentage is 0 for an empty history.
func (s *Service) Summary(ctx context.Context, username string) (Summary, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, summaryKey(username)).Bytes(); err == nil {
			var cached Summary
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}
	sum, err := s.computeSummary(ctx, username)
	if err != nil {
		return Summary{}, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(sum); err == nil {
			s.cache.Set(ctx, summaryKey(username), raw, time.Hour)
		}
	}
	return sum, nil
}

// RefreshSummary recomputes and caches the summary, bypassing the cached
// value. The worker calls this on summary-refresh messages.
func (s *Service) RefreshSummary(ctx context.Context, username string) (Summary, error) {
	sum, err := s.computeSummary(ctx, username)
	if err != nil {
		return Summary{}, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(sum); err == nil {
			s.cache.Set(ctx, summaryKey(username), raw, time.Hour)
		}
	}
	return sum, nil
}

func (s *Service) computeSummary(ctx context.Context, username string) (Summary, error) {
	total, present, err := s.store.Counts(ctx, username)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Total: total, Present: present, Absent: total - present}
	if total > 0 {
		sum.PresentPercentage = float64(present) / float64(total) * 100
	}
	return sum, nil
}
