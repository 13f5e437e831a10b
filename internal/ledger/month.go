package ledger

import "time"

// MonthView is the calendar grid for one month. Days maps day-of-month to
// its status; Weeks lays the same days out in Monday-first rows with
// zero-day padding cells for slots outside the month.
type MonthView struct {
	Year  int            `json:"year"`
	Month int            `json:"month"`
	Days  map[int]Status `json:"days"`
	Weeks [][]DayCell    `json:"weeks"`
}

// DayCell is one slot in the grid. Day 0 means the slot falls outside the
// month and carries no status.
type DayCell struct {
	Day    int    `json:"day"`
	Status Status `json:"status,omitempty"`
}

// buildMonth derives the grid from the marked days. Every in-month day not
// present in marked is classified unmarked.
func buildMonth(year, month int, marked map[int]Status) MonthView {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	days := make(map[int]Status, daysInMonth)
	for d := 1; d <= daysInMonth; d++ {
		if st, ok := marked[d]; ok {
			days[d] = st
		} else {
			days[d] = StatusUnmarked
		}
	}

	// Monday-first offset of day 1 within its week.
	offset := (int(first.Weekday()) + 6) % 7

	var weeks [][]DayCell
	week := make([]DayCell, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, DayCell{})
	}
	for d := 1; d <= daysInMonth; d++ {
		week = append(week, DayCell{Day: d, Status: days[d]})
		if len(week) == 7 {
			weeks = append(weeks, week)
			week = make([]DayCell, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, DayCell{})
		}
		weeks = append(weeks, week)
	}

	return MonthView{Year: year, Month: month, Days: days, Weeks: weeks}
}
