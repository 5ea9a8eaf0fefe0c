package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultExcludedDescriptions lists descriptions that are never spending.
var DefaultExcludedDescriptions = []string{"GLOBAL MONEY"}

const (
	ViewLoading ViewState = "loading"
	ViewEmpty   ViewState = "empty"
	ViewError   ViewState = "error"
	ViewReady   ViewState = "ready"
)

type (
	// Window is an inclusive time range.
	Window struct {
		Start time.Time
		End   time.Time
	}

	// Windows are the calendar periods summarised for display.
	Windows struct {
		Day   Window
		Week  Window
		Month Window
	}

	// SpendRule selects which transactions count as spending.
	SpendRule struct {
		Convention SignConvention
		Excluded   []string
	}

	// Summary holds absolute spending per window.
	Summary struct {
		Daily   decimal.Decimal
		Weekly  decimal.Decimal
		Monthly decimal.Decimal
		Count   int
		Windows Windows
	}

	ViewState string

	// SpendingView is what the dashboard renders. Loading, empty and error
	// never carry figures.
	SpendingView struct {
		State    ViewState
		Summary  Summary
		Currency string
		Message  string
	}
)

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// CalendarWindows computes today, this week (Monday start) and this month in
// now's location. All windows end at the last instant of the month.
func CalendarWindows(now time.Time) Windows {
	loc := now.Location()
	year, month, day := now.Date()

	dayStart := time.Date(year, month, day, 0, 0, 0, 0, loc)
	sinceMonday := (int(now.Weekday()) + 6) % 7
	weekStart := dayStart.AddDate(0, 0, -sinceMonday)
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)

	return Windows{
		Day:   Window{Start: dayStart, End: monthEnd},
		Week:  Window{Start: weekStart, End: monthEnd},
		Month: Window{Start: monthStart, End: monthEnd},
	}
}

// Excludes reports whether a description matches an exclusion phrase.
func (r SpendRule) Excludes(description string) bool {
	upper := strings.ToUpper(description)
	for _, phrase := range r.Excluded {
		phrase = strings.ToUpper(strings.TrimSpace(phrase))
		if phrase != "" && strings.Contains(upper, phrase) {
			return true
		}
	}
	return false
}

// Summarize sums spending over the calendar windows around now.
func Summarize(txs []Transaction, now time.Time, rule SpendRule) Summary {
	windows := CalendarWindows(now)
	summary := Summary{
		Daily:   decimal.Zero,
		Weekly:  decimal.Zero,
		Monthly: decimal.Zero,
		Windows: windows,
	}

	for _, t := range txs {
		if rule.Excludes(t.Description) || !t.IsSpend(rule.Convention) {
			continue
		}
		ts := t.Timestamp.In(now.Location())
		amount := t.Amount.Abs()
		if windows.Day.Contains(ts) {
			summary.Daily = summary.Daily.Add(amount)
		}
		if windows.Week.Contains(ts) {
			summary.Weekly = summary.Weekly.Add(amount)
		}
		if windows.Month.Contains(ts) {
			summary.Monthly = summary.Monthly.Add(amount)
			summary.Count++
		}
	}
	return summary
}

// NewSpendingView builds the ready or empty view for a fetched list.
func NewSpendingView(txs []Transaction, now time.Time, rule SpendRule, currency string) SpendingView {
	if len(txs) == 0 {
		return SpendingView{State: ViewEmpty, Currency: currency, Message: "No transactions found"}
	}
	return SpendingView{
		State:    ViewReady,
		Summary:  Summarize(txs, now, rule),
		Currency: currency,
	}
}

// Figures returns the formatted daily, weekly and monthly amounts. It returns
// nil unless the view is ready.
func (v SpendingView) Figures() []string {
	if v.State != ViewReady {
		return nil
	}
	return []string{
		FormatCurrency(v.Currency, v.Summary.Daily),
		FormatCurrency(v.Currency, v.Summary.Weekly),
		FormatCurrency(v.Currency, v.Summary.Monthly),
	}
}
