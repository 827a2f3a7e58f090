package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// FISCAL PERIOD - Leaderboards are kept per fiscal year
// =============================================================================

// FiscalYearStartMonth is the first month of the fiscal year. FY25 runs
// from 1 October 2024 to 30 September 2025.
const FiscalYearStartMonth = time.October

// FiscalPeriod is one fiscal year.
type FiscalPeriod struct {
	Year  int // calendar year the fiscal year ends in
	Start time.Time
	End   time.Time // exclusive
}

// FiscalPeriodOf returns the fiscal year containing t.
func FiscalPeriodOf(t time.Time) FiscalPeriod {
	year := t.Year()
	if t.Month() >= FiscalYearStartMonth {
		year++
	}
	start := time.Date(year-1, FiscalYearStartMonth, 1, 0, 0, 0, 0, time.UTC)
	return FiscalPeriod{Year: year, Start: start, End: start.AddDate(1, 0, 0)}
}

// Contains reports whether t falls in [Start, End).
func (p FiscalPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Label is the short fiscal year name, e.g. "FY25".
func (p FiscalPeriod) Label() string {
	return fmt.Sprintf("FY%02d", p.Year%100)
}

// Quarter returns 1..4; October to December is Q1.
func (p FiscalPeriod) Quarter(t time.Time) int {
	months := (int(t.Month()) - int(FiscalYearStartMonth) + 12) % 12
	return months/3 + 1
}

// FiscalYearLabel is shorthand for FiscalPeriodOf(t).Label().
func FiscalYearLabel(t time.Time) string {
	return FiscalPeriodOf(t).Label()
}

// SeasonLabel names the fiscal quarter of t, e.g. "FY25 Q1".
func SeasonLabel(t time.Time) string {
	p := FiscalPeriodOf(t)
	return fmt.Sprintf("%s Q%d", p.Label(), p.Quarter(t))
}

// LeaderboardAlias builds the display handle of the seq-th leaderboard
// record of a fiscal year, e.g. "FY25-0001".
func LeaderboardAlias(fiscalYear string, seq int) string {
	return fmt.Sprintf("%s-%04d", fiscalYear, seq)
}
