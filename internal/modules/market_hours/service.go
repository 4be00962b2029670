// Package market_hours provides the NYSE trading calendar used when no broker clock is available.
package market_hours

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/tradingdesk/internal/domain"
)

// Regular session, exchange local time.
const (
	openHour         = 9
	openMinute       = 30
	closeHour        = 16
	earlyCloseHour   = 13
	exchangeTimezone = "America/New_York"
)

// Holiday is a full-day market closure
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

// MarketHoursService provides market hours checking functionality for NYSE
type MarketHoursService struct {
	loc *time.Location
	now func() time.Time

	mu           sync.Mutex
	holidayCache map[int][]Holiday // Cache holidays by year
}

// NewMarketHoursService creates a new market hours service
func NewMarketHoursService() (*MarketHoursService, error) {
	loc, err := time.LoadLocation(exchangeTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s timezone: %w", exchangeTimezone, err)
	}
	return &MarketHoursService{
		loc:          loc,
		now:          time.Now,
		holidayCache: make(map[int][]Holiday),
	}, nil
}

// SetClock overrides the time source. Intended for tests.
func (s *MarketHoursService) SetClock(now func() time.Time) {
	s.now = now
}

// Location returns the exchange timezone
func (s *MarketHoursService) Location() *time.Location {
	return s.loc
}

// IsMarketOpen reports whether the market is open now.
func (s *MarketHoursService) IsMarketOpen(_ context.Context) (bool, error) {
	return s.IsOpenAt(s.now()), nil
}

// MarketStatus returns the current status with the next transitions.
func (s *MarketHoursService) MarketStatus(_ context.Context) (*domain.MarketStatus, error) {
	st := s.StatusAt(s.now())
	return &st, nil
}

// IsOpenAt checks if the market is open for trading at t.
// The session is [open, close): the closing minute itself is closed.
func (s *MarketHoursService) IsOpenAt(t time.Time) bool {
	local := t.In(s.loc)
	if !s.IsTradingDay(local) {
		return false
	}
	openAt, closeAt := s.session(local)
	return !local.Before(openAt) && local.Before(closeAt)
}

// IsTradingDay reports whether the exchange trades on t's calendar date.
func (s *MarketHoursService) IsTradingDay(t time.Time) bool {
	local := t.In(s.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	_, holiday := s.holidayName(local)
	return !holiday
}

// StatusAt returns the market status at t
func (s *MarketHoursService) StatusAt(t time.Time) domain.MarketStatus {
	local := t.In(s.loc)
	st := domain.MarketStatus{
		IsOpen:    s.IsOpenAt(local),
		Timestamp: t,
	}

	if st.IsOpen {
		_, st.NextClose = s.session(local)
		st.NextOpen = s.nextOpenAfter(st.NextClose)
		return st
	}

	st.NextOpen = s.nextOpenAfter(local)
	_, st.NextClose = s.session(st.NextOpen)
	return st
}

// TradingDayStart returns midnight of t's date in exchange time.
// Daily trade limits count from this instant.
func (s *MarketHoursService) TradingDayStart(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

// Holidays returns the full-day closures for a year, sorted by date
func (s *MarketHoursService) Holidays(year int) []Holiday {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.holidayCache[year]; ok {
		return cached
	}

	holidays := nyseHolidays(year, s.loc)
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Date.Before(holidays[j].Date) })
	s.holidayCache[year] = holidays
	return holidays
}

func (s *MarketHoursService) holidayName(local time.Time) (string, bool) {
	key := local.Format("2006-01-02")
	for _, h := range s.Holidays(local.Year()) {
		if h.Date.Format("2006-01-02") == key {
			return h.Name, true
		}
	}
	return "", false
}

// session returns the open and close instants of the session on local's date.
func (s *MarketHoursService) session(local time.Time) (time.Time, time.Time) {
	y, m, d := local.In(s.loc).Date()
	open := time.Date(y, m, d, openHour, openMinute, 0, 0, s.loc)
	ch := closeHour
	if s.isEarlyClose(local) {
		ch = earlyCloseHour
	}
	return open, time.Date(y, m, d, ch, 0, 0, 0, s.loc)
}

// nextOpenAfter finds the first session open strictly after t.
func (s *MarketHoursService) nextOpenAfter(t time.Time) time.Time {
	local := t.In(s.loc)
	for i := 0; i < 15; i++ {
		day := local.AddDate(0, 0, i)
		if !s.IsTradingDay(day) {
			continue
		}
		open, _ := s.session(day)
		if open.After(local) {
			return open
		}
	}
	return time.Time{}
}

// isEarlyClose covers the day after Thanksgiving, Christmas Eve and July 3rd
// when they fall on a trading day.
func (s *MarketHoursService) isEarlyClose(local time.Time) bool {
	y, m, d := local.Date()
	switch {
	case m == time.July && d == 3:
		return true
	case m == time.December && d == 24:
		return true
	case m == time.November:
		thanksgiving := nthWeekday(y, time.November, time.Thursday, 4, s.loc)
		return d == thanksgiving.Day()+1
	}
	return false
}
