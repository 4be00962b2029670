package market_hours

import "time"

// nyseHolidays calculates all NYSE full-day closures for a year.
func nyseHolidays(year int, loc *time.Location) []Holiday {
	date := func(m time.Month, d int) time.Time {
		return time.Date(year, m, d, 0, 0, 0, 0, loc)
	}

	holidays := []Holiday{
		{nthWeekday(year, time.January, time.Monday, 3, loc), "Martin Luther King Jr. Day"},
		{nthWeekday(year, time.February, time.Monday, 3, loc), "Washington's Birthday"},
		{CalculateEaster(year, loc).AddDate(0, 0, -2), "Good Friday"},
		{lastWeekday(year, time.May, time.Monday, loc), "Memorial Day"},
		{observed(date(time.June, 19)), "Juneteenth"},
		{observed(date(time.July, 4)), "Independence Day"},
		{nthWeekday(year, time.September, time.Monday, 1, loc), "Labor Day"},
		{nthWeekday(year, time.November, time.Thursday, 4, loc), "Thanksgiving Day"},
		{observed(date(time.December, 25)), "Christmas Day"},
	}

	// A Saturday New Year is not observed on the preceding Friday.
	if newYear := date(time.January, 1); newYear.Weekday() != time.Saturday {
		holidays = append(holidays, Holiday{observed(newYear), "New Year's Day"})
	}

	return holidays
}

// observed moves Saturday holidays to Friday and Sunday holidays to Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

// nthWeekday returns the nth occurrence (1-based) of weekday in month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last occurrence of weekday in month.
func lastWeekday(year int, month time.Month, weekday time.Weekday, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// CalculateEaster calculates Gregorian Easter Sunday using the computus method.
func CalculateEaster(year int, loc *time.Location) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}
