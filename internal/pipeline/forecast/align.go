package forecast

import "time"

// alignToYear shifts an instant's calendar alignment (month/day/hour) onto
// the target year, used when a proxy year's weather stands in for the target.
// Feb-29 maps to Feb-28 when the target year is not a leap year.
func alignToYear(t time.Time, year int) time.Time {
	day := t.Day()
	if t.Month() == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, t.Month(), day, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// HoursInYear returns 8760, or 8784 for leap years.
func HoursInYear(year int) int {
	if isLeapYear(year) {
		return 8784
	}
	return 8760
}
