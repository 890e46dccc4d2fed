package domain

import "time"

// DayStart is the unix-ms start of the calendar day containing ms in loc.
func DayStart(ms int64, loc *time.Location) int64 {
	t := time.UnixMilli(ms).In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc).UnixMilli()
}

// DayEnd is 23:59:59.999 of the calendar day containing ms in loc.
func DayEnd(ms int64, loc *time.Location) int64 {
	t := time.UnixMilli(ms).In(loc)
	next := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
	return next.UnixMilli() - 1
}

func SameDay(a, b int64, loc *time.Location) bool {
	return DayStart(a, loc) == DayStart(b, loc)
}
