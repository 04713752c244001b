package app

import "time"

// currentHour rounds up in the last minute so a cron run at 23:59 plans hour
// 24, which shifts the price window to tomorrow.
func currentHour(t time.Time) int {
	h := t.Hour()
	if t.Minute() > 58 {
		h++
	}
	return h
}
