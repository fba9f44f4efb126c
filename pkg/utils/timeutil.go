package utils

import (
	"sync"
	"time"

	"github.com/scmhub/calendar"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST *time.Location

func init() {
	var err error
	IST, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		IST = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// NowIST returns the current time in IST.
func NowIST() time.Time {
	return time.Now().In(IST)
}

// FormatDateIST formats a time.Time to "2006-01-02" in IST.
func FormatDateIST(t time.Time) string {
	return t.In(IST).Format("2006-01-02")
}

// FormatDateTimeIST formats a time.Time to "2006-01-02 15:04 IST".
func FormatDateTimeIST(t time.Time) string {
	return t.In(IST).Format("2006-01-02 15:04 IST")
}

// ParseDateIST parses a date string in "2006-01-02" format and returns it in IST.
func ParseDateIST(dateStr string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", dateStr, IST)
}

// ── Trading calendar ──

// nseMIC is the ISO 10383 code for the National Stock Exchange of India.
const nseMIC = "xnse"

var (
	nseCalOnce sync.Once
	nseCal     *calendar.Calendar
)

// nseCalendar returns the exchange calendar, or nil when the calendar
// package has no entry for NSE. Callers fall back to the static table.
func nseCalendar() *calendar.Calendar {
	nseCalOnce.Do(func() {
		nseCal = calendar.GetCalendar(nseMIC)
	})
	return nseCal
}

// IsTradingDay checks if the given date is an NSE trading day.
func IsTradingDay(t time.Time) bool {
	t = t.In(IST)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	if cal := nseCalendar(); cal != nil {
		return cal.IsBusinessDay(t)
	}
	return !IsTradingHoliday(t)
}

// IsTradingHoliday checks the static NSE holiday table.
// This list should be updated annually.
func IsTradingHoliday(t time.Time) bool {
	_, ok := nseHolidays2026[t.In(IST).Format("2006-01-02")]
	return ok
}

// PrevTradingDay returns the trading day strictly before from.
func PrevTradingDay(from time.Time) time.Time {
	prev := from.In(IST).AddDate(0, 0, -1)
	for !IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// NSE Trading Holidays for 2026 (update annually).
// Source: NSE India circular.
var nseHolidays2026 = map[string]string{
	"2026-01-26": "Republic Day",
	"2026-02-17": "Mahashivratri",
	"2026-03-10": "Holi",
	"2026-03-30": "Id-ul-Fitr (Ramadan)",
	"2026-04-02": "Ram Navami",
	"2026-04-03": "Good Friday",
	"2026-04-14": "Dr. Ambedkar Jayanti",
	"2026-05-01": "Maharashtra Day",
	"2026-05-25": "Buddha Purnima",
	"2026-06-05": "Id-ul-Zuha (Bakri Id)",
	"2026-07-06": "Muharram",
	"2026-08-15": "Independence Day",
	"2026-08-18": "Parsi New Year",
	"2026-09-04": "Milad-un-Nabi",
	"2026-10-02": "Mahatma Gandhi Jayanti",
	"2026-10-20": "Dussehra",
	"2026-11-09": "Diwali (Laxmi Pujan)",
	"2026-11-10": "Diwali (Balipratipada)",
	"2026-11-30": "Guru Nanak Jayanti",
	"2026-12-25": "Christmas",
}

// MarketStatus describes whether NSE trades on the given day.
func MarketStatus(t time.Time) string {
	t = t.In(IST)
	switch {
	case t.Weekday() == time.Saturday || t.Weekday() == time.Sunday:
		return "CLOSED (Weekend)"
	case !IsTradingDay(t):
		if name, ok := nseHolidays2026[t.Format("2006-01-02")]; ok {
			return "CLOSED (" + name + ")"
		}
		return "CLOSED (Holiday)"
	default:
		return "TRADING DAY"
	}
}
