package shared

import "time"

// PeriodKey returns the YYYYMM bucket a date falls into. Voucher number
// sequences are scoped per (outlet, type, period key).
func PeriodKey(date time.Time) string {
	return date.Format("200601")
}
