package policy

import (
	"time"

	"github.com/clubware/ms-go-memberships/app/entity"
)

// AddDuration advances t by the template duration. Days and weeks are exact
// day counts; months and years follow time.Time.AddDate normalization, so
// Jan 31 plus one month lands on March 2 or 3 rather than the end of
// February. Every expiry comparison downstream depends on this function.
func AddDuration(t time.Time, unit entity.DurationUnit, value int32) time.Time {
	n := int(value)
	switch unit {
	case entity.DurationDays:
		return t.AddDate(0, 0, n)
	case entity.DurationWeeks:
		return t.AddDate(0, 0, 7*n)
	case entity.DurationMonths:
		return t.AddDate(0, n, 0)
	case entity.DurationYears:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}
