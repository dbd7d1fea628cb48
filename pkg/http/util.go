package http

import (
	"time"

	xutil "RegimeLab/pkg/util"
)

// ResolveRange resolves optional from/to query values against a default span
// of years ending now.
func ResolveRange(from, to string, years int, now time.Time) (time.Time, time.Time, bool) {
	return xutil.ResolveRange(from, to, years, now)
}
