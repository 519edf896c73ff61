package model

import (
	"fmt"
	"time"
)

// MissingOrder decides where absent dates sort relative to present ones
type MissingOrder int

const (
	MissingFirst MissingOrder = iota
	MissingLast
)

// ISODate normalizes a date-ish value to YYYY-MM-DD, or "" when absent.
// Strings are truncated to their first ten characters, as stored rows may
// carry full timestamps.
func ISODate(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case string:
		if len(d) > 10 {
			return d[:10]
		}
		return d
	case *string:
		if d == nil {
			return ""
		}
		return ISODate(*d)
	case time.Time:
		if d.IsZero() {
			return ""
		}
		return d.Format(time.DateOnly)
	case *time.Time:
		if d == nil {
			return ""
		}
		return ISODate(*d)
	case fmt.Stringer:
		return ISODate(d.String())
	default:
		return ISODate(fmt.Sprint(d))
	}
}

// CompareDates compares two ISO dates, placing absent ones per order
func CompareDates(a, b string, order MissingOrder) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		if order == MissingFirst {
			return -1
		}
		return 1
	case b == "":
		if order == MissingFirst {
			return 1
		}
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
