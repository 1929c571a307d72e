package model

import (
	"math"
	"time"
)

// DefaultLabel is stamped on rolls before any label message arrives.
const DefaultLabel = "None"

// RollState is the die state reported with each roll reading.
type RollState int

const (
	// RollSettling means the die is still moving and the value may change.
	RollSettling RollState = 0
	// RollSettled means the die came to rest and the value is final.
	RollSettled RollState = 1
)

// String returns a readable state name.
func (s RollState) String() string {
	switch s {
	case RollSettling:
		return "settling"
	case RollSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// RollPayload is the JSON body published on a roll topic.
// Pointer fields distinguish a missing field from a zero value.
type RollPayload struct {
	Time  *uint64 `json:"time"`
	Name  *string `json:"name"`
	State *int    `json:"state"`
	Val   *int64  `json:"val"`
}

// RollEvent represents a row in the rolls table.
type RollEvent struct {
	Timestamp float64   `json:"timestamp"` // absolute, seconds since Unix epoch
	Name      string    `json:"name"`
	State     RollState `json:"state"`
	Label     string    `json:"label"`
	Value     int64     `json:"value"`
}

// Time returns the event timestamp as a time.Time.
func (e RollEvent) Time() time.Time {
	return FromUnixSeconds(e.Timestamp)
}

// Settled reports whether the roll value is final.
func (e RollEvent) Settled() bool {
	return e.State == RollSettled
}

// RangeQuery selects rolls in the half-open window [Start, End).
type RangeQuery struct {
	Start       time.Time
	End         time.Time
	SettledOnly bool
}

// UnixSeconds converts t to fractional seconds since the Unix epoch.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnixSeconds converts fractional Unix seconds to a UTC time.
func FromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*float64(time.Second)))).UTC()
}
