// Package leavetype holds the closed set of leave categories.
package leavetype

import "strings"

type LeaveType string

const (
	Annual   LeaveType = "ANNUAL"
	Sick     LeaveType = "SICK"
	Personal LeaveType = "PERSONAL"
)

var all = []LeaveType{Annual, Sick, Personal}

// All returns every leave type in a fixed order. Code that locks one key per
// type iterates in this order.
func All() []LeaveType {
	out := make([]LeaveType, len(all))
	copy(out, all)
	return out
}

func (t LeaveType) String() string {
	return string(t)
}

func (t LeaveType) Valid() bool {
	for _, v := range all {
		if v == t {
			return true
		}
	}
	return false
}

// Parse accepts any casing and surrounding spaces.
func Parse(v string) (LeaveType, bool) {
	t := LeaveType(strings.ToUpper(strings.TrimSpace(v)))
	if !t.Valid() {
		return "", false
	}
	return t, true
}
