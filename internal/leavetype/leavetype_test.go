package leavetype_test

import (
	"testing"

	"go-hris-leave/internal/leavetype"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want leavetype.LeaveType
		ok   bool
	}{
		{"ANNUAL", leavetype.Annual, true},
		{" sick ", leavetype.Sick, true},
		{"Personal", leavetype.Personal, true},
		{"UNPAID", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := leavetype.Parse(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestAll_FixedOrderAndCopy(t *testing.T) {
	got := leavetype.All()
	assert.Equal(t, []leavetype.LeaveType{leavetype.Annual, leavetype.Sick, leavetype.Personal}, got)

	got[0] = "X"
	assert.Equal(t, leavetype.Annual, leavetype.All()[0])
}
