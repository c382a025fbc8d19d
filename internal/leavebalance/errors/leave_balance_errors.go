package leavebalanceerrors

import (
	"fmt"
	"net/http"

	"go-hris-leave/internal/shared/apperror"
)

var (
	ErrInvalidCompanyID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid company id",
		http.StatusBadRequest,
	)
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid employee id",
		http.StatusBadRequest,
	)
	ErrInvalidLeaveType = apperror.New(
		apperror.CodeInvalidInput,
		"leave type must be one of ANNUAL, SICK, PERSONAL",
		http.StatusBadRequest,
	)
	ErrInvalidDays = apperror.New(
		apperror.CodeInvalidInput,
		"days must be greater than 0",
		http.StatusBadRequest,
	)
	ErrEmployeeNotFound = apperror.New(
		apperror.CodeNotFound,
		"employee not found",
		http.StatusNotFound,
	)
	ErrInsufficientBalance = apperror.New(
		apperror.CodeInsufficientBalance,
		"insufficient leave balance",
		http.StatusUnprocessableEntity,
	)
)

type InsufficientDetails struct {
	LeaveType string `json:"leave_type"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

// InsufficientBalance wraps ErrInsufficientBalance, so errors.Is matches it,
// and carries the amounts for the response body.
func InsufficientBalance(leaveType string, available, requested int) error {
	return apperror.Wrap(
		ErrInsufficientBalance,
		apperror.CodeInsufficientBalance,
		fmt.Sprintf("insufficient %s leave balance: %d day(s) available, %d requested", leaveType, available, requested),
		http.StatusUnprocessableEntity,
	).WithDetails(InsufficientDetails{
		LeaveType: leaveType,
		Available: available,
		Requested: requested,
	})
}
