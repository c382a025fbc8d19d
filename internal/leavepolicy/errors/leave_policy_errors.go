package leavepolicyerrors

import (
	"net/http"

	"go-hris-leave/internal/shared/apperror"
)

var (
	ErrInvalidCompanyID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid company id",
		http.StatusBadRequest,
	)
	ErrInvalidActorID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid actor id",
		http.StatusBadRequest,
	)
	ErrInvalidLeaveType = apperror.New(
		apperror.CodeInvalidInput,
		"leave type must be one of ANNUAL, SICK, PERSONAL",
		http.StatusBadRequest,
	)
	ErrNegativeQuota = apperror.New(
		apperror.CodeInvalidInput,
		"quota must be greater than or equal to 0",
		http.StatusBadRequest,
	)
	ErrEmptyQuotas = apperror.New(
		apperror.CodeInvalidInput,
		"at least one quota is required",
		http.StatusBadRequest,
	)
)
