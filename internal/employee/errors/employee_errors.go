package employeeerrors

import (
	"net/http"

	"go-hris-leave/internal/shared/apperror"
)

var (
	ErrEmployeeNotFound = apperror.New(
		apperror.CodeNotFound,
		"Employee not found",
		http.StatusNotFound,
	)
	ErrInvalidEmployeeID = apperror.New(
		apperror.CodeInvalidInput,
		"Invalid employee ID",
		http.StatusBadRequest,
	)
	ErrInvalidCompanyID = apperror.New(
		apperror.CodeInvalidInput,
		"Invalid company ID",
		http.StatusBadRequest,
	)

	// ErrDirectoryUnavailable wraps connection failures of the directory
	// store. Callers retry; it never means the employee is absent.
	ErrDirectoryUnavailable = apperror.New(
		apperror.CodeServiceUnavailable,
		"Employee directory is unavailable",
		http.StatusServiceUnavailable,
	)
)
