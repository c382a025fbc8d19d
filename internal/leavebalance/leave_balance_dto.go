package leavebalance

type BalanceItem struct {
	Remaining int `json:"remaining"`
	Limit     int `json:"limit"`
}

type EmployeeBalanceResponse struct {
	EmployeeID string                 `json:"employee_id"`
	Balances   map[string]BalanceItem `json:"balances"`
}
