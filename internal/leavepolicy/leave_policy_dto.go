package leavepolicy

type UpdatePolicyRequest struct {
	Quotas map[string]int `json:"quotas" binding:"required"`
}

type PolicyResponse struct {
	CompanyID string         `json:"company_id"`
	Quotas    map[string]int `json:"quotas"`
	UpdatedAt *string        `json:"updated_at,omitempty"`
	UpdatedBy *string        `json:"updated_by,omitempty"`
}

type RecomputeReport struct {
	Employees int      `json:"employees"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

type PolicyUpdateResponse struct {
	Policy    PolicyResponse  `json:"policy"`
	Recompute RecomputeReport `json:"recompute"`
}
