package leavebalance

import (
	"context"
	"fmt"

	"go-hris-leave/internal/leavepolicy"

	"go.uber.org/zap"
)

// PolicyAdmin changes a company's quotas and then brings every stored
// balance of that company back in line with the new policy.
type PolicyAdmin struct {
	policies leavepolicy.Service
	ledger   Service
	logger   *zap.Logger
}

var _ leavepolicy.Updater = (*PolicyAdmin)(nil)

func NewPolicyAdmin(policies leavepolicy.Service, ledger Service, logger ...*zap.Logger) *PolicyAdmin {
	l := zap.L().Named("leavebalance.policy_admin")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("leavebalance.policy_admin")
	}
	return &PolicyAdmin{policies: policies, ledger: ledger, logger: l}
}

// UpdatePolicy commits the policy first. A recompute that only partly
// succeeds is reported in the response; the periodic reconcile finishes it.
func (a *PolicyAdmin) UpdatePolicy(ctx context.Context, companyID, actorID string, req leavepolicy.UpdatePolicyRequest) (leavepolicy.PolicyUpdateResponse, error) {
	policy, err := a.policies.Update(ctx, companyID, actorID, req.Quotas)
	if err != nil {
		return leavepolicy.PolicyUpdateResponse{}, err
	}

	summary, err := a.ledger.RecomputeAll(ctx, companyID)
	report := leavepolicy.RecomputeReport{
		Employees: summary.Employees,
		Failed:    len(summary.Failures),
	}
	for _, f := range summary.Failures {
		report.Errors = append(report.Errors, fmt.Sprintf("employee %s not recomputed", f.EmployeeID))
	}
	if err != nil {
		a.logger.Warn("recompute after policy update incomplete",
			zap.String("company_id", companyID),
			zap.Int("employees", summary.Employees),
			zap.Int("failed", len(summary.Failures)),
			zap.Error(err),
		)
		if len(summary.Failures) == 0 {
			report.Errors = append(report.Errors, "recompute interrupted; balances converge on the next reconcile")
		}
	}

	a.logger.Info("policy updated",
		zap.String("company_id", companyID),
		zap.String("actor_id", actorID),
		zap.Int("recomputed", summary.Recomputed),
	)
	return leavepolicy.PolicyUpdateResponse{
		Policy:    leavepolicy.MapToResponse(policy),
		Recompute: report,
	}, nil
}
