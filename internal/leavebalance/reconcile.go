package leavebalance

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type CompanyLister interface {
	ListCompanyIDs(ctx context.Context) ([]string, error)
}

// ReconcileResult totals one pass over every company.
type ReconcileResult struct {
	Companies  int
	Employees  int
	Recomputed int
	Failed     int
}

// ReconcileAll re-derives every stored balance from approved history. A
// failing company is logged and skipped; the joined error lists them all.
func ReconcileAll(ctx context.Context, ledger Service, companies CompanyLister, logger *zap.Logger) (ReconcileResult, error) {
	if logger == nil {
		logger = zap.L()
	}
	log := logger.Named("leavebalance.reconciler")

	var result ReconcileResult
	ids, err := companies.ListCompanyIDs(ctx)
	if err != nil {
		return result, err
	}

	var errs []error
	for _, companyID := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		summary, err := ledger.RecomputeAll(ctx, companyID)
		result.Companies++
		result.Employees += summary.Employees
		result.Recomputed += summary.Recomputed
		result.Failed += len(summary.Failures)
		if err != nil {
			log.Warn("reconcile company failed",
				zap.String("company_id", companyID),
				zap.Int("failed", len(summary.Failures)),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// RunReconciler calls ReconcileAll every interval until ctx is done.
func RunReconciler(ctx context.Context, ledger Service, companies CompanyLister, logger *zap.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.L()
	}
	log := logger.Named("leavebalance.reconciler")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("reconciler started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			log.Info("reconciler stopped")
			return
		case <-ticker.C:
			result, err := ReconcileAll(ctx, ledger, companies, logger)
			if err != nil && ctx.Err() != nil {
				continue
			}
			log.Info("reconcile pass finished",
				zap.Int("companies", result.Companies),
				zap.Int("employees", result.Employees),
				zap.Int("recomputed", result.Recomputed),
				zap.Int("failed", result.Failed),
			)
		}
	}
}
