package workflow

import (
	"context"

	"github.com/mmdatafocus/partner_ledger/config"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/sirupsen/logrus"
)

type CompanyLister interface {
	ListCompanies(ctx context.Context, f ledger.CompanyFilter) ([]ledger.Company, error)
}

type MilestoneEvaluator interface {
	ReevaluateMilestones(ctx context.Context, companyId int) (int, error)
}

type BackfillResult struct {
	Companies int
	Achieved  int
	Failed    int
}

// BackfillMilestones re-evaluates every company's open milestones against approved income.
// A failing company is logged and skipped.
func BackfillMilestones(ctx context.Context, companies CompanyLister, svc MilestoneEvaluator, logger *logrus.Logger) (BackfillResult, error) {
	var result BackfillResult
	list, err := companies.ListCompanies(ctx, ledger.CompanyFilter{})
	if err != nil {
		return result, err
	}
	for _, c := range list {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Companies++
		n, err := svc.ReevaluateMilestones(ctx, c.ID)
		if err != nil {
			result.Failed++
			config.LogError(logger, "milestoneBackfill.go", "BackfillMilestones", "ReevaluateMilestones", c.ID, err)
			continue
		}
		result.Achieved += n
		if n > 0 && logger != nil {
			logger.WithFields(logrus.Fields{
				"field":      "BackfillMilestones",
				"company_id": c.ID,
				"achieved":   n,
			}).Info("milestones achieved by backfill")
		}
	}
	return result, nil
}
