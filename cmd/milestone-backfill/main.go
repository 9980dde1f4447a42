// milestone-backfill re-evaluates open milestones against approved income, for example
// after transactions were approved while milestone evaluation was failing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/partner_ledger/config"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/mmdatafocus/partner_ledger/metrics"
	"github.com/mmdatafocus/partner_ledger/models"
	"github.com/mmdatafocus/partner_ledger/utils"
	"github.com/mmdatafocus/partner_ledger/workflow"
)

// singleCompany narrows the backfill to one company.
type singleCompany struct {
	store *models.GormStore
	id    int
}

func (s singleCompany) ListCompanies(ctx context.Context, _ ledger.CompanyFilter) ([]ledger.Company, error) {
	c, err := s.store.GetCompany(ctx, s.id)
	if err != nil {
		return nil, err
	}
	return []ledger.Company{*c}, nil
}

func main() {
	companyID := flag.Int("company", 0, "Optional: backfill only this company id. If zero, backfills every company.")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	// batch job: no tenant scope
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	ctx = utils.SetUsernameInContext(ctx, "MilestoneBackfill")

	logger := config.GetLogger()
	store := models.NewGormStore(db)
	svc := ledger.NewService(store,
		ledger.WithLogger(logger),
		ledger.WithObserver(metrics.LedgerObserver{}),
		ledger.WithEvents(config.LedgerEventsEnabled()),
	)

	var companies workflow.CompanyLister = store
	if *companyID > 0 {
		companies = singleCompany{store: store, id: *companyID}
	}

	result, err := workflow.BackfillMilestones(ctx, companies, svc, logger)
	fmt.Printf("companies=%d achieved=%d failed=%d\n", result.Companies, result.Achieved, result.Failed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backfill stopped: %v\n", err)
		os.Exit(1)
	}
	if result.Failed > 0 {
		os.Exit(3)
	}
}
