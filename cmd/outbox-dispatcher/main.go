// outbox-dispatcher publishes committed ledger events to Pub/Sub. Run it standalone
// when the API runs with LEDGER_EVENTS_ENABLED but should not dispatch itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmdatafocus/partner_ledger/config"
	"github.com/mmdatafocus/partner_ledger/utils"
	"github.com/mmdatafocus/partner_ledger/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	batch := flag.Int("batch", 50, "Events claimed per poll")
	poll := flag.Duration("poll", 500*time.Millisecond, "Delay between polls")
	once := flag.Bool("once", false, "Dispatch a single batch and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	defer config.ClosePubSub()

	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	logger := config.GetLogger()
	d := workflow.NewOutboxDispatcher(db, logger)
	d.BatchSize = *batch
	d.PollInterval = *poll

	if *once {
		sent := d.DispatchOnce(ctx)
		fmt.Printf("published=%d\n", sent)
		return
	}

	logger.WithFields(logrus.Fields{
		"field":         "outbox-dispatcher",
		"dispatcher_id": d.DispatcherID,
	}).Info("dispatching ledger events")
	d.Run(ctx)
}
