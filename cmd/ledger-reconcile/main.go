package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/mmdatafocus/retail_backend/workflow"
)

func main() {
	itemID := flag.String("item-id", "", "Optional: replay a single inventory item and print the result")
	requeueDead := flag.Bool("requeue-dead", false, "Move DEAD ledger events back to PENDING before checking")
	migrate := flag.Bool("migrate", false, "Run table migrations before checking")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall timeout")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = utils.SetActorInContext(ctx, utils.SystemActor)
	ctx = utils.SetCorrelationIdInContext(ctx, "reconcile-"+time.Now().UTC().Format("20060102-150405"))

	if *migrate {
		if err := models.AutoMigrateAll(config.GetDB()); err != nil {
			config.LogError(logger, "ledger-reconcile", "main", "migrating tables", nil, err)
			os.Exit(1)
		}
	}

	if *requeueDead {
		n, err := models.RequeueDeadLedgerEvents(ctx)
		if err != nil {
			config.LogError(logger, "ledger-reconcile", "main", "requeueing dead ledger events", nil, err)
			os.Exit(1)
		}
		fmt.Printf("requeued %d dead ledger events\n", n)
	}

	if id := strings.TrimSpace(*itemID); id != "" {
		result, err := models.ReplayInventoryItem(ctx, id)
		if err != nil {
			config.LogError(logger, "ledger-reconcile", "main", "replaying inventory item", id, err)
			os.Exit(1)
		}
		printJSON(result)
		if !result.Consistent {
			os.Exit(2)
		}
		return
	}

	summary, err := workflow.RunReconciliation(ctx, logger)
	if err != nil {
		config.LogError(logger, "ledger-reconcile", "main", "running reconciliation", nil, err)
		os.Exit(1)
	}
	printJSON(summary)
	if summary.Mismatches > 0 {
		os.Exit(2)
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
