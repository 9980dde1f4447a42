package models

import (
	"log"

	"github.com/mmdatafocus/partner_ledger/config"
	"github.com/mmdatafocus/partner_ledger/ledger"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ledger.User{}, &ledger.Company{}, &ledger.Director{},
		&ledger.Project{}, &ledger.Transaction{}, &ledger.Salary{},
		&ledger.Approval{}, &ledger.Milestone{},
		&LedgerEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
