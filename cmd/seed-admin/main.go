// seed-admin creates or updates the platform admin login.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  ADMIN_PASSWORD=... go run ./cmd/seed-admin -username ledgerAdmin
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/partner_ledger/config"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/mmdatafocus/partner_ledger/middlewares"
	"github.com/mmdatafocus/partner_ledger/models"
	"github.com/mmdatafocus/partner_ledger/utils"
)

func main() {
	username := flag.String("username", "ledgerAdmin", "Admin username to create or update")
	name := flag.String("name", "Ledger Admin", "Display name")
	phone := flag.String("phone", "", "Contact phone number")
	flag.Parse()

	password := os.Getenv("ADMIN_PASSWORD")
	if len(password) < 6 {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD must be set (at least 6 characters)")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUsernameInContext(ctx, *username)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPasswordString(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	store := models.NewGormStore(db)
	existing, err := store.GetUserByUsername(ctx, strings.TrimSpace(*username))
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := ledger.User{
			Username: strings.TrimSpace(*username),
			Name:     *name,
			Phone:    *phone,
			Password: hashed,
			Role:     ledger.RoleAdmin,
			IsActive: utils.NewTrue(),
		}
		if err := store.CreateUser(ctx, &u); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q id=%d\n", u.Username, u.ID)
		return
	}

	existing.Password = hashed
	existing.Name = *name
	if *phone != "" {
		existing.Phone = *phone
	}
	existing.Role = ledger.RoleAdmin
	existing.IsActive = utils.NewTrue()
	if err := store.UpdateUser(ctx, existing); err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	middlewares.ForgetUser(existing.ID)
	fmt.Printf("Updated admin user: username=%q id=%d\n", existing.Username, existing.ID)
}
