package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/partner_ledger/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantGuardPlugin pins a director session to its company: statements on tables with a
// company_id column get `company_id = <session company>` appended.
//
// Reads marked with appctx.WithMembershipLookup are left unscoped. The ledger uses them to find
// which company a record, director or project belongs to before it checks membership, so a
// director probing another company's record is refused with NotAuthorized instead of seeing a
// 404. Updates and deletes are always scoped.
//
// Raw SQL is not rewritten.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardRead); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardRead); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardWrite); err != nil {
		return err
	}
	return db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardWrite)
}

func tenantGuardRead(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil {
		return
	}
	if appctx.IsMembershipLookup(db.Statement.Context) {
		return
	}
	scopeToCompany(db)
}

func tenantGuardWrite(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Context == nil {
		return
	}
	scopeToCompany(db)
}

func scopeToCompany(db *gorm.DB) {
	stmt := db.Statement
	if shouldBypassTenantScope(stmt.Context) {
		return
	}
	companyID := companyIdFromContext(stmt.Context)
	if companyID == 0 || stmt.Schema == nil {
		return
	}
	if stmt.Schema.LookUpField(tenantColumn) == nil {
		return
	}
	// an explicit company filter wins
	if whereHasCompanyID(stmt.Clauses["WHERE"]) {
		return
	}
	stmt.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{Column: clause.Column{Table: stmt.Table, Name: tenantColumn}, Value: companyID},
		},
	})
}

const tenantColumn = "company_id"

func companyIdFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(appctx.ContextKeyCompanyId).(int); ok && v > 0 {
		return v
	}
	return 0
}

func shouldBypassTenantScope(ctx context.Context) bool {
	if v, ok := ctx.Value(appctx.ContextKeySkipTenantScope).(bool); ok && v {
		return true
	}
	v, ok := ctx.Value(appctx.ContextKeyIsAdmin).(bool)
	return ok && v
}

func whereHasCompanyID(c clause.Clause) bool {
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasCompanyID(e) {
			return true
		}
	}
	return false
}

func exprHasCompanyID(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsCompanyID(v.Column)
	case clause.Neq:
		return colIsCompanyID(v.Column)
	case clause.IN:
		return colIsCompanyID(v.Column)
	case clause.AndConditions:
		return anyHasCompanyID(v.Exprs)
	case clause.OrConditions:
		return anyHasCompanyID(v.Exprs)
	case clause.Expr:
		// gorm renders Where("company_id IN ?", ids) as a raw expression
		return strings.Contains(strings.ToLower(v.SQL), tenantColumn)
	}
	return false
}

func anyHasCompanyID(exprs []clause.Expression) bool {
	for _, x := range exprs {
		if exprHasCompanyID(x) {
			return true
		}
	}
	return false
}

func colIsCompanyID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	}
	return false
}
