package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/partner_ledger/config"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/mmdatafocus/partner_ledger/middlewares"
	"github.com/mmdatafocus/partner_ledger/models"
	"github.com/mmdatafocus/partner_ledger/utils"
	"github.com/mmdatafocus/partner_ledger/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type api struct {
	svc    *ledger.Service
	db     *gorm.DB
	logger *logrus.Logger
}

func (h *api) register(g *gin.RouterGroup) {
	g.GET("/auth/me", h.me)

	g.POST("/companies", h.createCompany)
	g.GET("/companies", h.listCompanies)
	g.GET("/companies/:id", h.getCompany)
	g.DELETE("/companies/:id", h.deleteCompany)
	g.GET("/companies/:id/directors", h.listDirectors)
	g.POST("/companies/:id/directors", h.addDirector)
	g.GET("/companies/:id/export", h.exportCompany)
	g.DELETE("/directors/:id", h.removeDirector)

	g.POST("/projects", h.createProject)
	g.GET("/projects", h.listProjects)
	g.GET("/projects/:id", h.getProject)
	g.POST("/projects/:id/approve", h.recordAction(ledger.KindProject, h.svc.Approve))
	g.POST("/projects/:id/reject", h.recordAction(ledger.KindProject, h.svc.Reject))
	g.POST("/projects/:id/complete", h.completeProject)

	g.POST("/transactions", h.createTransaction)
	g.GET("/transactions", h.listTransactions)
	g.GET("/transactions/:id", h.getTransaction)
	g.POST("/transactions/:id/approve", h.recordAction(ledger.KindTransaction, h.svc.Approve))
	g.POST("/transactions/:id/reject", h.recordAction(ledger.KindTransaction, h.svc.Reject))

	g.POST("/salaries", h.createSalary)
	g.GET("/salaries", h.listSalaries)
	g.GET("/salaries/:id", h.getSalary)
	g.POST("/salaries/:id/approve", h.recordAction(ledger.KindSalary, h.svc.Approve))
	g.POST("/salaries/:id/reject", h.recordAction(ledger.KindSalary, h.svc.Reject))

	g.GET("/approvals/pending-count", h.pendingCount)
	g.GET("/approvals/:kind/:id", h.recordState)

	g.POST("/milestones", h.createMilestone)
	g.GET("/milestones", h.listMilestones)
	g.GET("/summary", h.summary)

	admin := g.Group("/admin")
	admin.POST("/users", h.provisionUser)
	admin.GET("/users", h.listUsers)
	admin.PATCH("/users/:id", h.updateUser)
	admin.DELETE("/users/:id", h.deleteUser)
	admin.GET("/dashboard", h.dashboard)
	admin.GET("/outbox", h.listOutbox)
	admin.POST("/outbox/:id/replay", h.replayOutbox)
}

// principal is set by AuthMiddleware for every /api route.
func principal(c *gin.Context) ledger.Principal {
	p, _ := middlewares.PrincipalFromContext(c.Request.Context())
	return p
}

func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindNotAuthorized:
		return http.StatusForbidden
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindValidationFailed:
		return http.StatusBadRequest
	case ledger.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes the error body for err. Internal errors are logged and their detail withheld.
func (h *api) fail(c *gin.Context, op string, err error) {
	kind := ledger.KindOf(err)
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	body := gin.H{"error": kind, "correlation_id": cid}

	var le *ledger.Error
	switch {
	case kind == ledger.KindInternal:
		config.LogError(h.logger, "handlers.go", op, c.Request.Method+" "+c.FullPath(), cid, err)
		body["detail"] = "internal error"
	case errors.As(err, &le):
		body["detail"] = le.Message
		if len(le.Fields) > 0 {
			body["fields"] = le.Fields
		}
	default:
		body["detail"] = err.Error()
	}
	c.AbortWithStatusJSON(statusFor(kind), body)
}

// bind decodes the JSON body into req, reporting decode and binding failures as field errors.
func (h *api) bind(c *gin.Context, op string, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.fail(c, op, ledger.Invalid(op, utils.ProcessValidationErrors(err)))
		return false
	}
	return true
}

// bindOptional is bind for endpoints whose body may be empty.
func (h *api) bindOptional(c *gin.Context, op string, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		h.fail(c, op, ledger.Invalid(op, utils.ProcessValidationErrors(err)))
		return false
	}
	return true
}

func (h *api) idParam(c *gin.Context, op string) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		h.fail(c, op, ledger.Invalid(op, map[string]string{"id": "must be a positive integer"}))
		return 0, false
	}
	return id, true
}

// queryCompany reads the optional ?company= filter; 0 means unset.
func (h *api) queryCompany(c *gin.Context, op string, required bool) (int, bool) {
	v := strings.TrimSpace(c.Query("company"))
	if v == "" {
		if required {
			h.fail(c, op, ledger.Invalid(op, map[string]string{"company": "required"}))
			return 0, false
		}
		return 0, true
	}
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		h.fail(c, op, ledger.Invalid(op, map[string]string{"company": "must be a positive integer"}))
		return 0, false
	}
	return id, true
}

// fieldParser collects per-field parse failures for one request.
type fieldParser map[string]string

func (f fieldParser) amount(name, v string) decimal.Decimal {
	d, err := utils.ParseDecimal(v)
	if err != nil {
		f[name] = "must be a decimal number"
	}
	return d
}

func (f fieldParser) optionalAmount(name, v string) decimal.Decimal {
	if strings.TrimSpace(v) == "" {
		return decimal.Zero
	}
	return f.amount(name, v)
}

func (f fieldParser) date(name, v string) time.Time {
	t, err := utils.ParseDate(v)
	if err != nil {
		f[name] = "must be a date (YYYY-MM-DD)"
	}
	return t
}

func (f fieldParser) optionalDate(name string, v *string) *time.Time {
	t, err := utils.ParseOptionalDate(v)
	if err != nil {
		f[name] = "must be a date (YYYY-MM-DD)"
	}
	return t
}

func (f fieldParser) err(op string) error {
	if len(f) == 0 {
		return nil
	}
	return ledger.Invalid(op, f)
}

func (h *api) me(c *gin.Context) {
	view, err := h.svc.Me(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, "Me", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type companyRequest struct {
	Name              string  `json:"name" binding:"required,max=200"`
	Partner1Name      string  `json:"partner1_name" binding:"max=100"`
	Partner2Name      string  `json:"partner2_name" binding:"max=100"`
	IncorporationDate *string `json:"incorporation_date"`
}

func (h *api) createCompany(c *gin.Context) {
	var req companyRequest
	if !h.bind(c, "CreateCompany", &req) {
		return
	}
	fields := fieldParser{}
	incorporated := fields.optionalDate("incorporation_date", req.IncorporationDate)
	if err := fields.err("CreateCompany"); err != nil {
		h.fail(c, "CreateCompany", err)
		return
	}
	view, err := h.svc.CreateCompany(c.Request.Context(), principal(c), ledger.NewCompany{
		Name:              req.Name,
		Partner1Name:      req.Partner1Name,
		Partner2Name:      req.Partner2Name,
		IncorporationDate: incorporated,
	})
	if err != nil {
		h.fail(c, "CreateCompany", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *api) listCompanies(c *gin.Context) {
	views, err := h.svc.ListCompanies(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, "ListCompanies", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *api) getCompany(c *gin.Context) {
	id, ok := h.idParam(c, "GetCompany")
	if !ok {
		return
	}
	view, err := h.svc.GetCompany(c.Request.Context(), principal(c), id)
	if err != nil {
		h.fail(c, "GetCompany", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *api) deleteCompany(c *gin.Context) {
	id, ok := h.idParam(c, "DeleteCompany")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p := principal(c)
	// directors lose their company binding, so their cached sessions go stale
	directors, err := h.svc.ListDirectors(ctx, p, id)
	if err != nil {
		h.fail(c, "DeleteCompany", err)
		return
	}
	if err := h.svc.DeleteCompany(ctx, p, id); err != nil {
		h.fail(c, "DeleteCompany", err)
		return
	}
	for _, d := range directors {
		middlewares.ForgetUser(d.UserId)
	}
	c.Status(http.StatusNoContent)
}

func (h *api) listDirectors(c *gin.Context) {
	id, ok := h.idParam(c, "ListDirectors")
	if !ok {
		return
	}
	views, err := h.svc.ListDirectors(c.Request.Context(), principal(c), id)
	if err != nil {
		h.fail(c, "ListDirectors", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

type directorRequest struct {
	User    int             `json:"user" binding:"required,gt=0"`
	Account *ledger.Account `json:"account" binding:"omitempty,oneof=PARTNER1 PARTNER2"`
}

func (h *api) addDirector(c *gin.Context) {
	id, ok := h.idParam(c, "AddDirector")
	if !ok {
		return
	}
	var req directorRequest
	if !h.bind(c, "AddDirector", &req) {
		return
	}
	view, err := h.svc.AddDirector(c.Request.Context(), principal(c), id, ledger.NewDirector{UserId: req.User, Account: req.Account})
	if err != nil {
		h.fail(c, "AddDirector", err)
		return
	}
	middlewares.ForgetUser(req.User)
	c.JSON(http.StatusCreated, view)
}

func (h *api) removeDirector(c *gin.Context) {
	id, ok := h.idParam(c, "RemoveDirector")
	if !ok {
		return
	}
	if err := h.svc.RemoveDirector(c.Request.Context(), principal(c), id); err != nil {
		h.fail(c, "RemoveDirector", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// exportCompany streams the summary and approved transactions as a workbook.
func (h *api) exportCompany(c *gin.Context) {
	id, ok := h.idParam(c, "ExportCompany")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p := principal(c)
	company, err := h.svc.GetCompany(ctx, p, id)
	if err != nil {
		h.fail(c, "ExportCompany", err)
		return
	}
	summary, err := h.svc.Summary(ctx, p, id)
	if err != nil {
		h.fail(c, "ExportCompany", err)
		return
	}
	txs, err := h.svc.ListTransactions(ctx, p, ledger.ListQuery{CompanyId: id, Status: ledger.StatusApproved})
	if err != nil {
		h.fail(c, "ExportCompany", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ledger-%d-%s.xlsx"`, id, summary.Today))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := models.WriteLedgerWorkbook(c.Writer, company.Name, summary, txs); err != nil {
		// headers are already sent
		config.LogError(h.logger, "handlers.go", "ExportCompany", "WriteLedgerWorkbook", id, err)
		_ = c.Error(err)
	}
}

type userRequest struct {
	Username        string          `json:"username" binding:"required,max=150"`
	Password        string          `json:"password" binding:"required"`
	PasswordConfirm string          `json:"password_confirm"`
	Name            string          `json:"name" binding:"max=150"`
	Email           *string         `json:"email" binding:"omitempty,max=254"`
	Phone           string          `json:"phone" binding:"required,max=20"`
	Role            ledger.Role     `json:"role" binding:"omitempty,oneof=ADMIN COMPANY DIRECTOR"`
	Company         int             `json:"company_id" binding:"omitempty,gt=0"`
	Account         *ledger.Account `json:"account" binding:"omitempty,oneof=PARTNER1 PARTNER2"`
}

// contactFields checks email format and phone number validity for the configured region.
func contactFields(email, phone *string) fieldParser {
	fields := fieldParser{}
	if email != nil && strings.TrimSpace(*email) != "" && !utils.IsValidEmail(strings.TrimSpace(*email)) {
		fields["email"] = "must be a valid email address"
	}
	if phone != nil && strings.TrimSpace(*phone) != "" {
		if err := utils.ValidatePhoneNumber(strings.TrimSpace(*phone), config.PhoneRegion()); err != nil {
			fields["phone"] = "must be a valid phone number"
		}
	}
	return fields
}

func (h *api) provisionUser(c *gin.Context) {
	var req userRequest
	if !h.bind(c, "ProvisionUser", &req) {
		return
	}
	if err := contactFields(req.Email, &req.Phone).err("ProvisionUser"); err != nil {
		h.fail(c, "ProvisionUser", err)
		return
	}
	view, err := h.svc.ProvisionUser(c.Request.Context(), principal(c), ledger.NewUser{
		Username:        req.Username,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Role:            req.Role,
		CompanyId:       req.Company,
		Account:         req.Account,
	})
	if err != nil {
		h.fail(c, "ProvisionUser", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *api) listUsers(c *gin.Context) {
	views, err := h.svc.ListUsers(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, "ListUsers", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

type userPatchRequest struct {
	Name     *string `json:"name" binding:"omitempty,max=150"`
	Email    *string `json:"email" binding:"omitempty,max=254"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	IsActive *bool   `json:"is_active"`
}

func (h *api) updateUser(c *gin.Context) {
	id, ok := h.idParam(c, "UpdateUser")
	if !ok {
		return
	}
	var req userPatchRequest
	if !h.bind(c, "UpdateUser", &req) {
		return
	}
	if err := contactFields(req.Email, req.Phone).err("UpdateUser"); err != nil {
		h.fail(c, "UpdateUser", err)
		return
	}
	view, err := h.svc.UpdateUser(c.Request.Context(), principal(c), id, ledger.UserPatch{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		IsActive: req.IsActive,
	})
	if err != nil {
		h.fail(c, "UpdateUser", err)
		return
	}
	middlewares.ForgetUser(id)
	c.JSON(http.StatusOK, view)
}

func (h *api) deleteUser(c *gin.Context) {
	id, ok := h.idParam(c, "DeleteUser")
	if !ok {
		return
	}
	if err := h.svc.DeleteUser(c.Request.Context(), principal(c), id); err != nil {
		h.fail(c, "DeleteUser", err)
		return
	}
	middlewares.ForgetUser(id)
	c.Status(http.StatusNoContent)
}

func (h *api) dashboard(c *gin.Context) {
	view, err := h.svc.Dashboard(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, "Dashboard", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *api) requireAdmin(c *gin.Context, op string) bool {
	if !principal(c).IsAdmin() {
		h.fail(c, op, &ledger.Error{Kind: ledger.KindNotAuthorized, Op: op, Message: "admin only"})
		return false
	}
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "db is nil"})
		return false
	}
	return true
}

// listOutbox shows the newest ledger events, filtered by ?status=&kind=&record=&limit=.
func (h *api) listOutbox(c *gin.Context) {
	if !h.requireAdmin(c, "ListLedgerEvents") {
		return
	}
	q := models.LedgerEventQuery{
		PublishStatus: c.Query("status"),
		RecordKind:    c.Query("kind"),
	}
	fields := fieldParser{}
	if v := strings.TrimSpace(c.Query("record")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["record"] = "must be an integer"
		}
		q.ReferenceId = n
	}
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fields["limit"] = "must be an integer"
		}
		q.Limit = n
	}
	if err := fields.err("ListLedgerEvents"); err != nil {
		h.fail(c, "ListLedgerEvents", err)
		return
	}
	events, err := models.ListLedgerEvents(c.Request.Context(), h.db, q)
	if err != nil {
		h.fail(c, "ListLedgerEvents", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// replayOutbox requeues a FAILED or DEAD ledger event for the dispatcher.
func (h *api) replayOutbox(c *gin.Context) {
	if !h.requireAdmin(c, "ReplayEvent") {
		return
	}
	id, ok := h.idParam(c, "ReplayEvent")
	if !ok {
		return
	}
	if err := workflow.ReplayEvent(c.Request.Context(), h.db, id); err != nil {
		h.fail(c, "ReplayEvent", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"record_id":      id,
		"publish_status": models.OutboxPublishStatusFailed,
	})
}
