package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/mmdatafocus/partner_ledger/middlewares"
)

// recordVote is the shape of Service.Approve and Service.Reject.
type recordVote func(ctx context.Context, p ledger.Principal, ref ledger.RecordRef, notes string) (*ledger.RecordState, error)

type voteRequest struct {
	Notes string `json:"notes" binding:"max=1000"`
}

type recordStateResponse struct {
	ledger.RecordRef
	ledger.RecordState
}

// respondState fills approver names and writes the record's approval state.
func (h *api) respondState(c *gin.Context, op string, ref ledger.RecordRef, state *ledger.RecordState) {
	if err := middlewares.FillApproverNames(c.Request.Context(), state); err != nil {
		h.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, recordStateResponse{RecordRef: ref, RecordState: *state})
}

func (h *api) recordAction(kind ledger.RecordKind, vote recordVote) gin.HandlerFunc {
	op := "Vote" + string(kind)
	return func(c *gin.Context) {
		id, ok := h.idParam(c, op)
		if !ok {
			return
		}
		var req voteRequest
		if !h.bindOptional(c, op, &req) {
			return
		}
		ref := ledger.RecordRef{Kind: kind, ID: id}
		state, err := vote(c.Request.Context(), principal(c), ref, req.Notes)
		if err != nil {
			h.fail(c, op, err)
			return
		}
		h.respondState(c, op, ref, state)
	}
}

func (h *api) completeProject(c *gin.Context) {
	id, ok := h.idParam(c, "CompleteProject")
	if !ok {
		return
	}
	state, err := h.svc.CompleteProject(c.Request.Context(), principal(c), id)
	if err != nil {
		h.fail(c, "CompleteProject", err)
		return
	}
	h.respondState(c, "CompleteProject", ledger.RecordRef{Kind: ledger.KindProject, ID: id}, state)
}

func (h *api) recordState(c *gin.Context) {
	kind := ledger.RecordKind(strings.ToUpper(c.Param("kind")))
	if !kind.Valid() {
		h.fail(c, "RecordView", ledger.Invalid("RecordView", map[string]string{"kind": "must be PROJECT, TRANSACTION or SALARY"}))
		return
	}
	id, ok := h.idParam(c, "RecordView")
	if !ok {
		return
	}
	ref := ledger.RecordRef{Kind: kind, ID: id}
	state, err := h.svc.RecordView(c.Request.Context(), principal(c), ref)
	if err != nil {
		h.fail(c, "RecordView", err)
		return
	}
	h.respondState(c, "RecordView", ref, state)
}

func (h *api) pendingCount(c *gin.Context) {
	n, err := h.svc.PendingCount(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, "PendingCount", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending_count": n})
}

// listQuery reads the shared ?company=&status=&type= filters.
func (h *api) listQuery(c *gin.Context, op string) (ledger.ListQuery, bool) {
	companyId, ok := h.queryCompany(c, op, false)
	if !ok {
		return ledger.ListQuery{}, false
	}
	q := ledger.ListQuery{CompanyId: companyId}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		q.Status = ledger.Status(strings.ToUpper(v))
		if !q.Status.Valid() {
			h.fail(c, op, ledger.Invalid(op, map[string]string{"status": "unknown status"}))
			return ledger.ListQuery{}, false
		}
	}
	if v := strings.TrimSpace(c.Query("type")); v != "" {
		q.Type = ledger.TransactionType(strings.ToUpper(v))
		if !q.Type.Valid() {
			h.fail(c, op, ledger.Invalid(op, map[string]string{"type": "must be INCOME, EXPENSE or SALARY"}))
			return ledger.ListQuery{}, false
		}
	}
	return q, true
}

type projectRequest struct {
	Company        int     `json:"company" binding:"required,gt=0"`
	Name           string  `json:"name" binding:"required,max=200"`
	StartDate      string  `json:"start_date" binding:"required"`
	EndDate        *string `json:"end_date"`
	ProjectValue   string  `json:"project_value" binding:"required"`
	ReceivedAmount string  `json:"received_amount"`
}

func (h *api) createProject(c *gin.Context) {
	var req projectRequest
	if !h.bind(c, "CreateProject", &req) {
		return
	}
	fields := fieldParser{}
	in := ledger.NewProject{
		CompanyId:      req.Company,
		Name:           req.Name,
		StartDate:      fields.date("start_date", req.StartDate),
		EndDate:        fields.optionalDate("end_date", req.EndDate),
		ProjectValue:   fields.amount("project_value", req.ProjectValue),
		ReceivedAmount: fields.optionalAmount("received_amount", req.ReceivedAmount),
	}
	if err := fields.err("CreateProject"); err != nil {
		h.fail(c, "CreateProject", err)
		return
	}
	view, err := h.svc.CreateProject(c.Request.Context(), principal(c), in)
	if err != nil {
		h.fail(c, "CreateProject", err)
		return
	}
	if err := middlewares.FillApproverNames(c.Request.Context(), &view.RecordState); err != nil {
		h.fail(c, "CreateProject", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *api) listProjects(c *gin.Context) {
	q, ok := h.listQuery(c, "ListProjects")
	if !ok {
		return
	}
	views, err := h.svc.ListProjects(c.Request.Context(), principal(c), q)
	if err != nil {
		h.fail(c, "ListProjects", err)
		return
	}
	states := make([]*ledger.RecordState, len(views))
	for i := range views {
		states[i] = &views[i].RecordState
	}
	if err := middlewares.FillApproverNames(c.Request.Context(), states...); err != nil {
		h.fail(c, "ListProjects", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *api) getProject(c *gin.Context) {
	id, ok := h.idParam(c, "GetProject")
	if !ok {
		return
	}
	view, err := h.svc.GetProject(c.Request.Context(), principal(c), id)
	if err != nil {
		h.fail(c, "GetProject", err)
		return
	}
	if err := middlewares.FillApproverNames(c.Request.Context(), &view.RecordState); err != nil {
		h.fail(c, "GetProject", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type transactionRequest struct {
	Company     int                    `json:"company" binding:"required,gt=0"`
	Type        ledger.TransactionType `json:"transaction_type" binding:"required,oneof=INCOME EXPENSE SALARY"`
	Amount      string                 `json:"amount" binding:"required"`
	Description string                 `json:"description"`
	Date        string                 `json:"date" binding:"required"`
	Account     ledger.Account         `json:"account" binding:"required,oneof=PARTNER1 PARTNER2 COMPANY"`
	Project     *int                   `json:"project" binding:"omitempty,gt=0"`
}

func (h *api) createTransaction(c *gin.Context) {
	var req transactionRequest
	if !h.bind(c, "CreateTransaction", &req) {
		return
	}
	fields := fieldParser{}
	in := ledger.NewTransaction{
		CompanyId:   req.Company,
		Type:        req.Type,
		Amount:      fields.amount("amount", req.Amount),
		Description: req.Description,
		Date:        fields.date("date", req.Date),
		Account:     req.Account,
		ProjectId:   req.Project,
	}
	if err := fields.err("CreateTransaction"); err != nil {
		h.fail(c, "CreateTransaction", err)
		return
	}
	view, err := h.svc.CreateTransaction(c.Request.Context(), principal(c), in)
	if err != nil {
		h.fail(c, "CreateTransaction", err)
		return
	}
	if err := middlewares.FillApproverNames(c.Request.Context(), &view.RecordState); err != nil {
		h.fail(c, "CreateTransaction", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *api) listTransactions(c *gin.Context) {
	q, ok := h.listQuery(c, "ListTransactions")
	if !ok {
		return
	}
	views, err := h.svc.ListTransactions(c.Request.Context(), principal(c), q)
	if err != nil {
		h.fail(c, "ListTransactions", err)
		return
	}
	states := make([]*ledger.RecordState, len(views))
	for i := range views {
		states[i] = &views[i].RecordState
	}
	if err := middlewares.FillApproverNames(c.Request.Context(), states...); err != nil {
		h.fail(c, "ListTransactions", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *api) getTransaction(c *gin.Context) {
	id, ok := h.idParam(c, "GetTransaction")
	if !ok {
		return
	}
	view, err := h.svc.GetTransaction(c.Request.Context(), principal(c), id)
	if err != nil {
		h.fail(c, "GetTransaction", err)
		return
	}
	if err := middlewares.FillApproverNames(c.Request.Context(), &view.RecordState); err != nil {
		h.fail(c, "GetTransaction", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type salaryRequest struct {
	Company     int            `json:"company" binding:"required,gt=0"`
	Director    int            `json:"director" binding:"required,gt=0"`
	Amount      string         `json:"amount" binding:"required"`
	Description string         `json:"description"`
	Date        string         `json:"date" binding:"required"`
	Account     ledger.Account `json:"account" binding:"required,oneof=PARTNER1 PARTNER2 COMPANY"`
}

func (h *api) createSalary(c *gin.Context) {
	var req salaryRequest
	if !h.bind(c, "CreateSalary", &req) {
		return
	}
	fields := fieldParser{}
	in := ledger.NewSalary{
		CompanyId:   req.Company,
		DirectorId:  req.Director,
		Amount:      fields.amount("amount", req.Amount),
		Description: req.Description,
		Date:        fields.date("date", req.Date),
		Account:     req.Account,
	}
	if err := fields.err("CreateSalary"); err != nil {
		h.fail(c, "CreateSalary", err)
		return
	}
	view, err := h.svc.CreateSalary(c.Request.Context(), principal(c), in)
	if err != nil {
		h.fail(c, "CreateSalary", err)
		return
	}
	if err := middlewares.FillApproverNames(c.Request.Context(), &view.RecordState); err != nil {
		h.fail(c, "CreateSalary", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *api) listSalaries(c *gin.Context) {
	q, ok := h.listQuery(c, "ListSalaries")
	if !ok {
		return
	}
	views, err := h.svc.ListSalaries(c.Request.Context(), principal(c), q)
	if err != nil {
		h.fail(c, "ListSalaries", err)
		return
	}
	states := make([]*ledger.RecordState, len(views))
	for i := range views {
		states[i] = &views[i].RecordState
	}
	if err := middlewares.FillApproverNames(c.Request.Context(), states...); err != nil {
		h.fail(c, "ListSalaries", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *api) getSalary(c *gin.Context) {
	id, ok := h.idParam(c, "GetSalary")
	if !ok {
		return
	}
	view, err := h.svc.GetSalary(c.Request.Context(), principal(c), id)
	if err != nil {
		h.fail(c, "GetSalary", err)
		return
	}
	if err := middlewares.FillApproverNames(c.Request.Context(), &view.RecordState); err != nil {
		h.fail(c, "GetSalary", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type milestoneRequest struct {
	Company int    `json:"company" binding:"required,gt=0"`
	Target  string `json:"target_amount" binding:"required"`
	Label   string `json:"label" binding:"max=200"`
}

func (h *api) createMilestone(c *gin.Context) {
	var req milestoneRequest
	if !h.bind(c, "CreateMilestone", &req) {
		return
	}
	fields := fieldParser{}
	target := fields.amount("target_amount", req.Target)
	if err := fields.err("CreateMilestone"); err != nil {
		h.fail(c, "CreateMilestone", err)
		return
	}
	view, err := h.svc.CreateMilestone(c.Request.Context(), principal(c), ledger.NewMilestone{
		CompanyId: req.Company,
		Target:    target,
		Label:     req.Label,
	})
	if err != nil {
		h.fail(c, "CreateMilestone", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *api) listMilestones(c *gin.Context) {
	companyId, ok := h.queryCompany(c, "ListMilestones", true)
	if !ok {
		return
	}
	views, err := h.svc.ListMilestones(c.Request.Context(), principal(c), companyId)
	if err != nil {
		h.fail(c, "ListMilestones", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *api) summary(c *gin.Context) {
	companyId, ok := h.queryCompany(c, "Summary", true)
	if !ok {
		return
	}
	view, err := h.svc.Summary(c.Request.Context(), principal(c), companyId)
	if err != nil {
		h.fail(c, "Summary", err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, view)
}
