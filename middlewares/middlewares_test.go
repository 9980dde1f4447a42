package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/mmdatafocus/partner_ledger/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUsers struct {
	users     map[int]ledger.User
	directors map[int]ledger.Director // by user id
}

func (f fakeUsers) GetUser(ctx context.Context, id int) (*ledger.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ledger.NotFound("GetUser", "user %d", id)
	}
	return &u, nil
}

func (f fakeUsers) GetDirectorByUser(ctx context.Context, userId int) (*ledger.Director, error) {
	d, ok := f.directors[userId]
	if !ok {
		return nil, ledger.NotFound("GetDirectorByUser", "user %d", userId)
	}
	return &d, nil
}

func newAuthRouter(users UserSource) *gin.Engine {
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.Use(AuthMiddleware(users))
	r.GET("/whoami", func(c *gin.Context) {
		p, ok := PrincipalFromContext(c.Request.Context())
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		company, _ := utils.GetCompanyIdFromContext(c.Request.Context())
		isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "role": p.Role, "company": company, "admin": isAdmin})
	})
	return r
}

func bearer(t *testing.T, id int, role string) string {
	t.Helper()
	token, err := utils.JwtGenerate(id, "u", role)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	users := fakeUsers{
		users: map[int]ledger.User{
			1: {ID: 1, Username: "admin", Role: ledger.RoleAdmin},
			2: {ID: 2, Username: "director", Role: ledger.RoleDirector},
			3: {ID: 3, Username: "inactive", Role: ledger.RoleCompany, IsActive: utils.NewFalse()},
		},
		directors: map[int]ledger.Director{2: {ID: 9, CompanyId: 5, UserId: 2}},
	}
	r := newAuthRouter(users)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Token abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, ""},
		{"unknown user", bearer(t, 99, "ADMIN"), http.StatusUnauthorized, ""},
		{"inactive user", bearer(t, 3, "COMPANY"), http.StatusUnauthorized, ""},
		{"admin", bearer(t, 1, "ADMIN"), http.StatusOK, `{"admin":true,"company":0,"id":1,"role":"ADMIN"}`},
		// the stored role wins over the token's claim
		{"director scoped to company", bearer(t, 2, "ADMIN"), http.StatusOK, `{"admin":false,"company":5,"id":2,"role":"DIRECTOR"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, w.Code, w.Body.String())
			}
			if tc.body != "" && w.Body.String() != tc.body {
				t.Fatalf("expected body %s, got %s", tc.body, w.Body.String())
			}
		})
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.GET("/", func(c *gin.Context) {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.String(http.StatusOK, cid)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" || w.Header().Get(CorrelationHeader) != "abc-123" {
		t.Fatalf("expected propagated id, got body=%q header=%q", w.Body.String(), w.Header().Get(CorrelationHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Body.String()) != 36 {
		t.Fatalf("expected generated uuid, got %q", w.Body.String())
	}
}

func TestFillApproverNames_BatchesLookups(t *testing.T) {
	var calls int32
	reader := &userNameReader{fetch: func(ctx context.Context, ids []int) (map[int]string, error) {
		atomic.AddInt32(&calls, 1)
		return map[int]string{10: "Jouhar", 11: "Aleena"}, nil
	}}
	ctx := context.WithValue(context.Background(), loadersKey, newLoaders(reader))

	a := &ledger.RecordState{Approvals: []ledger.ApprovalView{{ApproverId: 10}, {ApproverId: 11}}}
	b := &ledger.RecordState{Approvals: []ledger.ApprovalView{{ApproverId: 11}, {ApproverId: 12}}}
	if err := FillApproverNames(ctx, a, b); err != nil {
		t.Fatalf("FillApproverNames: %v", err)
	}
	if a.Approvals[0].ApproverName != "Jouhar" || a.Approvals[1].ApproverName != "Aleena" || b.Approvals[0].ApproverName != "Aleena" {
		t.Fatalf("unexpected names: %+v %+v", a.Approvals, b.Approvals)
	}
	if b.Approvals[1].ApproverName != "" {
		t.Fatalf("expected unknown approver to stay unnamed, got %q", b.Approvals[1].ApproverName)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("expected one batched fetch, got %d", n)
	}
}

func TestFillApproverNames_NoLoaders(t *testing.T) {
	st := &ledger.RecordState{Approvals: []ledger.ApprovalView{{ApproverId: 1}}}
	if err := FillApproverNames(context.Background(), st); err != nil {
		t.Fatalf("expected no-op without loaders, got %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	if got := displayName(ledger.User{Username: "jdoe", Name: "Jane"}); got != "Jane" {
		t.Fatalf("expected name, got %q", got)
	}
	if got := displayName(ledger.User{Username: "jdoe"}); got != "jdoe" {
		t.Fatalf("expected username fallback, got %q", got)
	}
}
