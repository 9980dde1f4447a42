package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/partner_ledger/config"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/mmdatafocus/partner_ledger/utils"
)

type authString string

const principalKey = authString("principal")

// UserSource loads what the auth middleware needs about a token's user.
type UserSource interface {
	GetUser(ctx context.Context, id int) (*ledger.User, error)
	GetDirectorByUser(ctx context.Context, userId int) (*ledger.Director, error)
}

// SessionUser is the cached view of an authenticated user.
type SessionUser struct {
	ID        int         `json:"id"`
	Username  string      `json:"username"`
	Role      ledger.Role `json:"role"`
	Active    bool        `json:"active"`
	CompanyId int         `json:"company_id"` // the directed company, directors only
}

// AuthMiddleware resolves "Authorization: Bearer <jwt>" into a ledger.Principal.
// The role comes from the stored user, not from the token.
func AuthMiddleware(users UserSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			abortUnauthorized(c)
			return
		}

		claims, err := utils.ParseClaims(strings.TrimSpace(auth[len(bearer):]))
		if err != nil {
			abortUnauthorized(c)
			return
		}

		ctx := c.Request.Context()
		session, err := loadSessionUser(ctx, users, claims.ID)
		if err != nil || !session.Active {
			abortUnauthorized(c)
			return
		}

		ctx = utils.SetUserIdInContext(ctx, session.ID)
		ctx = utils.SetUsernameInContext(ctx, session.Username)
		ctx = utils.SetRoleInContext(ctx, string(session.Role))
		ctx = utils.SetIsAdminInContext(ctx, session.Role == ledger.RoleAdmin)
		// a director belongs to exactly one company, so its queries can be tenant scoped
		if session.Role == ledger.RoleDirector && session.CompanyId > 0 {
			ctx = utils.SetCompanyIdInContext(ctx, session.CompanyId)
		}
		ctx = context.WithValue(ctx, principalKey, ledger.Principal{ID: session.ID, Role: session.Role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func loadSessionUser(ctx context.Context, users UserSource, id int) (*SessionUser, error) {
	logger := config.GetLogger()
	cached, err := utils.RetrieveRedis[SessionUser](id)
	if err != nil {
		config.LogError(logger, "authMiddleware.go", "loadSessionUser", "RetrieveRedis", id, err)
	}
	if cached != nil {
		return cached, nil
	}

	u, err := users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	session := &SessionUser{ID: u.ID, Username: u.Username, Role: u.Role, Active: u.Active()}
	if d, err := users.GetDirectorByUser(ctx, u.ID); err == nil {
		session.CompanyId = d.CompanyId
	} else if ledger.KindOf(err) != ledger.KindNotFound {
		return nil, err
	}
	if err := utils.StoreRedis(session, id); err != nil {
		config.LogError(logger, "authMiddleware.go", "loadSessionUser", "StoreRedis", id, err)
	}
	return session, nil
}

// ForgetUser drops the cached session so role, activation or company changes apply immediately.
func ForgetUser(id int) {
	if err := utils.RemoveRedisItem[SessionUser](id); err != nil {
		config.LogError(config.GetLogger(), "authMiddleware.go", "ForgetUser", "RemoveRedisItem", id, err)
	}
}

func abortUnauthorized(c *gin.Context) {
	cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":          "NotAuthenticated",
		"detail":         "missing or invalid credentials",
		"correlation_id": cid,
	})
}

// PrincipalFromContext returns the caller resolved by AuthMiddleware.
func PrincipalFromContext(ctx context.Context) (ledger.Principal, bool) {
	p, ok := ctx.Value(principalKey).(ledger.Principal)
	return p, ok
}
