package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// userNameFetcher returns display names for the ids it knows; unknown ids are omitted.
type userNameFetcher func(ctx context.Context, ids []int) (map[int]string, error)

// Loaders hold the per-request batch loaders.
type Loaders struct {
	userNameLoader *dataloader.Loader[int, string]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	reader := &userNameReader{fetch: dbUserNames(conn)}
	return newLoaders(reader)
}

func newLoaders(reader *userNameReader) *Loaders {
	return &Loaders{
		userNameLoader: dataloader.NewBatchedLoader(reader.getUserNames, dataloader.WithWait[int, string](time.Millisecond)),
	}
}

func LoaderMiddleware(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(conn)
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the request's loaders, or nil outside LoaderMiddleware.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

type userNameReader struct {
	fetch userNameFetcher
}

func dbUserNames(db *gorm.DB) userNameFetcher {
	return func(ctx context.Context, ids []int) (map[int]string, error) {
		var users []ledger.User
		if err := db.WithContext(ctx).Select("id", "username", "name").Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, err
		}
		out := make(map[int]string, len(users))
		for _, u := range users {
			out[u.ID] = displayName(u)
		}
		return out, nil
	}
}

func displayName(u ledger.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func (r *userNameReader) getUserNames(ctx context.Context, ids []int) []*dataloader.Result[string] {
	names, err := r.fetch(ctx, ids)
	if err != nil {
		return handleError[string](len(ids), err)
	}
	results := make([]*dataloader.Result[string], 0, len(ids))
	for _, id := range ids {
		results = append(results, &dataloader.Result[string]{Data: names[id]})
	}
	return results
}

// FillApproverNames sets ApproverName on every vote of the given record states with one batched lookup.
func FillApproverNames(ctx context.Context, states ...*ledger.RecordState) error {
	loaders := For(ctx)
	if loaders == nil {
		return nil
	}
	var ids []int
	for _, st := range states {
		for _, a := range st.Approvals {
			ids = append(ids, a.ApproverId)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	names, errs := loaders.userNameLoader.LoadMany(ctx, ids)()
	if len(errs) > 0 {
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
	}
	i := 0
	for _, st := range states {
		for j := range st.Approvals {
			st.Approvals[j].ApproverName = names[i]
			i++
		}
	}
	return nil
}
