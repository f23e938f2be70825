package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
// Repos run against Tx when set and fall back to their own handle when
// it is nil, so transactional and direct calls share one code path.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// Background returns a Context with no transaction, for worker and
// bootstrap call sites.
func Background() Context {
	return Context{Ctx: context.Background()}
}
