package store

import (
	"context"
	"fmt"
	"time"

	"github.com/PratikDhanave/next-action-service/internal/config"
	"github.com/PratikDhanave/next-action-service/internal/models"
)

// Store is the durable persistence layer for action events and transitions.
//
// Both implementations rely on the database's native upsert for conflict
// resolution; none of the methods take locks in process.
type Store interface {
	// LastAction returns the user's most recent event by timestamp.
	// found is false when the user has no events.
	LastAction(ctx context.Context, userID string) (ev models.ActionEvent, found bool, err error)

	// UpsertAction writes ev. On a (user, action, timestamp) conflict only the
	// metadata is overwritten and inserted is false.
	UpsertAction(ctx context.Context, ev models.ActionEvent) (inserted bool, err error)

	// UpsertTransition records one observation of ActionName -> NextActionName,
	// incrementing the count and refreshing created_at.
	UpsertTransition(ctx context.Context, edge models.TransitionEdge) error

	// TransitionCounts returns the per-next-action counts for (user, action).
	TransitionCounts(ctx context.Context, userID, actionName string) ([]models.TransitionCount, error)

	// Migrate applies pending schema migrations and returns their versions.
	Migrate(ctx context.Context) ([]int, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by cfg and fails fast if it is unreachable.
// It never touches the schema; run Migrate for that.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.URL)
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
