// Package databasetest provides throwaway SQLite-backed connections for tests.
package databasetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/Additional-Code/delivery/internal/config"
	"github.com/Additional-Code/delivery/internal/database"
	"github.com/Additional-Code/delivery/internal/entity"
)

// DSN returns a private shared-cache in-memory SQLite DSN.
func DSN() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
}

// Open returns connections to a fresh in-memory database with the orders table created.
// The pool is pinned to one connection so the database outlives idle periods.
func Open(t testing.TB) *database.Connections {
	t.Helper()

	conns, err := database.Open(config.Database{
		Driver:       "sqlite",
		WriterDSN:    DSN(),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conns.Close() })

	ctx := context.Background()
	if _, err := conns.Writer.NewCreateTable().Model((*entity.Order)(nil)).IfNotExists().Exec(ctx); err != nil {
		t.Fatalf("create orders table: %v", err)
	}
	if _, err := conns.Writer.NewCreateIndex().
		Model((*entity.Order)(nil)).
		Index("idx_orders_status").
		Column("status").
		IfNotExists().
		Exec(ctx); err != nil {
		t.Fatalf("create status index: %v", err)
	}
	return conns
}
