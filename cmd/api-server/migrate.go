package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

func migrate(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	m, err := db.NewMigrator(pool, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	if err := m.Up(ctx); err != nil {
		return err
	}
	v, err := m.Version(ctx)
	if err != nil {
		return err
	}
	log.Info("schema up to date", zap.Int64("version", v))
	return nil
}
