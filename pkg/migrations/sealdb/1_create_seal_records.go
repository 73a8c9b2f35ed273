package sealdb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/Illuminfti/ika-tensei-relay/pkg/db"
	mghelper "github.com/Illuminfti/ika-tensei-relay/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, bdb *bun.DB) error {
		log.Println("creating seal_records table...")
		if err := mghelper.CreateSchema(ctx, bdb, &db.SealRecord{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, bdb, &db.SealRecord{}, "status", "created_at")
	}, func(ctx context.Context, bdb *bun.DB) error {
		log.Println("dropping seal_records table...")
		return mghelper.DropTables(ctx, bdb, &db.SealRecord{})
	})
}
