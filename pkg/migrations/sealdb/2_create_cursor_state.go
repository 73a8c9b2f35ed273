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
		log.Println("creating cursor_state table...")
		return mghelper.CreateSchema(ctx, bdb, &db.CursorState{})
	}, func(ctx context.Context, bdb *bun.DB) error {
		log.Println("dropping cursor_state table...")
		return mghelper.DropTables(ctx, bdb, &db.CursorState{})
	})
}
