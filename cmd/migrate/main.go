// Command migrate applies the embedded schema: migrate [up|down|status].
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"go-hris-leave/internal/bootstrap"
	"go-hris-leave/internal/config"
	"go-hris-leave/internal/shared/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := bootstrap.NewLogger(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("open database failed", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, db, command); err != nil {
		logger.Fatal("migrate failed", zap.String("command", command), zap.Error(err))
	}
}

func run(ctx context.Context, db *sql.DB, command string) error {
	switch command {
	case "up":
		return migrations.Up(ctx, db)
	case "down":
		return migrations.Down(ctx, db)
	case "status":
		states, err := migrations.List(ctx, db)
		if err != nil {
			return err
		}
		for _, s := range states {
			applied := "pending"
			if s.Applied {
				applied = "applied"
			}
			fmt.Printf("%05d  %-8s %s\n", s.Version, applied, s.Path)
		}
		return nil
	default:
		return fmt.Errorf("unknown command %q (want up, down or status)", command)
	}
}
