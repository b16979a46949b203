package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/bootstrap"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up                apply every pending migration
  down              roll back the latest migration
  status            print applied and pending migrations
  to <version>      move the schema to YYYYMMDDHHMMSS
  create <name>     write an empty migration into -dir
  validate          check filenames and goose markers
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the compiled-in set")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	cfg, logg, err := bootstrap.Load("migrate")
	if err != nil {
		logg.Error(context.Background(), "migrate.config_invalid", err)
		os.Exit(1)
	}
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": command})

	if err := run(ctx, cfg, logg, *dir, command, args); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate.done")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, dir, command string, args []string) error {
	switch command {
	case "create":
		if len(args) == 0 {
			return fmt.Errorf("create needs a migration name")
		}
		target := dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "validate":
		if dir != "" {
			return migrate.ValidateDir(dir)
		}
		return migrate.ValidateEmbedded()
	}

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	migrator, err := migrate.New(sqlDB, migrate.WithDir(dir))
	if err != nil {
		return err
	}

	switch command {
	case "up", "down", "status":
		return migrator.Run(ctx, command)
	case "to":
		if len(args) == 0 {
			return fmt.Errorf("to needs a target version")
		}
		return migrator.To(ctx, args[0])
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
