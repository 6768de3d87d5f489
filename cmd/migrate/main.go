package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/trendlens/trendlens-api/pkg/config"
	"github.com/trendlens/trendlens-api/pkg/db"
	"github.com/trendlens/trendlens-api/pkg/logger"
	"github.com/trendlens/trendlens-api/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory (empty runs the embedded set; create/validate default to "+migrate.DefaultDir+")")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	var err error
	switch opts.cmd {
	case "create":
		err = create(opts)
	case "validate":
		err = validate(opts)
	default:
		err = apply(opts)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// create and validate touch files only and need no config.
func create(opts options) error {
	if opts.name == "" {
		return errors.New("missing -name for create")
	}
	path, err := migrate.CreateSQLMigration(diskDir(opts.dir), opts.name)
	if err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	fmt.Println("created migration:", path)
	return nil
}

func validate(opts options) error {
	err := migrate.ValidateDir(diskDir(opts.dir))
	if err == nil {
		fmt.Println("migration validation passed")
		return nil
	}
	problems := multierr.Errors(err)
	for _, p := range problems {
		fmt.Fprintln(os.Stderr, " -", p)
	}
	return fmt.Errorf("migration validation failed with %d problem(s)", len(problems))
}

func apply(opts options) error {
	switch opts.cmd {
	case "up", "down", "status":
	case "version":
		if opts.version == "" {
			return errors.New("missing -version for version command")
		}
	default:
		return fmt.Errorf("unknown -cmd value: %s", opts.cmd)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": opts.cmd,
		"dir": opts.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		return err
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		return err
	}

	if opts.cmd == "version" {
		err = migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	} else {
		err = migrate.Run(ctx, sqlDB, opts.dir, opts.cmd)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(ctx, "migration complete")
	return nil
}

func diskDir(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}
