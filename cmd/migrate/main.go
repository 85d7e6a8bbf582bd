package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"groupgate.org/internal/config"
	"groupgate.org/internal/migrate"
	"groupgate.org/internal/obs"
	"groupgate.org/internal/store/pg"
)

func main() {
	var (
		dsn            = pflag.String("dsn", os.Getenv("GROUPGATE_PG_DSN"), "PostgreSQL DSN")
		migrationsPath = pflag.String("migrations", "", "directory of SQL migrations (default: compiled-in schema)")
		seedsPath      = pflag.String("seeds", "", "directory of SQL seeds")
		timeout        = pflag.Duration("timeout", 30*time.Second, "overall deadline")
		logLevel       = pflag.String("log-level", "info", "log level")
	)
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [flags] up|down|seed|status")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	log, err := obs.NewLogger(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if *dsn == "" {
		if cfg, err := config.Load(""); err == nil {
			*dsn = cfg.Database.DSN
		}
	}
	if *dsn == "" {
		log.Fatal("missing DSN: provide via --dsn or GROUPGATE_PG_DSN")
	}
	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := pg.Open(*dsn)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer st.Close()

	var migrations fs.FS
	if *migrationsPath != "" {
		migrations = os.DirFS(*migrationsPath)
	}
	var opts []migrate.Option
	if *seedsPath != "" {
		opts = append(opts, migrate.WithSeeds(os.DirFS(*seedsPath)))
	}
	mgr := migrate.NewManager(st.DB(), migrations, opts...)

	cmd := pflag.Arg(0)
	switch cmd {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatal("unknown command", zap.String("command", cmd))
	}
	if err != nil {
		log.Fatal("migrate failed", zap.String("command", cmd), zap.Error(err))
	}
	log.Info("migrate done", zap.String("command", cmd))
}
