package main

import (
	"collection-route-service/internal/adapters/cache"
	"collection-route-service/internal/app"
	"collection-route-service/internal/config"
	"collection-route-service/internal/matrix"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

const usage = `usage: cachetool [-config dir] <command>

commands:
  init                 create the SQL matrix cache schema
  stats                print cached pair counts
  purge [-profile p]   delete cached pairs, optionally for one provider profile`

func main() {
	configDir := flag.String("config", "", "directory holding config.yaml and .env")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "init":
		err = initSchema(ctx, cfg)
	case "stats":
		err = stats(ctx, cfg)
	case "purge":
		err = purge(ctx, cfg, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func initSchema(ctx context.Context, cfg *config.Config) error {
	log.Println("Initializing matrix cache schema...")
	conn, dialect, err := app.OpenSQL(ctx, cfg)
	if err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	defer conn.Close()
	log.Printf("Schema ready. dialect=%s", dialect)
	return nil
}

func stats(ctx context.Context, cfg *config.Config) error {
	switch strings.ToLower(cfg.MatrixCache) {
	case "sqlite", "postgres":
		conn, _, err := app.OpenSQL(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		s, err := cache.ReadStats(ctx, conn)
		if err != nil {
			return err
		}
		fmt.Printf("backend=%s entries=%d profiles=%d\n", cfg.MatrixCache, s.Entries, s.Profiles)
		return nil
	}

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}
	c, err := matrix.LoadCache(ctx, store)
	if err != nil {
		return err
	}
	fmt.Printf("backend=%s entries=%d discarded=%t\n", cfg.MatrixCache, c.Len(), c.Discarded())
	return nil
}

func purge(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	profile := fs.String("profile", "", "provider profile such as osrm/driving; empty purges everything")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch strings.ToLower(cfg.MatrixCache) {
	case "sqlite", "postgres":
	case "file":
		if *profile != "" {
			return fmt.Errorf("purge: the file cache cannot be purged by profile")
		}
		if err := os.Remove(cfg.MatrixCachePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("purge: %w", err)
		}
		log.Printf("Purged %s", cfg.MatrixCachePath)
		return nil
	default:
		return fmt.Errorf("purge: not supported for MATRIX_CACHE=%s", cfg.MatrixCache)
	}

	conn, dialect, err := app.OpenSQL(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	n, err := cache.Purge(ctx, conn, dialect, *profile)
	if err != nil {
		return err
	}
	log.Printf("Purged %d cached pairs", n)
	return nil
}
