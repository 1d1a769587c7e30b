// Command meetup-admin manages users, tokens and grants.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/platinummonkey/meetup/pkg/cli"
	"github.com/platinummonkey/meetup/pkg/config"
	"github.com/platinummonkey/meetup/pkg/rbac"
	"github.com/platinummonkey/meetup/pkg/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	env := &cli.Env{
		DB:                  db,
		Driver:              cfg.Database.Driver,
		Out:                 os.Stdout,
		PermissionTablePath: cfg.RBAC.PermissionTablePath,
	}
	if cfg.Redis.Enabled() {
		redisClient, err := storage.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		env.Invalidations = rbac.NewRedisInvalidationBus(redisClient, cfg.RBAC.InvalidationChannel)
	}

	return cli.NewRootCommand().Execute(context.Background(), env, args)
}
