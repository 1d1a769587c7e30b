package cli

import (
	"context"
	"fmt"

	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/storage"
)

func newMigrateCommand() *Command {
	return &Command{
		Name:        "migrate",
		Description: "Apply database migrations",
		Run:         runMigrate,
	}
}

func runMigrate(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("migrate", env.Out)
	down := fs.Bool("down", false, "Roll back every migration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *down {
		if err := storage.MigrateDown(env.DB, env.Driver); err != nil {
			return err
		}
		fmt.Fprintln(env.Out, "Rolled back all migrations")
		return nil
	}

	version, err := storage.Migrate(env.DB, env.Driver)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Schema at version %d\n", version)
	return nil
}

func newCreateUserCommand() *Command {
	return &Command{
		Name:        "create-user",
		Description: "Create a user",
		Run:         runCreateUser,
	}
}

func runCreateUser(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("create-user", env.Out)
	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Email address")
	fullName := fs.String("name", "", "Full name")
	superuser := fs.Bool("superuser", false, "Grant every capability")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user := &auth.User{
		Username:    *username,
		Email:       *email,
		FullName:    *fullName,
		IsSuperuser: *superuser,
		IsActive:    true,
	}
	if err := auth.NewStore(env.DB).CreateUser(ctx, user); err != nil {
		return err
	}

	fmt.Fprintf(env.Out, "Created user %s (id %d)\n", user.Username, user.ID)
	return nil
}

func newSuperuserCommand() *Command {
	return &Command{
		Name:        "superuser",
		Description: "Set or clear a user's superuser flag",
		Run:         runSuperuser,
	}
}

func runSuperuser(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("superuser", env.Out)
	username := fs.String("username", "", "Username")
	off := fs.Bool("off", false, "Clear the flag instead of setting it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := auth.NewStore(env.DB)
	user, err := store.GetUserByUsername(ctx, *username)
	if err != nil {
		return err
	}
	if err := store.SetSuperuser(ctx, user.ID, !*off); err != nil {
		return err
	}

	fmt.Fprintf(env.Out, "Superuser for %s: %t\n", user.Username, !*off)
	return nil
}

func newActivateCommand() *Command {
	return &Command{
		Name:        "activate",
		Description: "Activate or deactivate a user",
		Run:         runActivate,
	}
}

func runActivate(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("activate", env.Out)
	username := fs.String("username", "", "Username")
	off := fs.Bool("off", false, "Deactivate the user")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := auth.NewStore(env.DB)
	user, err := store.GetUserByUsername(ctx, *username)
	if err != nil {
		return err
	}
	if err := store.SetActive(ctx, user.ID, !*off); err != nil {
		return err
	}

	fmt.Fprintf(env.Out, "Active for %s: %t\n", user.Username, !*off)
	return nil
}
