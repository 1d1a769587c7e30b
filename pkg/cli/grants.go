package cli

import (
	"context"
	"fmt"

	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/rbac"
)

func newGrantCommand() *Command {
	return &Command{
		Name:        "grant",
		Description: "Give a user a site-wide capability",
		Run:         runGrant,
	}
}

func runGrant(ctx context.Context, env *Env, args []string) error {
	return changeGrant(ctx, env, "grant", args, func(store *rbac.Store, userID int64, c rbac.Capability) error {
		return store.GrantUser(ctx, userID, c)
	})
}

func newRevokeCommand() *Command {
	return &Command{
		Name:        "revoke",
		Description: "Take a site-wide capability from a user",
		Run:         runRevoke,
	}
}

func runRevoke(ctx context.Context, env *Env, args []string) error {
	return changeGrant(ctx, env, "revoke", args, func(store *rbac.Store, userID int64, c rbac.Capability) error {
		return store.RevokeUser(ctx, userID, c)
	})
}

func changeGrant(ctx context.Context, env *Env, name string, args []string, apply func(*rbac.Store, int64, rbac.Capability) error) error {
	fs := newFlagSet(name, env.Out)
	username := fs.String("username", "", "Username")
	capability := fs.String("capability", "", "Capability, e.g. add_meetup_location")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c := rbac.Capability(*capability)
	if !c.IsModelLevel() {
		return fmt.Errorf("capability %q is not site-wide", *capability)
	}

	user, err := auth.NewStore(env.DB).GetUserByUsername(ctx, *username)
	if err != nil {
		return err
	}

	store := rbac.NewStore(env.DB)
	if err := apply(store, user.ID, c); err != nil {
		return err
	}

	if env.Invalidations != nil {
		if err := env.Invalidations.Publish(ctx, user.ID); err != nil {
			return err
		}
	}

	grants, err := store.UserGrants(ctx, user.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "%s now holds %v\n", user.Username, grants)
	return nil
}

func newReconcileCommand() *Command {
	return &Command{
		Name:        "reconcile",
		Description: "Re-provision every location's role groups",
		Run:         runReconcile,
	}
}

func runReconcile(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("reconcile", env.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	table := rbac.DefaultPermissionTable()
	if env.PermissionTablePath != "" {
		loaded, err := rbac.LoadPermissionTable(env.PermissionTablePath)
		if err != nil {
			return err
		}
		table = loaded
	}

	n, err := rbac.NewProvisioner(table).Reconcile(ctx, env.DB)
	if err != nil {
		return err
	}
	if env.Invalidations != nil {
		if err := env.Invalidations.PublishAll(ctx); err != nil {
			return err
		}
	}
	fmt.Fprintf(env.Out, "Reconciled %d location(s)\n", n)
	return nil
}
