package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/outcome"
)

func newIssueTokenCommand() *Command {
	return &Command{
		Name:        "issue-token",
		Description: "Issue an API token for a user",
		Run:         runIssueToken,
	}
}

func runIssueToken(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("issue-token", env.Out)
	username := fs.String("username", "", "Username")
	name := fs.String("name", "cli", "Token name")
	expiresIn := fs.Duration("expires-in", 0, "Lifetime, 0 for no expiry")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expiresIn < 0 {
		return fmt.Errorf("expires-in must not be negative")
	}

	user, err := auth.NewStore(env.DB).GetUserByUsername(ctx, *username)
	if err != nil {
		return err
	}

	var expiresAt *time.Time
	if *expiresIn > 0 {
		at := time.Now().UTC().Add(*expiresIn)
		expiresAt = &at
	}

	token, plaintext, err := auth.NewTokenManager(auth.NewStore(env.DB)).CreateToken(ctx, user.ID, *name, expiresAt)
	if err != nil {
		return err
	}

	fmt.Fprintf(env.Out, "Token %d for %s (shown once):\n%s\n", token.ID, user.Username, plaintext)
	return nil
}

func newListTokensCommand() *Command {
	return &Command{
		Name:        "list-tokens",
		Description: "List a user's API tokens",
		Run:         runListTokens,
	}
}

func runListTokens(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("list-tokens", env.Out)
	username := fs.String("username", "", "Username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := auth.NewStore(env.DB)
	user, err := store.GetUserByUsername(ctx, *username)
	if err != nil {
		return err
	}
	tokens, err := store.ListUserTokens(ctx, user.ID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tEXPIRES\tSTATUS")
	now := time.Now().UTC()
	for _, t := range tokens {
		expires := "never"
		if t.ExpiresAt != nil {
			expires = t.ExpiresAt.Format(time.RFC3339)
		}
		status := "active"
		switch {
		case t.IsRevoked():
			status = "revoked"
		case t.IsExpired(now):
			status = "expired"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.TokenPrefix, expires, status)
	}
	return tw.Flush()
}

func newRevokeTokenCommand() *Command {
	return &Command{
		Name:        "revoke-token",
		Description: "Revoke an API token by id",
		Run:         runRevokeToken,
	}
}

func runRevokeToken(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("revoke-token", env.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: revoke-token <id>")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return outcome.NotFound("token", fs.Arg(0))
	}

	if err := auth.NewTokenManager(auth.NewStore(env.DB)).RevokeToken(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Revoked token %d\n", id)
	return nil
}
