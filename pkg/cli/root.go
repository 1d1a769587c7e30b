package cli

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"sort"

	"github.com/platinummonkey/meetup/pkg/rbac"
)

// Env is what a command runs against
type Env struct {
	DB     *sql.DB
	Driver string
	Out    io.Writer

	// PermissionTablePath replaces the built-in role table when set
	PermissionTablePath string

	// Invalidations reaches the guard caches of running servers. Nil when
	// Redis is not configured, in which case servers do not cache.
	Invalidations rbac.InvalidationBus
}

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env, args []string) error
	Subcommands map[string]*Command
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "meetup-admin",
		Description: "Meetup - location administration CLI",
		Subcommands: make(map[string]*Command),
	}

	for _, cmd := range []*Command{
		newMigrateCommand(),
		newCreateUserCommand(),
		newSuperuserCommand(),
		newActivateCommand(),
		newIssueTokenCommand(),
		newListTokensCommand(),
		newRevokeTokenCommand(),
		newGrantCommand(),
		newRevokeCommand(),
		newReconcileCommand(),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, env *Env, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return c.usage(env.Out)
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(ctx, env, args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(w io.Writer) error {
	fmt.Fprintf(w, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(w, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}
