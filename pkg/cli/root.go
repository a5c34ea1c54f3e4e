package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"

	"github.com/residenciauni/residencia/pkg/client"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand(app *App) *Command {
	root := &Command{
		Name:        "residencia",
		Description: "ResidenciaUni - Gestión de la residencia universitaria",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("residencia", flag.ContinueOnError),
	}

	// Session
	root.Subcommands["login"] = newLoginCommand(app)
	root.Subcommands["logout"] = newLogoutCommand(app)
	root.Subcommands["whoami"] = newWhoamiCommand(app)
	root.Subcommands["register"] = newRegisterCommand(app)
	root.Subcommands["google-login"] = newGoogleLoginCommand(app)

	// Records
	root.Subcommands["news"] = newNewsCommand(app)
	root.Subcommands["assemblies"] = newAssembliesCommand(app)
	root.Subcommands["disciplinary"] = newDisciplinaryCommand(app)
	root.Subcommands["reports"] = newReportsCommand(app)

	// Overview
	root.Subcommands["dashboard"] = newDashboardCommand(app)
	root.Subcommands["search"] = newSearchCommand(app)
	root.Subcommands["watch"] = newWatchCommand(app)

	root.Run = func(args []string) error {
		return root.dispatch(app, args)
	}
	return root
}

// Execute runs the command with the arguments after the program name
func (c *Command) Execute(app *App, args []string) error {
	err := c.Run(args)
	if errors.Is(err, client.ErrSessionExpired) {
		// A rejected token is useless; the next command should ask for a login
		if clearErr := app.Sessions.Clear(context.Background()); clearErr != nil {
			app.Logger.WithError(clearErr).Warn("failed to clear expired session")
		}
		return fmt.Errorf("tu sesión expiró, inicia sesión nuevamente: %w", err)
	}
	return err
}

// dispatch runs the subcommand named by args[0]
func (c *Command) dispatch(app *App, args []string) error {
	if len(args) == 0 {
		return c.usage(app)
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return c.usage(app)
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage(app *App) error {
	fmt.Fprintf(app.Out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(app.Out, "Commands:\n")
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(app.Out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}

// newLeafCommand builds a command whose flags are defined by define. Every
// run parses into a fresh FlagSet so a Command can be executed repeatedly.
func newLeafCommand(app *App, name, description string, define func(fs *flag.FlagSet), run func(ctx context.Context, fs *flag.FlagSet) error) *Command {
	newFlags := func() *flag.FlagSet {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.SetOutput(app.Err)
		if define != nil {
			define(fs)
		}
		return fs
	}
	return &Command{
		Name:        name,
		Description: description,
		Flags:       newFlags(),
		Run: func(args []string) error {
			fs := newFlags()
			if err := fs.Parse(args); err != nil {
				if errors.Is(err, flag.ErrHelp) {
					return nil
				}
				return err
			}
			return run(app.Context(), fs)
		},
	}
}

// newGroupCommand builds a command that only dispatches to subcommands
func newGroupCommand(app *App, name, description string, subcommands ...*Command) *Command {
	cmd := &Command{
		Name:        name,
		Description: description,
		Subcommands: make(map[string]*Command, len(subcommands)),
		Flags:       flag.NewFlagSet(name, flag.ContinueOnError),
	}
	for _, sub := range subcommands {
		cmd.Subcommands[sub.Name] = sub
	}
	cmd.Run = func(args []string) error {
		return cmd.dispatch(app, args)
	}
	return cmd
}
