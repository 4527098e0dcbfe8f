// Package cli implements the household command line client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/pedroasavelar91/nexus-familiar/internal/remote"
	"github.com/pedroasavelar91/nexus-familiar/internal/remote/httpstore"
	"github.com/pedroasavelar91/nexus-familiar/pkg/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	APIURL  string
	Token   string
	Format  string // "json" | "text"
	Verbose bool
	Timeout time.Duration
	// Pushgateway receives the sync metrics of each invocation when set.
	Pushgateway string

	jwt     config.JWTConfig
	redis   config.RedisConfig
	connect Connector
	now     func() time.Time
}

// Connector opens the row store commands run against.
type Connector func(ctx context.Context, opts *RootOptions) (remote.Store, error)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// HTTPConnector talks to the REST API named by --api.
func HTTPConnector(_ context.Context, opts *RootOptions) (remote.Store, error) {
	return httpstore.New(opts.APIURL, opts.Token, opts.Timeout)
}

// Execute runs the command line and returns the process exit code. Usage
// errors from cobra are printed here; command failures are printed by the
// command itself.
func Execute(args []string, stderr io.Writer) int {
	return execute(NewRootCommand(), args, stderr)
}

func execute(cmd *cobra.Command, args []string, stderr io.Writer) int {
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitCommandError
	}
	if !exitErr.reported {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitErr.Code
}

// NewRootCommand creates the root command backed by the REST API.
func NewRootCommand() *cobra.Command {
	return newRootCommand(HTTPConnector, time.Now)
}

func newRootCommand(connect Connector, now func() time.Time) *cobra.Command {
	opts := &RootOptions{connect: connect, now: now}
	defaults := config.ClientSettings{
		Client: config.ClientConfig{BaseURL: "http://localhost:8080", Timeout: 10 * time.Second},
	}
	if loaded, err := config.LoadClient(); err == nil {
		defaults = *loaded
	}
	opts.jwt = defaults.JWT
	opts.redis = defaults.Redis

	cmd := &cobra.Command{
		Use:           "household",
		Short:         "Family household organizer",
		Long:          "Manage a family's membership, tasks and shopping list against the household API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				err := NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
				return report(&OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr()}, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", defaults.Client.BaseURL, "household API base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", defaults.Client.Token, "bearer token (defaults to $NEXUS_TOKEN)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", defaults.Client.Timeout, "request timeout")
	cmd.PersistentFlags().StringVar(&opts.Pushgateway, "pushgateway", defaults.Client.PushgatewayURL, "prometheus pushgateway URL for sync metrics")

	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newFamilyCommand(opts))
	cmd.AddCommand(newRequestsCommand(opts))
	cmd.AddCommand(newMembersCommand(opts))
	cmd.AddCommand(newTasksCommand(opts))
	cmd.AddCommand(newShoppingCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}
