package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	ember "github.com/emberdb/goember"
	"github.com/spf13/cobra"
)

// connectOptions are the persistent flags shared by every command.
type connectOptions struct {
	dsn     string
	tracing string
	params  map[string]string
}

func (o *connectOptions) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.dsn, "dsn", os.Getenv("EMBER_DSN"),
		"connection string; connections.toml is used when empty")
	cmd.PersistentFlags().StringVar(&o.tracing, "tracing", "", "log level (trace, debug, info, warn, error, off)")
	cmd.PersistentFlags().StringToStringVar(&o.params, "set", nil, "session property, repeatable (key=value)")
}

func (o *connectOptions) connect(ctx context.Context) (*ember.Connection, error) {
	var (
		cfg *ember.Config
		err error
	)
	if o.dsn != "" {
		cfg, err = ember.ParseDSN(o.dsn)
	} else {
		cfg, err = ember.LoadConnectionConfig()
	}
	if err != nil {
		return nil, err
	}
	if o.tracing != "" {
		cfg.Tracing = o.tracing
	}
	for k, v := range o.params {
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[strings.ToLower(k)] = v
	}
	return ember.Connect(ctx, cfg)
}

// newQueryCommand runs a batch and prints every result.
func newQueryCommand(opts *connectOptions) *cobra.Command {
	var (
		file string
		args []string
	)
	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a batch and print its results",
		Long: `Run a batch of semicolon separated statements. Each row producing
statement is printed as a table. Markers (?) are bound in order to the
values given with --arg. Interrupting the command cancels the batch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			sql, err := readSQL(positional, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runQuery(cmd.Context(), opts, cmd.OutOrStdout(), sql, args)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the batch from a file")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "marker value, repeatable")
	return cmd
}

func runQuery(ctx context.Context, opts *connectOptions, out io.Writer, sql string, args []string) error {
	conn, err := opts.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	stmt, err := conn.NewStatement()
	if err != nil {
		return err
	}
	defer stmt.Close()

	values := make([]any, len(args))
	for i, a := range args {
		values[i] = a
	}
	chain, err := stmt.ExecuteValues(ctx, sql, values...)
	if chain != nil {
		defer chain.Close()
		if perr := printChain(out, chain); perr != nil && err == nil {
			err = perr
		}
	}
	if ember.IsCancellation(err) {
		fmt.Fprintln(out, "cancelled")
	}
	return err
}

func printChain(out io.Writer, chain *ember.ResultChain) error {
	for node := chain.Head(); node != nil; node = node.Next() {
		st := node.Statement
		switch {
		case node.Cursor != nil:
			if err := printCursor(out, node.Cursor); err != nil {
				return err
			}
		case st.Kind == ember.StatementParamSetting:
			fmt.Fprintf(out, "SET %v = %v\n", st.Key, st.Value)
		default:
			fmt.Fprintf(out, "OK (%v)\n", st.Label)
		}
	}
	return nil
}

func readSQL(positional []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file != "":
		b, err := os.ReadFile(file)
		return string(b), err
	case len(positional) == 1:
		return positional[0], nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", fmt.Errorf("no SQL given")
	}
	return string(b), nil
}

// newSubmitCommand submits one statement asynchronously and prints its label.
func newSubmitCommand(opts *connectOptions) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "submit <sql>",
		Short: "Submit a statement without waiting for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			ctx := cmd.Context()
			conn, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			stmt, err := conn.NewStatement()
			if err != nil {
				return err
			}
			defer stmt.Close()
			label, err := stmt.ExecuteAsync(ctx, positional[0], nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), label)
			if !wait {
				return nil
			}
			status, err := conn.WaitForQuery(ctx, label)
			if err != nil {
				if _, aerr := conn.Abort(context.WithoutCancel(ctx), label); aerr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed to abort %v: %v\n", label, aerr)
				}
				return err
			}
			return printStatus(cmd.OutOrStdout(), status)
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "poll until the statement finishes")
	return cmd
}

func newStatusCommand(opts *connectOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <label>",
		Short: "Show the status of a submitted statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			ctx := cmd.Context()
			conn, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			status, err := conn.QueryStatus(ctx, positional[0])
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), status)
		},
	}
}

func newAbortCommand(opts *connectOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abort <label>",
		Short: "Cancel a running statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			ctx := cmd.Context()
			conn, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			aborted, err := conn.Abort(ctx, positional[0])
			if err != nil {
				return err
			}
			if aborted {
				fmt.Fprintf(cmd.OutOrStdout(), "aborted %v\n", positional[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%v is not running\n", positional[0])
			}
			return nil
		},
	}
}
