package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/config"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/output"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/session"
)

// openStore returns the configured session backend and its release func.
func openStore(ctx context.Context, cfg config.Config) (session.Store, func(), error) {
	switch strings.ToLower(cfg.Session.Backend) {
	case config.BackendValkey:
		vs, err := session.NewValkeyStore(ctx, session.ValkeyConfig{
			Address:   cfg.Session.Valkey.Address,
			Password:  cfg.Session.Valkey.Password,
			KeyPrefix: cfg.Session.Valkey.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return vs, vs.Close, nil
	default:
		return session.NewFileStore(cfg.Session.Path), func() {}, nil
	}
}

func newSessionsCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage saved analyses",
	}

	// withStore opens the configured backend around fn.
	withStore := func(cmd *cobra.Command, fn func(context.Context, session.Store) error) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		return fn(ctx, store)
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s session.Store) error {
				return listSessions(ctx, os.Stdout, s)
			})
		},
	}

	var showOutput string
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved analysis as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s session.Store) error {
				sess, err := s.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return output.WriteJSON(sess, showOutput)
			})
		},
	}
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "-", "Output file path (- for stdout)")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s session.Store) error {
				return s.Delete(ctx, args[0])
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, s session.Store) error {
				return s.Clear(ctx)
			})
		},
	}

	cmd.AddCommand(listCmd, showCmd, deleteCmd, clearCmd)
	return cmd
}

// listSessions prints one line per session.
func listSessions(ctx context.Context, w io.Writer, s session.Store) error {
	sessions, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No saved sessions.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSAVED\tHEALTH")
	for _, sess := range sessions {
		health := "-"
		if sess.Result != nil {
			health = fmt.Sprintf("%d/100", sess.Result.HealthScore)
		}
		saved := time.UnixMilli(sess.Timestamp).Format("2006-01-02 15:04:05")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sess.ID, sess.Name, saved, health)
	}
	return tw.Flush()
}
