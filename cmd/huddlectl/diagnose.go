package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var errChecksFailed = errors.New("one or more checks failed")

// Diagnostics is what `huddlectl diagnose` inspects.
type Diagnostics interface {
	Ping(ctx context.Context) error
	TableCounts(ctx context.Context) (map[string]int64, error)
}

// SubscriptionCounter counts subscriptions per status.
type SubscriptionCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// BucketChecker verifies the film bucket.
type BucketChecker interface {
	Ping(ctx context.Context) error
}

func newDiagnoseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Check database and storage connectivity and print row counts",
		Long: `Ping the database and, when configured, the storage bucket, then print
row counts per table and subscriptions by status. Exits non-zero when any
check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			svc, err := a.services(ctx)
			if err != nil {
				fmt.Fprintf(out, "database\tFAIL\t%v\n", err)
				return errChecksFailed
			}

			var bucket BucketChecker
			store, err := a.store()
			if err != nil {
				return err
			}
			if store != nil {
				bucket = store
			}
			return diagnose(ctx, out, svc.db, svc.billing, bucket)
		},
	}
}

// diagnose prints one line per check. bucket is nil when storage is not configured.
func diagnose(ctx context.Context, out io.Writer, db Diagnostics, subs SubscriptionCounter, bucket BucketChecker) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	failed := false

	check := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Fprintf(w, "%s\tFAIL\t%v\n", name, err)
			return
		}
		fmt.Fprintf(w, "%s\tOK\t\n", name)
	}

	dbErr := db.Ping(ctx)
	check("database", dbErr)
	if bucket == nil {
		fmt.Fprintf(w, "storage\tSKIP\tnot configured\n")
	} else {
		check("storage", bucket.Ping(ctx))
	}

	if dbErr == nil {
		counts, err := db.TableCounts(ctx)
		check("table counts", err)
		for _, name := range sortedKeys(counts) {
			fmt.Fprintf(w, "  %s\t%d\t\n", name, counts[name])
		}

		byStatus, err := subs.CountByStatus(ctx)
		check("subscriptions", err)
		for _, status := range sortedKeys(byStatus) {
			fmt.Fprintf(w, "  %s\t%d\t\n", status, byStatus[status])
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	if failed {
		return errChecksFailed
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
