package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/billing"
)

// TokenGranter credits AI tokens to a team.
type TokenGranter interface {
	Grant(ctx context.Context, teamID uuid.UUID, amount int, note string, actor *uuid.UUID) (*billing.TokenBalance, error)
}

func newTokensCmd(a *app) *cobra.Command {
	tokens := &cobra.Command{
		Use:   "tokens",
		Short: "Manage team AI token balances",
	}

	var teamID, reason string
	var amount int
	grant := &cobra.Command{
		Use:   "grant",
		Short: "Credit AI tokens to a team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(teamID)
			if err != nil {
				return fmt.Errorf("invalid --team %q: must be a UUID", teamID)
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}
			return grantTokens(ctx, cmd.OutOrStdout(), svc.billing, id, amount, reason)
		},
	}
	grant.Flags().StringVar(&teamID, "team", "", "Team ID")
	grant.Flags().IntVar(&amount, "amount", 0, "Number of tokens to credit")
	grant.Flags().StringVar(&reason, "reason", "", "Note stored with the ledger entry")
	_ = grant.MarkFlagRequired("team")
	_ = grant.MarkFlagRequired("amount")
	_ = grant.MarkFlagRequired("reason")

	tokens.AddCommand(grant)
	return tokens
}

func grantTokens(ctx context.Context, out io.Writer, granter TokenGranter, teamID uuid.UUID, amount int, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return errors.New("--reason must not be blank")
	}

	b, err := granter.Grant(ctx, teamID, amount, reason, nil)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidAmount):
			return fmt.Errorf("--amount must be positive, got %d", amount)
		case errors.Is(err, billing.ErrSubscriptionNotFound):
			return fmt.Errorf("team %s has no subscription", teamID)
		}
		return err
	}
	fmt.Fprintf(out, "granted %d tokens to team %s, balance is now %d\n", amount, teamID, b.Balance)
	return nil
}
