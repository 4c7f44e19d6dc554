package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/huddlehq/huddle/internal/auth"
)

var readPasswordFunc = term.ReadPassword // mockable

const minPasswordLen = 8

// AdminCreator creates platform admin accounts.
type AdminCreator interface {
	CreatePlatformAdmin(ctx context.Context, email, name, password string) (*auth.User, error)
}

func newCreateAdminCmd(a *app) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a platform admin account",
		Long: `Create a platform admin account. The password is read from the
terminal without echo and must be entered twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := promptPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, cancel := a.commandContext(cmd)
			defer cancel()
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}
			return createAdmin(ctx, cmd.OutOrStdout(), svc.auth, email, name, password)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&name, "name", "", "Admin display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// promptPassword reads a password and its confirmation from the terminal.
func promptPassword(prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	first, err := readPasswordFunc(stdinFd())
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(prompt, "Confirm password: ")
	second, err := readPasswordFunc(stdinFd())
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func createAdmin(ctx context.Context, out io.Writer, creator AdminCreator, email, name, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email %q", email)
	}
	if name == "" {
		return errors.New("name must not be blank")
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}

	u, err := creator.CreatePlatformAdmin(ctx, email, name, password)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			return fmt.Errorf("a user with email %s already exists", email)
		}
		return err
	}
	fmt.Fprintf(out, "created platform admin %s (%s)\n", u.Email, u.ID)
	return nil
}
