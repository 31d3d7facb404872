package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewLoginCommand получает токен сессии для игрока и сохраняет его локально
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login [user-id]",
		Short: "Obtain a server session for a player",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var userID string
			if len(args) == 1 {
				userID = args[0]
			}
			return runLogin(cmd.Context(), opts, userID)
		},
	}
}

func runLogin(ctx context.Context, opts *RootOptions, userID string) (err error) {
	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close(ctx)) }()

	if userID == "" {
		userID, err = a.io.ReadInput("User ID: ")
		if err != nil {
			return fmt.Errorf("failed to read user id: %w", err)
		}
	}

	session, err := a.auth.Login(ctx, userID)
	if err != nil {
		return err
	}

	a.io.Printf("Logged in as %s\n", session.UserID)
	a.io.Printf("Session expires at %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
	return nil
}

// NewLogoutCommand удаляет сохраненную сессию.
// Очередь и снапшот игрока остаются в локальной БД.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved server session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := openApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.Close(ctx)) }()

			if err := a.auth.Logout(ctx); err != nil {
				return err
			}
			a.io.Println("Logged out")
			return nil
		},
	}
}
