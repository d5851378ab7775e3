// Command platedctl runs administrative tasks against the Plated backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/plated-app/plated-api/internal/app"
	"github.com/plated-app/plated-api/internal/config"
	"github.com/plated-app/plated-api/internal/domain"
	"github.com/plated-app/plated-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/plated-app/plated-api/internal/infrastructure/jwt"
	"github.com/plated-app/plated-api/internal/pkg/validate"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "platedctl",
		Short:        "Plated backend administration",
		SilenceUsage: true,
	}
	cmd.AddCommand(bootstrapCmd(), createProfileCmd(), sweepCmd(), setStatusCmd(), resetCmd(), tokenCmd())
	return cmd
}

func bootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create DynamoDB tables and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			client, err := dynamo.NewClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			dynamo.Bootstrap(cmd.Context(), client, cfg.DynamoTables)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-expired",
		Short: "Disable unverified profiles past their deadline and send expiry warnings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			res, err := a.Verification.CheckExpired(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}
}

func setStatusCmd() *cobra.Command {
	var reviewer string
	cmd := &cobra.Command{
		Use:   "set-status <user-id> <status>",
		Short: "Review a verification (not_verified, pending, verified, rejected)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := domain.VerificationStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			a, err := app.New(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			if err := a.Verification.UpdateStatus(cmd.Context(), args[0], status, reviewer); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], status)
			return nil
		},
	}
	cmd.Flags().StringVar(&reviewer, "reviewer", "platedctl", "Reviewer id recorded on the profile")
	return cmd
}

func createProfileCmd() *cobra.Command {
	var req domain.CreateProfileRequest
	cmd := &cobra.Command{
		Use:   "create-profile <user-id>",
		Short: "Register a profile, e.g. to seed a local stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate.Struct(&req); err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			p, err := a.Profiles.Create(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created profile %s (%s, %s)\n", p.UserID, p.Username, p.LicensePlate)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.LicensePlate, "plate", "", "License plate")
	cmd.Flags().StringVar(&req.Email, "email", "", "E-mail address")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <user-id>",
		Short: "Clear a user's verification code, images and status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			return a.Verification.Reset(cmd.Context(), args[0])
		},
	}
}

func tokenCmd() *cobra.Command {
	var role, deviceID string
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := jwtinfra.NewProvider(config.Load())
			if err != nil {
				return err
			}
			token, err := p.Sign(args[0], deviceID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", domain.RoleUser, "Role claim (user or admin)")
	cmd.Flags().StringVar(&deviceID, "device", "", "Device id claim")
	return cmd
}
