package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"analyzeit/internal/identity"
	"analyzeit/internal/shared/auth"
	"analyzeit/internal/shared/config"
	"analyzeit/internal/shared/storage/db"
	"analyzeit/internal/users"
)

func newUsersCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage dashboard accounts",
	}
	cmd.AddCommand(
		newUsersCreateCmd(v),
		newUsersDisableCmd(v),
	)
	return cmd
}

func newUsersCreateCmd(v *viper.Viper) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an email/password account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(v)
			repo, closeDB, err := openUsers(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Env)
			if err != nil {
				return err
			}
			svc := identity.New(identity.Config{Users: repo, Signer: signer, PublicURL: cfg.PublicURL})
			cred, err := svc.Register(cmd.Context(), email, password, name)
			if err != nil {
				return fmt.Errorf("%s: %w", identity.Message(err), err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", cred.User.ID, cred.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "initial password")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUsersDisableCmd(v *viper.Viper) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Disable an account and revoke its tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(v)
			repo, closeDB, err := openUsers(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			u, err := disableUser(cmd.Context(), repo, email, time.Now())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "disabled\t%s\t%s\n", u.ID, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// disableUser blocks sign-in and invalidates every token issued so far.
func disableUser(ctx context.Context, repo users.Repo, email string, now time.Time) (users.User, error) {
	u, err := repo.GetByEmail(ctx, users.NormalizeEmail(email))
	if err != nil {
		return users.User{}, fmt.Errorf("find %s: %w", email, err)
	}
	u.Disabled = true
	u.TokensValidAfter = now.UTC().Truncate(time.Second)
	u.UpdatedAt = now.UTC()
	if err := repo.Update(ctx, u); err != nil {
		return users.User{}, fmt.Errorf("update %s: %w", email, err)
	}
	return u, nil
}

func openUsers(ctx context.Context, cfg config.Config) (users.Repo, func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil, errors.New("DATABASE_URL is required")
	}
	conn, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		return nil, nil, err
	}
	return &users.PGRepo{DB: conn}, func() { _ = conn.Close() }, nil
}
