package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/windflowlabs/windflow/pkg/auth"
	"github.com/windflowlabs/windflow/pkg/storage"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token for the first active superuser",
	Long: `Mint a signed JWT for the first active superuser in the database.
Use it as --token for the deployment commands or in WINDFLOW_TOKEN.

The signing secret must match the running server's.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		jwtSecret, _ := cmd.Flags().GetString("jwt-secret")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		_ = godotenv.Load()
		if jwtSecret == "" {
			jwtSecret = os.Getenv("WINDFLOW_JWT_SECRET")
		}
		if jwtSecret == "" {
			return fmt.Errorf("no JWT secret: set --jwt-secret or WINDFLOW_JWT_SECRET")
		}

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}
		defer store.Close()

		user, err := store.GetFirstActiveSuperuser()
		if err != nil {
			return fmt.Errorf("no active superuser found: %v", err)
		}
		token, err := auth.SignToken([]byte(jwtSecret), user, ttl)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("data-dir", "/var/lib/windflow", "Directory of the bolt database")
	tokenCmd.Flags().String("jwt-secret", "", "JWT signing secret (or WINDFLOW_JWT_SECRET)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
}
