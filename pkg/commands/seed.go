package commands

import (
	"fmt"
	"os"

	"medsoc-cms/pkg/database"

	"github.com/spf13/cobra"
)

var (
	seedEmail    string
	seedName     string
	seedPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Provision an admin account",
	Long: `Creates an active admin user. The password may be passed with --password
or through the ADMIN_PASSWORD environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedPassword == "" {
			seedPassword = os.Getenv("ADMIN_PASSWORD")
		}
		if seedEmail == "" || seedPassword == "" {
			return fmt.Errorf("--email and --password (or ADMIN_PASSWORD) are required")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := database.Migrate(a.db); err != nil {
			return err
		}
		u, err := a.auth.Provision(cmd.Context(), seedEmail, seedName, seedPassword)
		if err != nil {
			printError("Could not create admin: %v", err)
			return err
		}
		printSuccess("Admin %s created", u.Email)
		printMuted("id: %s", u.ID)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedEmail, "email", "", "Admin email")
	seedCmd.Flags().StringVar(&seedName, "name", "Administrator", "Display name")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "Admin password (at least 8 characters)")
	rootCmd.AddCommand(seedCmd)
}
