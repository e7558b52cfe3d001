package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deegrab/deegrab/internal/app"
)

var (
	authCmd = &cobra.Command{
		Use:   "auth",
		Short: "Authentication management commands",
		Long: `Manage authentication for Deezer.

Use 'auth login' to log in via browser and automatically extract your arl cookie.`,
	}

	authLoginCmd = &cobra.Command{
		Use:   "login",
		Short: "Login to Deezer and extract the arl cookie",
		Long: `Opens a browser window for you to log in to Deezer.

The login process:
1. Browser opens at https://www.deezer.com/login
2. Accept cookies if prompted
3. Log in with your email and password, or a social login provider
4. Complete any captcha or two-factor prompt
5. Wait for authentication to complete

After successful login, the arl cookie will be automatically extracted
from the browser session and saved to the configuration file.

You can then use it to download music:
deegrab https://www.deezer.com/album/302127`,
		PersistentPreRun: initConfig,
		Run: func(cmd *cobra.Command, args []string) {
			app.ExecuteAuthLoginCommand(cmd.Context(), appConfig)
		},
	}
)

//nolint:gochecknoinits // Cobra requires the init function to set up commands.
func init() {
	// Add login subcommand to auth command.
	authCmd.AddCommand(authLoginCmd)

	// Add auth command to root command.
	rootCmd.AddCommand(authCmd)
}
