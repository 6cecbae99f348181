package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cfgFile is the optional YAML config path shared by serve and check-token.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "portico",
	Short:         "Authenticated JSON API for company projects",
	Long:          "Portico serves the projects a company's admins may see. Callers log in with email and password, receive a signed session token and present it as a bearer token.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file; environment variables and .env apply either way")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "portico: %v\n", err)
		os.Exit(1)
	}
}
