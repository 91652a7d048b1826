package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	RootCmd.AddCommand(serveCmd)

	// address - the default address to bind to
	serveCmd.PersistentFlags().StringVarP(&address, "address", "a", ":8080",
		"the default address to bind to")
	Must(viper.BindPFlag("address", serveCmd.PersistentFlags().Lookup("address")))
	Must(viper.BindEnv("address", "ADDR"))
}

var address string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "entrypoint to serve a micro-service",
}
