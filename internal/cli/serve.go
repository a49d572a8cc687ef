package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nika0000/publisher-cli/internal/config"
	"github.com/Nika0000/publisher-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the update API and stored artifacts over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		app := server.New(svc)
		return app.Listen(fmt.Sprintf(":%d", servePort))
	},
}

// loadConfigOnly is for commands that need configuration but no store.
func loadConfigOnly() error {
	return config.Load()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "listen port")
}
