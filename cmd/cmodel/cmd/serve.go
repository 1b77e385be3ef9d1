package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abramin/cmodel/internal/server"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the indexed model over HTTP",
	Long: `Start a read-only JSON API over the index built by "cmodel index".

Endpoints cover files, type entities, diagnostics, the relationship graph
around an entity and its ownership/alias spine.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(server.Config{
			Port:   port,
			Dir:    outputDir(),
			Logger: logger,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}
