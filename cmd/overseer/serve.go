package main

import (
	"github.com/spf13/cobra"

	"github.com/viant/overseer/runtime"
	"github.com/viant/overseer/service/callback"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve approval callbacks and the event stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := runtime.SignalContext(cmd.Context())
		defer stop()

		srv, err := openService(ctx, cmd)
		if err != nil {
			return err
		}
		defer srv.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = srv.Config().Approval.Listen
		}
		logger := newLogger(srv.Config().Log, cmd.ErrOrStderr())
		server := callback.New(srv.Gateway(), callback.Options{Addr: addr}, callback.WithLogger(logger))
		return server.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default approval.listen or "+callback.DefaultAddr+")")
	rootCmd.AddCommand(serveCmd)
}
