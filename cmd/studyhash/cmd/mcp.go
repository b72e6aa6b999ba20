package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	mcpadapter "github.com/conorfennell/studyhash/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve study tools to an MCP client over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUser()
		if err != nil {
			return err
		}
		svc, err := newService()
		if err != nil {
			return err
		}
		return server.ServeStdio(mcpadapter.NewServer(svc, user, version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
