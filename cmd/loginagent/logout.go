package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of the agent",
	Long:  `Clear the tokens held by the running agent and return it to the signed-out state.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runLogout(ctx, os.Stdout, newAgentClient(getAgentURL(config.New())))
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(ctx context.Context, w io.Writer, client *agentClient) int {
	resp, err := client.Logout(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	if jsonOutput {
		fmt.Fprintln(w, formatStateJSON(resp))
		return 0
	}
	fmt.Fprintln(w, "Signed out")
	return 0
}
