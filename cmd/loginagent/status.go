package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/server"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the agent's session",
	Long:  `Display whether a user is signed in with the running agent. Exits 1 when nobody is signed in.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runStatus(ctx, os.Stdout, newAgentClient(getAgentURL(config.New())))
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// runStatus prints the session and returns the exit code
func runStatus(ctx context.Context, w io.Writer, client *agentClient) int {
	resp, err := client.State(ctx)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		fmt.Fprintln(w, formatStateJSON(resp))
	} else {
		fmt.Fprintln(w, formatStateHuman(resp))
	}
	if resp.State.Status != session.StatusAuthenticated {
		return 1
	}
	return 0
}

func formatStateHuman(resp *server.StateResponse) string {
	var sb strings.Builder
	st := resp.State
	fmt.Fprintf(&sb, "Status: %s\n", st.Status)
	if st.User != nil {
		fmt.Fprintf(&sb, "User:   %s <%s> (id %d)\n", st.User.Username, st.User.Email, st.User.ID)
		if !st.User.Confirmed {
			sb.WriteString("        account not confirmed\n")
		}
		if st.User.RoleID != nil {
			fmt.Fprintf(&sb, "Role:   %d\n", *st.User.RoleID)
		}
	}
	if st.Error != "" {
		fmt.Fprintf(&sb, "Error:  %s\n", st.Error)
	}
	for _, n := range resp.Notifications {
		fmt.Fprintf(&sb, "[%s] %s\n", n.Level, n.Message)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatStateJSON(resp *server.StateResponse) string {
	b, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}
