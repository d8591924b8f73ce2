package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/windflowlabs/windflow/pkg/client"
	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
	"github.com/windflowlabs/windflow/pkg/ws"
)

// Deployment commands
var deploymentCmd = &cobra.Command{
	Use:   "deployment",
	Short: "Inspect and follow deployments",
}

var deploymentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deployments from the database",
	Long: `List deployments by reading the bolt database directly. The
database is locked while a server runs against it; point --data-dir at
a copy or stop the server first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %v", err)
		}
		defer store.Close()

		statuses := []types.DeploymentStatus{
			types.StatusPending,
			types.StatusDeploying,
			types.StatusRunning,
			types.StatusFailed,
			types.StatusStopped,
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTACK\tCREATED")
		for _, status := range statuses {
			rows, err := store.ListDeploymentsByStatus(status)
			if err != nil {
				return err
			}
			for _, d := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					d.ID, d.Name, d.Status, d.StackID,
					d.CreatedAt.Format("2006-01-02 15:04:05"))
			}
		}
		return w.Flush()
	},
}

var deploymentLogsCmd = &cobra.Command{
	Use:   "logs DEPLOYMENT_ID",
	Short: "Stream one deployment's status and logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		token := tokenFlag(cmd)

		stream, err := client.DialLogs(cmd.Context(), server, args[0], token)
		if err != nil {
			return err
		}
		defer stream.Close()

		for {
			env, err := stream.Next(cmd.Context())
			if err != nil {
				return err
			}
			printFrame(env)
		}
	},
}

var deploymentWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow deployment events from a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		token := tokenFlag(cmd)

		c, err := client.Dial(cmd.Context(), server, token)
		if err != nil {
			return err
		}
		defer c.Close()

		for _, eventType := range []string{
			ws.MsgDeploymentStatusChanged,
			ws.MsgDeploymentLogsUpdate,
		} {
			if err := c.Subscribe(cmd.Context(), eventType); err != nil {
				return err
			}
		}

		for {
			env, err := c.Next(cmd.Context())
			if err != nil {
				return err
			}
			printFrame(env)
		}
	},
}

// printFrame renders a server frame for the terminal: log frames print
// their text verbatim, everything else as type plus data.
func printFrame(env *ws.Envelope) {
	switch env.Type {
	case ws.MsgDeploymentLogsUpdate:
		if logs, ok := env.Data["logs"].(string); ok {
			fmt.Println(logs)
			return
		}
	case ws.MsgSubscribed, ws.MsgLogsSubscribed:
		return
	}
	fmt.Printf("[%s] %v\n", env.Type, env.Data)
}

func tokenFlag(cmd *cobra.Command) string {
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("WINDFLOW_TOKEN")
	}
	return token
}

func init() {
	deploymentCmd.AddCommand(deploymentListCmd)
	deploymentCmd.AddCommand(deploymentLogsCmd)
	deploymentCmd.AddCommand(deploymentWatchCmd)

	deploymentListCmd.Flags().String("data-dir", "/var/lib/windflow", "Directory of the bolt database")
	for _, c := range []*cobra.Command{deploymentLogsCmd, deploymentWatchCmd} {
		c.Flags().String("server", "http://127.0.0.1:8080", "Server base URL")
		c.Flags().String("token", "", "API token (or WINDFLOW_TOKEN)")
	}
}
