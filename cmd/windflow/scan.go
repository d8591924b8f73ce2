package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/windflowlabs/windflow/pkg/executor"
	"github.com/windflowlabs/windflow/pkg/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan HOST",
	Short: "Probe a host's platform and container tooling",
	Long: `Probe a host and print what WindFlow found: platform, OS, Docker
engine capabilities, compose, and any Kubernetes or VM tooling.

Local hosts (localhost, 127.0.0.1, ::1) are probed directly; everything
else goes over SSH with the given credentials.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host := args[0]
		user, _ := cmd.Flags().GetString("user")
		port, _ := cmd.Flags().GetInt("port")
		password, _ := cmd.Flags().GetString("password")
		keyFile, _ := cmd.Flags().GetString("key")

		local := executor.IsLocal(host)
		var exec executor.CommandExecutor
		if local {
			exec = executor.NewLocal()
		} else {
			if user == "" {
				return fmt.Errorf("--user is required for remote hosts")
			}
			var key string
			if keyFile != "" {
				data, err := os.ReadFile(keyFile)
				if err != nil {
					return fmt.Errorf("failed to read key file: %v", err)
				}
				key = string(data)
			}
			ssh, err := executor.NewSSH(executor.SSHConfig{
				Host:       host,
				Port:       port,
				User:       user,
				Password:   password,
				PrivateKey: key,
			})
			if err != nil {
				return fmt.Errorf("failed to connect: %v", err)
			}
			exec = ssh
		}
		defer exec.Close()

		result := scanner.New(exec, scanner.Config{Local: local}).Scan(cmd.Context())

		out := struct {
			Host       string `json:"host"`
			TargetType string `json:"inferred_target_type"`
			Result     any    `json:"result"`
		}{
			Host:       host,
			TargetType: string(scanner.InferTargetType(result)),
			Result:     result,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	scanCmd.Flags().String("user", "", "SSH username for remote hosts")
	scanCmd.Flags().Int("port", 22, "SSH port")
	scanCmd.Flags().String("password", "", "SSH password")
	scanCmd.Flags().String("key", "", "Path to an SSH private key file")
}
