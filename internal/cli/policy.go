package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nika0000/publisher-cli/internal/policy"
	"github.com/Nika0000/publisher-cli/internal/release"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage update policies",
}

var (
	policyMinVersion string
	policyRollout    int
	policyStart      string
	policyEnd        string
	policyToChannel  string
)

var policySetCmd = &cobra.Command{
	Use:   "set <version>",
	Short: "Update a version's release policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		in := release.PolicyInput{}
		if cmd.Flags().Changed("min-version") {
			in.MinSupportedVersion = &policyMinVersion
		}
		if cmd.Flags().Changed("rollout-percentage") {
			in.RolloutPercentage = &policyRollout
		}
		if cmd.Flags().Changed("rollout-start") {
			t, err := time.Parse(time.RFC3339, policyStart)
			if err != nil {
				return fmt.Errorf("invalid --rollout-start %q: %w", policyStart, err)
			}
			in.RolloutStartAt = &t
		}
		if cmd.Flags().Changed("rollout-end") {
			t, err := time.Parse(time.RFC3339, policyEnd)
			if err != nil {
				return fmt.Errorf("invalid --rollout-end %q: %w", policyEnd, err)
			}
			in.RolloutEndAt = &t
		}
		if cmd.Flags().Changed("to-channel") {
			in.Channel = &policyToChannel
		}
		v, err := svc.SetPolicy(context.Background(), args[0], channel, in)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(policy.Resolve(v))
	},
}

func init() {
	policySetCmd.Flags().StringVar(&policyMinVersion, "min-version", "", "minimum supported version (empty to clear)")
	policySetCmd.Flags().IntVar(&policyRollout, "rollout-percentage", 100, "rollout percentage (0-100)")
	policySetCmd.Flags().StringVar(&policyStart, "rollout-start", "", "rollout window start (RFC3339)")
	policySetCmd.Flags().StringVar(&policyEnd, "rollout-end", "", "rollout window end (RFC3339)")
	policySetCmd.Flags().StringVar(&policyToChannel, "to-channel", "", "move the version to another channel")

	policyCmd.AddCommand(policySetCmd)
}
