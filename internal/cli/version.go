package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Nika0000/publisher-cli/internal/release"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Manage release versions",
}

var (
	createNotes     string
	createChangelog string
	createMandatory bool
)

var versionCreateCmd = &cobra.Command{
	Use:   "create <version>",
	Short: "Create a new unpublished version in the channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		v, err := svc.CreateVersion(context.Background(), args[0], channel, release.CreateVersionOptions{
			ReleaseNotes: createNotes,
			Changelog:    createChangelog,
			IsMandatory:  createMandatory,
		})
		if err != nil {
			return err
		}
		fmt.Printf("created %s in %s (storage prefix %s)\n", v.VersionName, v.ReleaseChannel, v.StorageKeyPrefix)
		return nil
	},
}

var versionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List versions in the channel, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		versions, err := svc.ListVersions(context.Background(), channel)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tPUBLISHED\tMANDATORY\tROLLOUT\tRELEASED")
		for _, v := range versions {
			rollout := "100%"
			if v.RolloutPercentage != nil {
				rollout = fmt.Sprintf("%d%%", *v.RolloutPercentage)
			}
			released := "-"
			if v.ReleaseDate != nil {
				released = v.ReleaseDate.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%t\t%t\t%s\t%s\n", v.VersionName, v.IsPublished, v.IsMandatory, rollout, released)
		}
		return w.Flush()
	},
}

var versionDeleteForce bool

var versionDeleteCmd = &cobra.Command{
	Use:   "delete <version>",
	Short: "Delete an unpublished version and its builds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		res, err := svc.DeleteVersion(context.Background(), args[0], channel, versionDeleteForce)
		if err != nil {
			return err
		}
		warn(res.Warnings)
		fmt.Printf("deleted %s from %s\n", args[0], channel)
		return nil
	},
}

func init() {
	versionCreateCmd.Flags().StringVar(&createNotes, "notes", "", "release notes")
	versionCreateCmd.Flags().StringVar(&createChangelog, "changelog", "", "changelog")
	versionCreateCmd.Flags().BoolVar(&createMandatory, "mandatory", false, "mark the update mandatory")
	versionDeleteCmd.Flags().BoolVar(&versionDeleteForce, "force", false, "delete even if published or referenced as a fallback source")

	versionCmd.AddCommand(versionCreateCmd)
	versionCmd.AddCommand(versionListCmd)
	versionCmd.AddCommand(versionDeleteCmd)
}
