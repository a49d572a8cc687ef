package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nika0000/publisher-cli/internal/release"
)

var publishFallback string

var publishCmd = &cobra.Command{
	Use:   "publish <version>",
	Short: "Publish a version and write its manifests",
	Long: `Publish marks a version live. Required installer slots the version
didn't ship are filled from older versions in the channel when
--fallback=auto, or left empty (and reported) when --fallback=skip.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		if publishFallback != "auto" && publishFallback != "skip" {
			return fmt.Errorf("invalid --fallback %q (accepted: auto, skip)", publishFallback)
		}
		opts := release.PublishOptions{}
		if publishFallback == "auto" {
			opts.PickFallback = func(_ release.Slot, candidates []release.FallbackCandidate) *release.FallbackCandidate {
				return &candidates[0]
			}
		}
		res, err := svc.Publish(context.Background(), args[0], channel, opts)
		if err != nil {
			return err
		}
		warn(res.Warnings)
		release.SortSlots(res.AssignedFallbacks)
		release.SortSlots(res.MissingSlots)
		for _, slot := range res.AssignedFallbacks {
			fmt.Printf("fallback assigned for %s/%s/%s\n", slot.OS, slot.Arch, slot.Type)
		}
		for _, slot := range res.MissingSlots {
			fmt.Printf("missing required slot %s/%s/%s\n", slot.OS, slot.Arch, slot.Type)
		}
		fmt.Printf("published %s to %s\n", args[0], channel)
		return nil
	},
}

var regenerateVersion string

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Rebuild and republish manifests for the channel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		ctx := context.Background()
		if regenerateVersion != "" {
			if err := svc.RegenerateManifest(ctx, regenerateVersion, channel); err != nil {
				return err
			}
			fmt.Printf("regenerated manifests for %s in %s\n", regenerateVersion, channel)
			return nil
		}
		if err := svc.RegenerateChannel(ctx, channel); err != nil {
			return err
		}
		fmt.Printf("regenerated latest manifest for %s\n", channel)
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishFallback, "fallback", "skip", "missing-slot handling (auto, skip)")
	regenerateCmd.Flags().StringVar(&regenerateVersion, "version", "", "also rebuild this version's manifest")
}
