package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Nika0000/publisher-cli/internal/manifest"
	"github.com/Nika0000/publisher-cli/internal/release"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Manage a version's builds",
}

var (
	buildOS           string
	buildArch         string
	buildType         string
	buildDistribution string
	buildVariant      string
	buildPackageName  string
	buildURL          string
	buildSize         int64
	buildSHA256       string
	buildSHA512       string
	buildExternal     bool
	buildDeleteForce  bool
)

func platformFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&buildOS, "os", "", "target os (macos, windows, linux, ios, android)")
	cmd.Flags().StringVar(&buildArch, "arch", "", "target arch (arm64, x64, x86)")
	cmd.Flags().StringVar(&buildType, "type", "installer", "build type (installer, patch)")
	cmd.Flags().StringVar(&buildVariant, "variant", "default", "build variant label")
	_ = cmd.MarkFlagRequired("os")
	_ = cmd.MarkFlagRequired("arch")
}

var buildUploadCmd = &cobra.Command{
	Use:   "upload <version> <file>",
	Short: "Upload an artifact and register it as a direct build",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		in := release.BuildInput{
			OS:          buildOS,
			Arch:        buildArch,
			Type:        buildType,
			Variant:     buildVariant,
			PackageName: buildPackageName,
		}
		b, warnings, err := svc.UploadBuild(context.Background(), args[0], channel, in, filepath.Base(args[1]), f)
		if err != nil {
			return err
		}
		warn(warnings)
		fmt.Printf("uploaded %s/%s/%s (%d bytes, sha256 %s)\n", b.OS, b.Arch, b.Type, b.Size, b.SHA256)
		return nil
	},
}

var buildAddCmd = &cobra.Command{
	Use:   "add <version>",
	Short: "Register an externally hosted or store-listed build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		in := release.BuildInput{
			OS:           buildOS,
			Arch:         buildArch,
			Type:         buildType,
			Distribution: buildDistribution,
			Variant:      buildVariant,
			PackageName:  buildPackageName,
			URL:          buildURL,
			Size:         buildSize,
			SHA256:       buildSHA256,
			SHA512:       buildSHA512,
			External:     buildExternal,
		}
		b, warnings, err := svc.RegisterBuild(context.Background(), args[0], channel, in)
		if err != nil {
			return err
		}
		warn(warnings)
		fmt.Printf("registered %s/%s/%s (%s)\n", b.OS, b.Arch, b.Type, b.Distribution)
		return nil
	},
}

var buildListCmd = &cobra.Command{
	Use:   "list <version>",
	Short: "List a version's builds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		builds, err := svc.ListBuilds(context.Background(), args[0], channel)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OS\tARCH\tTYPE\tDIST\tVARIANT\tSIZE\tFALLBACK FROM")
		for i := range builds {
			b := &builds[i]
			fallback := b.FallbackFrom()
			if fallback == "" {
				fallback = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				b.OS, b.Arch, b.Type, manifest.ResolveDistribution(b), b.Variant, b.Size, fallback)
		}
		return w.Flush()
	},
}

var buildDeleteCmd = &cobra.Command{
	Use:   "delete <version>",
	Short: "Delete one build of a version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		slot := release.Slot{OS: buildOS, Arch: buildArch, Type: buildType}
		res, err := svc.DeleteBuild(context.Background(), args[0], channel, slot, buildDistribution, buildVariant, buildDeleteForce)
		if err != nil {
			return err
		}
		warn(res.Warnings)
		fmt.Printf("deleted %s/%s/%s of %s\n", slot.OS, slot.Arch, slot.Type, args[0])
		return nil
	},
}

func init() {
	platformFlags(buildUploadCmd)
	buildUploadCmd.Flags().StringVar(&buildPackageName, "package-name", "", "package name recorded in the manifest")

	platformFlags(buildAddCmd)
	buildAddCmd.Flags().StringVar(&buildDistribution, "distribution", "direct", "distribution (direct, store)")
	buildAddCmd.Flags().StringVar(&buildPackageName, "package-name", "", "package name recorded in the manifest")
	buildAddCmd.Flags().StringVar(&buildURL, "url", "", "download url")
	buildAddCmd.Flags().Int64Var(&buildSize, "size", 0, "artifact size in bytes")
	buildAddCmd.Flags().StringVar(&buildSHA256, "sha256", "", "sha256 checksum")
	buildAddCmd.Flags().StringVar(&buildSHA512, "sha512", "", "sha512 checksum")
	buildAddCmd.Flags().BoolVar(&buildExternal, "external", false, "artifact hosted outside our storage")
	_ = buildAddCmd.MarkFlagRequired("url")

	platformFlags(buildDeleteCmd)
	buildDeleteCmd.Flags().StringVar(&buildDistribution, "distribution", "direct", "distribution (direct, store)")
	buildDeleteCmd.Flags().BoolVar(&buildDeleteForce, "force", false, "delete even if referenced as a fallback source")

	buildCmd.AddCommand(buildUploadCmd)
	buildCmd.AddCommand(buildAddCmd)
	buildCmd.AddCommand(buildListCmd)
	buildCmd.AddCommand(buildDeleteCmd)
}
