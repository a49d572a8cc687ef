package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nika0000/publisher-cli/internal/services"
	"github.com/Nika0000/publisher-cli/internal/update"
)

var (
	checkOS         string
	checkArch       string
	checkDeviceID   string
	checkPrerelease bool
)

var checkUpdateCmd = &cobra.Command{
	Use:   "check-update <installed-version>",
	Short: "Evaluate update eligibility for an installed client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureService(); err != nil {
			return err
		}
		res, err := update.CheckForUpdate(svc.DB(), update.Params{
			InstalledVersion: args[0],
			OS:               checkOS,
			Arch:             checkArch,
			Channel:          channel,
			DeviceID:         checkDeviceID,
			AllowPrerelease:  checkPrerelease,
		}, time.Now())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var (
	tokenRole string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token for the serve API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfigOnly(); err != nil {
			return err
		}
		tok, err := services.GenerateAdminToken(tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	checkUpdateCmd.Flags().StringVar(&checkOS, "os", "", "client os")
	checkUpdateCmd.Flags().StringVar(&checkArch, "arch", "", "client arch")
	checkUpdateCmd.Flags().StringVar(&checkDeviceID, "device-id", "", "device identifier for rollout bucketing")
	checkUpdateCmd.Flags().BoolVar(&checkPrerelease, "allow-prerelease", false, "consider pre-release versions")
	_ = checkUpdateCmd.MarkFlagRequired("os")
	_ = checkUpdateCmd.MarkFlagRequired("arch")

	tokenCmd.Flags().StringVar(&tokenRole, "role", "admin", "token role")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
