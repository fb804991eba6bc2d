// beamfleetctl init — scaffold a new fleet.yaml in the target directory.
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/f9-o/beamfleet/internal/core/config"
	"github.com/f9-o/beamfleet/pkg/pprint"
)

func NewInitCmd() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new fleet.yaml in the current (or specified) directory",
		Example: `  beamfleetctl init
  beamfleetctl init --path ./my-fleet`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if targetPath == "" {
				targetPath = "."
			}
			outFile := filepath.Join(targetPath, "fleet.yaml")
			if _, err := os.Stat(outFile); err == nil {
				return fmt.Errorf("fleet.yaml already exists at %s — delete it first to reinitialise", outFile)
			}

			if !JSONOutput {
				pprint.Step(1, 2, "writing %s", outFile)
			}
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fmt.Errorf("create dir %q: %w", targetPath, err)
			}

			if err := os.WriteFile(outFile, []byte(config.DefaultConfigTemplate), 0644); err != nil {
				return fmt.Errorf("write fleet.yaml: %w", err)
			}

			if JSONOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]string{"created": outFile})
			}

			pprint.Step(2, 2, "checking environment")
			if os.Getenv("SSH_HOSTS") == "" {
				pprint.Warn("SSH_HOSTS is not set — beamfleetd starts, but node operations fail with ConfigMissing until at least one host is set")
			}
			if os.Getenv("SSH_PRIVATE_KEY") == "" && os.Getenv("SSH_PRIVATE_KEY_B64") == "" {
				pprint.Warn("neither SSH_PRIVATE_KEY nor SSH_PRIVATE_KEY_B64 is set — beamfleetd starts, but node operations fail with ConfigMissing until one is set")
			}

			pprint.Success("Created %s", outFile)
			pprint.Panel("next steps", "Set SSH_HOSTS and SSH_PRIVATE_KEY, then start the daemon:\n  beamfleetd")
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", ".", "Target directory for fleet.yaml")
	return cmd
}
