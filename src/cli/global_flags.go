package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"hubkeep/src/hubmeta"
	"hubkeep/src/registry"
	"hubkeep/src/safety"
)

// DefaultHubRoot is where the hub's data root (and its two documents)
// lives unless --hub-root says otherwise.
const DefaultHubRoot = "/srv/hub"

// addGlobalFlags adds the persistent flags shared by all commands.
func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("hub-root", DefaultHubRoot, "Hub data root holding the registry and metadata documents")
	cmd.PersistentFlags().Bool("dry-run", false, "Show planned actions without making changes")
	cmd.PersistentFlags().BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
	cmd.PersistentFlags().Bool("force", false, "Force potentially dangerous operations (implies --yes)")
	cmd.PersistentFlags().String("log-level", "warning", "Log level: debug|info|warning|error")
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	dry, _ := cmd.Root().PersistentFlags().GetBool("dry-run")
	yes, _ := cmd.Root().PersistentFlags().GetBool("yes")
	force, _ := cmd.Root().PersistentFlags().GetBool("force")
	return safety.Options{DryRun: dry, Yes: yes, Force: force}
}

// loadHub loads the two hub documents from the configured hub root.
func loadHub(cmd *cobra.Command) (*hubmeta.Metadata, *registry.Registry, error) {
	root, _ := cmd.Root().PersistentFlags().GetString("hub-root")
	meta, err := hubmeta.NewStore(root).Load()
	if err != nil {
		return nil, nil, err
	}
	if meta.Info.HubRoot == "" {
		meta.Info.HubRoot = root
	}
	if meta.BackupRoot() == "" {
		return nil, nil, fmt.Errorf("hub metadata at %s declares no backup root", root)
	}
	reg, err := registry.NewStore(meta.DataRoot()).Load()
	if err != nil {
		return nil, nil, err
	}
	return meta, reg, nil
}
