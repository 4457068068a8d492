package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/orchestrate/internal/templates"
)

// mcpConfig represents the structure of a .mcp.json file.
type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

// orchestrateMCPEntry is the MCP server configuration for the orchestrate
// binary.
var orchestrateMCPEntry = json.RawMessage(`{
  "type": "stdio",
  "command": "orchestrate",
  "args": ["serve", "--mcp"]
}`)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold orchestrate.yml, the regression battery, and .mcp.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(projectRoot, initForce)
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

// runInit installs the starter config, the regression battery, and the MCP
// configuration into the target project directory.
func runInit(root string, force bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	starters := []struct {
		embedded string
		dest     string
	}{
		{templates.ConfigName, filepath.Join(abs, templates.ConfigName)},
		{templates.BatteryName, filepath.Join(abs, ".orchestrate", templates.BatteryName)},
	}

	for _, st := range starters {
		if !force {
			if _, err := os.Stat(st.dest); err == nil {
				fmt.Printf("  skipped %s (exists, use --force to overwrite)\n", dotRelative(abs, st.dest))
				continue
			}
		}

		data, err := templates.FS.ReadFile(st.embedded)
		if err != nil {
			return fmt.Errorf("reading embedded %s: %w", st.embedded, err)
		}
		if err := os.MkdirAll(filepath.Dir(st.dest), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(st.dest, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", st.dest, err)
		}

		fmt.Printf("  created %s\n", dotRelative(abs, st.dest))
	}

	if err := mergeMCPConfig(filepath.Join(abs, ".mcp.json"), force); err != nil {
		return err
	}

	fmt.Println("\nSetup complete. Configure workers and priorities in orchestrate.yml.")
	return nil
}

// mergeMCPConfig creates or merges the orchestrate entry into .mcp.json.
func mergeMCPConfig(mcpPath string, force bool) error {
	var cfg mcpConfig

	data, err := os.ReadFile(mcpPath)
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", mcpPath, err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]json.RawMessage)
	}

	if _, exists := cfg.MCPServers["orchestrate"]; exists && !force {
		fmt.Printf("  skipped .mcp.json orchestrate entry (exists, use --force to overwrite)\n")
		return nil
	}

	cfg.MCPServers["orchestrate"] = orchestrateMCPEntry

	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling .mcp.json: %w", err)
	}

	if err := os.WriteFile(mcpPath, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", mcpPath, err)
	}

	action := "created"
	if data != nil {
		action = "updated"
	}
	fmt.Printf("  %s .mcp.json with orchestrate MCP server\n", action)
	return nil
}

// dotRelative returns a display path relative to the project root, prefixed
// with "./".
func dotRelative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return "./" + rel
}
