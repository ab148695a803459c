package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/presentation/graph"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Render a tree data file and its state",
	Long: `Loads a tree data file, applies --check, --expand and --activate in order and
renders the result as text, a Mermaid diagram, JSON or YAML.
With --session the state is resumed from and persisted to the session store.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringP("format", "f", "text", "Output format: text, mermaid, json or yaml")
	inspectCmd.Flags().Bool("all", false, "Render every node, not just the visible ones")
	inspectCmd.Flags().StringSlice("check", nil, "Values to check")
	inspectCmd.Flags().StringSlice("uncheck", nil, "Values to uncheck")
	inspectCmd.Flags().StringSlice("expand", nil, "Values to expand")
	inspectCmd.Flags().StringSlice("activate", nil, "Values to activate")
	inspectCmd.Flags().String("children-dir", "", "Directory of <value>.yaml files resolving lazy nodes")
	inspectCmd.Flags().String("session", "", "Session ID to resume and persist")
}

type inspectOutput struct {
	Nodes []domain.NodeView `json:"nodes"`
	Value *domain.Snapshot  `json:"value"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	childrenDir, _ := cmd.Flags().GetString("children-dir")
	sessionID, _ := cmd.Flags().GetString("session")
	format, _ := cmd.Flags().GetString("format")
	all, _ := cmd.Flags().GetBool("all")

	tree, err := openTree(args[0], childrenDir)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}
	defer tree.Close()

	ctx := cmd.Context()
	if sessionID != "" {
		mgr, closeStore := openSessions(cfg)
		defer closeStore()

		if _, err := mgr.Resume(ctx, sessionID, tree); err != nil && !errors.Is(err, domain.ErrSnapshotNotFound) {
			return err
		}
		tree.Wait()
		if err := applyActions(cmd, tree); err != nil {
			return err
		}
		if diff, err := mgr.Persist(ctx, sessionID, tree); err != nil {
			return err
		} else if diff != nil {
			logger.Info("Session saved", "session_id", sessionID)
		}
	} else if err := applyActions(cmd, tree); err != nil {
		return err
	}

	nodes := tree.Visible()
	if all {
		nodes = tree.Nodes()
	}

	out := cmd.OutOrStdout()
	switch format {
	case "text":
		tui.NewRenderer(out, outputOptions(os.Stdout)...).Render(nodes)
	case "mermaid":
		fmt.Fprint(out, graph.GenerateMermaid(nodes))
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(inspectOutput{Nodes: nodes, Value: tree.Snapshot()})
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(tree.Snapshot())
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

// applyActions runs the flag-driven actions and waits for any loads they start.
func applyActions(cmd *cobra.Command, tree *canopy.Tree) error {
	for _, step := range []struct {
		flag  string
		apply func(domain.Value) error
	}{
		{"check", func(v domain.Value) error { _, err := tree.SetChecked(v, true); return err }},
		{"uncheck", func(v domain.Value) error { _, err := tree.SetChecked(v, false); return err }},
		{"expand", func(v domain.Value) error { return tree.SetExpanded(v, true) }},
		{"activate", func(v domain.Value) error { return tree.SetActivated(v, true) }},
	} {
		values, _ := cmd.Flags().GetStringSlice(step.flag)
		for _, v := range values {
			if err := step.apply(domain.Value(v)); err != nil {
				return fmt.Errorf("--%s %s: %w", step.flag, v, err)
			}
			// Expanding a lazy node loads it; later steps may address its children.
			tree.Wait()
		}
	}
	return nil
}
