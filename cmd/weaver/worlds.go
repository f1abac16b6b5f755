package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/questgraph/internal/asset"
	"github.com/gyaneshwarpardhi/questgraph/internal/quest"
	"github.com/gyaneshwarpardhi/questgraph/internal/session"
	"github.com/gyaneshwarpardhi/questgraph/internal/storage"
)

var (
	exportFormat string
	importWorld  string
)

// withBackend opens the configured store for a one-shot command. Logs go to
// stderr so they stay out of exported data.
func withBackend(fn func(ctx context.Context, b *backend) error) error {
	_, cfg, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	if cfg.Storage.Memory {
		return errors.New("offline commands need a database; drop --memory")
	}
	b, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(context.Background(), b)
}

func loadSnapshot(ctx context.Context, b *backend, world string) (*quest.Snapshot, error) {
	data, err := b.store.Load(ctx, world)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("world %s has no saved snapshot", world)
	}
	if err != nil {
		return nil, err
	}
	return storage.DecodeSnapshot(data)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var worldsCmd = &cobra.Command{
	Use:   "worlds",
	Short: "List worlds with a saved snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			worlds, err := b.sqlite.Worlds(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(worlds)
			}
			for _, w := range worlds {
				fmt.Println(w)
			}
			return nil
		})
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <world>",
	Short: "Print the quest hierarchy of a saved world",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			snap, err := loadSnapshot(ctx, b, args[0])
			if err != nil {
				return err
			}
			roots := quest.BuildForest(snap.Nodes, snap.Edges)
			if jsonOut {
				return printJSON(quest.Detach(roots))
			}
			out := cmd.OutOrStdout()
			for _, r := range roots {
				r.Walk(func(n *quest.TreeNode, depth int, cycle bool) bool {
					mark := "+ "
					if n.IsLeaf() || cycle {
						mark = "- "
					}
					line := strings.Repeat("  ", depth) + mark + n.Title + " (" + n.ID + ")"
					if n.Clickable() {
						line += " [asset]"
					}
					if cycle {
						line += " [cycle]"
					}
					fmt.Fprintln(out, line)
					return true
				})
			}
			return nil
		})
	},
}

var descendantsCmd = &cobra.Command{
	Use:   "descendants <world> <card-id>",
	Short: "List every card reachable from a card",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			snap, err := loadSnapshot(ctx, b, args[0])
			if err != nil {
				return err
			}
			ids := quest.DescendantIDs(args[1], snap.Edges)
			if jsonOut {
				return printJSON(map[string]any{"id": args[1], "descendants": ids, "count": len(ids)})
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <world>",
	Short: "Write a saved world's snapshot to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, b *backend) error {
			snap, err := loadSnapshot(ctx, b, args[0])
			if err != nil {
				return err
			}
			var data []byte
			switch exportFormat {
			case "json":
				data, err = storage.EncodeSnapshot(snap)
			case "yaml":
				data, err = storage.EncodeYAML(snap)
			default:
				return fmt.Errorf("unknown format %q (json or yaml)", exportFormat)
			}
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Save a JSON or YAML snapshot file as a world",
	Long:  "The world is named after the file (extension dropped) unless --world is given.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		world := importWorld
		if world == "" {
			world = asset.WorldName(args[0])
		}
		if !session.ValidWorld(world) {
			return fmt.Errorf("%q: %w", world, session.ErrBadWorld)
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var snap *quest.Snapshot
		switch strings.ToLower(filepath.Ext(args[0])) {
		case ".yaml", ".yml":
			snap, err = storage.DecodeYAML(raw)
		default:
			snap, err = storage.DecodeSnapshot(raw)
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		data, err := storage.EncodeSnapshot(snap)
		if err != nil {
			return err
		}
		return withBackend(func(ctx context.Context, b *backend) error {
			if err := b.store.Save(ctx, world, data); err != nil {
				return err
			}
			fmt.Printf("imported %s: %d cards, %d edges\n", world, len(snap.Nodes), len(snap.Edges))
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json or yaml")
	importCmd.Flags().StringVar(&importWorld, "world", "", "World name (default: file name without extension)")
	rootCmd.AddCommand(worldsCmd, treeCmd, descendantsCmd, exportCmd, importCmd)
}
