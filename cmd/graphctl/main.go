// Command graphctl is an ancillary, read-only inspector for the job graph
// (SPEC_FULL §4.6). It never writes to the store; it exists purely to help
// an operator see what a running crawl has discovered.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bluedotiya/web-crawler/internal/config"
	"github.com/bluedotiya/web-crawler/internal/graphexport"
	"github.com/bluedotiya/web-crawler/internal/store/mongo"
)

const version = "0.2.0"

var (
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	styleDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:     "graphctl",
		Short:   "inspect the current state of the job graph",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	status := &cobra.Command{
		Use:   "status",
		Short: "print a node-count summary grouped by job status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), configPath)
		},
	}

	var out string
	dot := &cobra.Command{
		Use:   "export",
		Short: "render the job graph as a Graphviz SVG",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), configPath, out)
		},
	}
	dot.Flags().StringVar(&out, "out", "graph.svg", "output SVG path")

	root.AddCommand(status, dot)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, configPath string) (*mongo.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return mongo.Open(ctx, mongo.Config{
		Host:     cfg.StoreHost,
		User:     cfg.StoreUser,
		Password: cfg.StorePassword,
		Database: cfg.StoreDatabase,
	})
}

func runStatus(ctx context.Context, configPath string) error {
	graph, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer graph.Close(ctx)

	nodes, _, err := graphexport.Snapshot(ctx, graph)
	if err != nil {
		return fmt.Errorf("snapshot graph: %w", err)
	}

	fmt.Println(styleTitle.Render("job graph status"))
	fmt.Println(styleDim.Render(graphexport.Summarize(nodes)))
	return nil
}

func runExport(ctx context.Context, configPath, outPath string) error {
	graph, err := openStore(ctx, configPath)
	if err != nil {
		return err
	}
	defer graph.Close(ctx)

	nodes, edges, err := graphexport.Snapshot(ctx, graph)
	if err != nil {
		return fmt.Errorf("snapshot graph: %w", err)
	}

	dot := graphexport.ToDOT(nodes, edges)
	svg, err := graphexport.RenderSVG(ctx, dot)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, svg, 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	fmt.Println(styleTitle.Render("wrote " + outPath))
	return nil
}
