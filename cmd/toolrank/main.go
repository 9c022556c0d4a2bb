package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "toolrank",
		Short: "Rank AI tools from external signals and engagement metrics",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(syncCmd())
	root.AddCommand(rankCmd())
	root.AddCommand(candidatesCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func syncCmd() *cobra.Command {
	var sources []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run signal fetchers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(sources)
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "specific sources to sync (e.g., github,lmarena,reviews)")
	return cmd
}

func rankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Recompute hybrid scores, ranks, trends and category rollups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank()
		},
	}
	return cmd
}

func candidatesCmd() *cobra.Command {
	var evaluate bool

	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Show candidate tools, optionally running the quality gate first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCandidates(evaluate)
		},
	}

	cmd.Flags().BoolVar(&evaluate, "evaluate", false, "run the quality gate before listing")
	return cmd
}

func toolsCmd() *cobra.Command {
	var (
		jsonOutput bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Show the ranked catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(jsonOutput, limit)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 50, "max tools to show")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "server port")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "server port")
	return cmd
}
