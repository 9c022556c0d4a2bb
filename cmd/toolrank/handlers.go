package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/elonfeng/toolrank/internal/config"
	"github.com/elonfeng/toolrank/internal/scheduler"
	"github.com/elonfeng/toolrank/internal/store"
	"github.com/elonfeng/toolrank/pkg/fetcher"
	"github.com/elonfeng/toolrank/pkg/gate"
	"github.com/elonfeng/toolrank/pkg/ranking"
	"github.com/elonfeng/toolrank/pkg/server"
	"github.com/elonfeng/toolrank/pkg/stage"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildFetchers(cfg *config.Config, db store.Store) []fetcher.Fetcher {
	var fetchers []fetcher.Fetcher

	if cfg.Sources.GitHub.Enabled {
		fetchers = append(fetchers, fetcher.NewGitHub(db, cfg.Sources.GitHub.Token))
	}
	if cfg.Sources.ProductHunt.Enabled {
		fetchers = append(fetchers, fetcher.NewProductHunt(db, cfg.Sources.ProductHunt.Token))
	}
	if cfg.Sources.Arena.Enabled {
		fetchers = append(fetchers, fetcher.NewArena(db, cfg.Sources.Arena.URL, cfg.Sources.Arena.FallbackURL))
	}
	if cfg.Sources.Benchmarks.Enabled {
		fetchers = append(fetchers, fetcher.NewBenchmark(db, cfg.Sources.Benchmarks.URL, cfg.Sources.Benchmarks.APIKey))
	}
	if cfg.Sources.CustomBench.Enabled {
		fetchers = append(fetchers, fetcher.NewCustomBenchmark(db, cfg.Sources.CustomBench.URL))
	}
	if cfg.Sources.Authority.Enabled {
		fetchers = append(fetchers, fetcher.NewAuthority(db, cfg.Sources.Authority.URL, cfg.Sources.Authority.APIKey))
	}
	if cfg.Sources.Pricing.Enabled {
		fetchers = append(fetchers, fetcher.NewPricing(db, cfg.Sources.Pricing.URL, cfg.Sources.Pricing.APIKey))
	}
	if cfg.Sources.Reviews.Enabled {
		fetchers = append(fetchers, fetcher.NewReviews(db, cfg.Sources.Reviews.BaseURL))
	}
	if cfg.Discovery.Enabled && len(cfg.Discovery.Feeds) > 0 {
		feeds := make([]fetcher.DiscoveryFeed, len(cfg.Discovery.Feeds))
		for i, f := range cfg.Discovery.Feeds {
			feeds[i] = fetcher.DiscoveryFeed{Name: f.Name, URL: f.URL, Category: f.Category}
		}
		fetchers = append(fetchers, fetcher.NewDiscovery(db, feeds))
	}

	return fetchers
}

func runSync(filterSources []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	allFetchers := buildFetchers(cfg, db)

	// Filter to requested sources only.
	var fetchers []fetcher.Fetcher
	if len(filterSources) > 0 {
		wanted := make(map[string]bool)
		for _, s := range filterSources {
			wanted[strings.ToLower(strings.TrimSpace(s))] = true
		}
		for _, f := range allFetchers {
			if wanted[f.SourceKey()] {
				fetchers = append(fetchers, f)
			}
		}
		if len(fetchers) == 0 {
			return fmt.Errorf("no matching sources for: %s", strings.Join(filterSources, ", "))
		}
	} else {
		fetchers = allFetchers
	}

	ctx := context.Background()
	for _, f := range fetchers {
		fmt.Fprintf(os.Stderr, "syncing %s...\n", f.SourceKey())
		res := fetcher.Run(ctx, db, f)
		fmt.Fprintf(os.Stderr, "  total=%d updated=%d skipped=%d errors=%d\n",
			res.Total, res.Updated, res.Skipped, len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "    %s\n", e)
		}
	}
	return nil
}

func runRank() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	ranker := ranking.New(db)
	now := time.Now().UTC()

	for _, step := range []struct {
		key string
		fn  stage.Func
	}{
		{ranking.SourceKey, func(ctx context.Context) (*stage.Result, error) { return ranker.Recompute(ctx, now) }},
		{ranking.TrendSourceKey, func(ctx context.Context) (*stage.Result, error) { return ranker.ComputeTrends(ctx, now) }},
		{ranking.CategorySourceKey, func(ctx context.Context) (*stage.Result, error) { return ranker.AggregateCategories(ctx, now) }},
	} {
		fmt.Fprintf(os.Stderr, "running %s...\n", step.key)
		res := stage.Run(ctx, db, step.key, step.fn)
		fmt.Fprintf(os.Stderr, "  total=%d updated=%d skipped=%d errors=%d\n",
			res.Total, res.Updated, res.Skipped, len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "    %s\n", e)
		}
	}
	return nil
}

func runCandidates(evaluate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if evaluate {
		res := stage.Run(ctx, db, gate.SourceKey, gate.New(db).Evaluate)
		fmt.Fprintf(os.Stderr, "quality gate: total=%d merged=%d rejected=%d errors=%d\n",
			res.Total, res.Updated, res.Skipped, len(res.Errors))
	}

	candidates, err := db.ListCandidates(ctx, "")
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}

	if len(candidates) == 0 {
		fmt.Println("no candidates (try syncing discovery feeds first: toolrank sync --source discovery)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tQUALITY\tVOTES\tSTARS\tNAME\tFROM")
	for _, c := range candidates {
		fmt.Fprintf(w, "%s\t%.1f\t%d\t%d\t%s\t%s\n",
			c.Status, c.QualityScore, c.Votes, c.Stars, c.Name, c.DiscoveredFrom)
	}
	return w.Flush()
}

func runTools(jsonOutput bool, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	tools, err := db.ListTools(context.Background())
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	// Ranked first, then the not-yet-ranked tail.
	ranked := make([]store.Tool, 0, len(tools))
	var unranked []store.Tool
	for _, t := range tools {
		if t.Rank > 0 {
			ranked = append(ranked, t)
		} else {
			unranked = append(unranked, t)
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Rank < ranked[j].Rank })
	tools = append(ranked, unranked...)
	if limit > 0 && len(tools) > limit {
		tools = tools[:limit]
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}

	if len(tools) == 0 {
		fmt.Println("catalog is empty (merge candidates first: toolrank candidates --evaluate)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\tTREND\tCATEGORY\tNAME")
	for _, t := range tools {
		trend := t.TrendDirection
		if t.TrendMagnitude > 0 {
			trend = fmt.Sprintf("%s %d", t.TrendDirection, t.TrendMagnitude)
		}
		fmt.Fprintf(w, "%d\t%.1f\t%s\t%s\t%s\n",
			t.Rank, t.HybridScore, trend, t.Category, t.Name)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	srv := server.New(db, buildFetchers(cfg, db), gate.New(db), ranking.New(db),
		cfg.Server.SyncSecret, port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	fetchers := buildFetchers(cfg, db)
	g := gate.New(db)
	ranker := ranking.New(db)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, fetchers, g, ranker,
		cfg.Schedule.ParseSyncInterval(),
		cfg.Schedule.ParseRankInterval(),
	)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	srv := server.New(db, fetchers, g, ranker, cfg.Server.SyncSecret, port)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return srv.ListenAndServe()
}
