package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wireql/wireql/pkg/backend"
	_ "github.com/wireql/wireql/pkg/backend/mysql"
	_ "github.com/wireql/wireql/pkg/backend/sqlite"
	"github.com/wireql/wireql/pkg/config"
	"github.com/wireql/wireql/pkg/describe"
	"github.com/wireql/wireql/pkg/exec"
	"github.com/wireql/wireql/pkg/wlog"
)

var (
	configFilePath = flag.String("config", "wireqlprep.yaml", "prep config file path")
	checkOnly      = flag.Bool("check", false, "verify the stored cache against the live database instead of rewriting it")
)

func main() {
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("init logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	wlog.SetLogger(logger)

	cfgData, err := os.ReadFile(*configFilePath)
	if err != nil {
		fmt.Printf("read config file error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.UnmarshalPrepConfig(cfgData)
	if err != nil {
		fmt.Printf("parse config file error: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, *checkOnly); err != nil {
		wlog.BgLogger().Error("prep failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Prep, checkOnly bool) error {
	queries, err := collectQueries(cfg)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return fmt.Errorf("no queries configured")
	}

	c, err := backend.Connect(ctx, cfg.URL)
	if err != nil {
		return err
	}
	defer c.Close()

	info := c.ServerInfo()
	wlog.BgLogger().Info("connected",
		zap.String("backend", info.Backend),
		zap.String("version", info.Version),
		zap.Int("queries", len(queries)))

	pipeline := exec.New(c)
	fresh := describe.NewFile(info.Identity(), cfg.SchemaVersion)
	for _, query := range queries {
		result, err := pipeline.Describe(ctx, query)
		if err != nil {
			return fmt.Errorf("describe %q: %w", query, err)
		}
		fresh.Put(query, result)
	}

	output := cfg.Output
	if output == "" {
		output = "wireql-describe.json"
	}

	if checkOnly {
		return checkDrift(output, fresh, queries)
	}
	if err := fresh.Store(output); err != nil {
		return err
	}
	wlog.BgLogger().Info("cache written", zap.String("path", output))
	return nil
}

// checkDrift compares the stored cache byte for byte against what the
// live database reports now. Any difference means prepared metadata has
// drifted since the cache was built.
func checkDrift(path string, fresh *describe.File, queries []string) error {
	stored, err := describe.Load(path)
	if err != nil {
		return err
	}
	storedBytes, err := stored.Marshal()
	if err != nil {
		return err
	}
	freshBytes, err := fresh.Marshal()
	if err != nil {
		return err
	}
	if string(storedBytes) != string(freshBytes) {
		return fmt.Errorf("describe cache %s is stale: metadata changed for at least one of %d queries", path, len(queries))
	}
	wlog.BgLogger().Info("cache is current", zap.String("path", path), zap.Int("queries", len(queries)))
	return nil
}

func collectQueries(cfg *config.Prep) ([]string, error) {
	queries := append([]string(nil), cfg.Queries...)
	for _, path := range cfg.QueryFiles {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, stmt := range strings.Split(string(data), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				queries = append(queries, stmt)
			}
		}
	}
	return queries, nil
}
