package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"processo/internal/platform/logger"
	"processo/internal/services/collect/domain"

	collectmod "processo/internal/services/collect/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	l := logger.Get()

	var (
		fNumbers = flag.String("numbers", "", "comma-separated process numbers")
		fFile    = flag.String("file", "", "file with one process number per line")
		fParty   = flag.String("party", "", "party or attorney name to search")
		fMax     = flag.Int("max", 100, "max results for a party search")
		fWorkers = flag.Int("workers", 0, "worker pool width (overrides COLLECT_WORKERS)")
		fOut     = flag.String("out", "", "write outcomes JSON to this file instead of stdout")

		// Maintenance paths
		fStats      = flag.Bool("cache-stats", false, "print cache stats and exit")
		fInvalidate = flag.String("invalidate", "", "drop cache entries: all | <query-type> | <query-type>:<params>")
	)
	flag.Parse()

	maintenance := *fStats || *fInvalidate != ""
	if !maintenance && *fNumbers == "" && *fFile == "" && *fParty == "" {
		l.Panic().Msg("must provide -numbers, -file or -party")
	}

	if *fWorkers > 0 {
		mustSetEnv("COLLECT_WORKERS", strconv.Itoa(*fWorkers))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mod, err := collectmod.New(ctx, collectmod.FromConfig())
	if err != nil {
		l.Panic().Err(err).Msg("collect module wiring failed")
	}
	defer func() {
		if err := mod.Close(); err != nil {
			l.Error().Err(err).Msg("failed to close collect module")
		}
	}()

	if maintenance {
		runMaintenance(ctx, l, mod, *fStats, *fInvalidate)
		return
	}

	queries, err := buildQueries(*fNumbers, *fFile, *fParty, *fMax)
	if err != nil {
		l.Panic().Err(err).Msg("bad input")
	}

	outs := mod.Collect(ctx, queries)

	if err := writeOutcomes(*fOut, outs); err != nil {
		l.Fatal().Err(err).Msg("writing outcomes failed")
	}
}

func runMaintenance(ctx context.Context, l *logger.Logger, mod *collectmod.Module, stats bool, invalidate string) {
	if invalidate != "" {
		queryType, params := "", ""
		if invalidate != "all" {
			queryType, params, _ = strings.Cut(invalidate, ":")
		}
		if err := mod.Invalidate(ctx, queryType, params); err != nil {
			l.Fatal().Err(err).Msg("invalidate failed")
		}
		l.Info().Str("query_type", queryType).Str("params", params).Msg("cache invalidated")
	}
	if stats {
		s := mod.CacheStats()
		l.Info().
			Int("entries", s.Entries).
			Int64("hits", s.Hits).
			Int64("misses", s.Misses).
			Int64("expired", s.Expired).
			Float64("hit_rate", s.HitRate).
			Msg("cache stats")
	}
}

func buildQueries(numbersCSV, file, party string, maxResults int) ([]domain.ProcessQuery, error) {
	var queries []domain.ProcessQuery

	seen := map[string]bool{}
	add := func(n string) {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			return
		}
		seen[n] = true
		queries = append(queries, domain.ByNumber(n))
	}

	for n := range strings.SplitSeq(numbersCSV, ",") {
		add(n)
	}
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			add(sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	if party != "" {
		queries = append(queries, domain.ByParty(party, maxResults))
	}
	return queries, nil
}

func writeOutcomes(path string, outs []domain.CollectionOutcome) error {
	w := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outs)
}
