package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/banditlabs/stratcore/internal/domain"
	"github.com/banditlabs/stratcore/internal/engine"
	"github.com/banditlabs/stratcore/internal/gates"
)

// replaySummary is the JSON document printed after a replay run.
type replaySummary struct {
	TradesReplayed int                                `json:"trades_replayed"`
	SkippedLines   int                                `json:"skipped_lines"`
	Stats          interface{}                        `json:"stats"`
	Confidence     interface{}                        `json:"confidence"`
	Allocations    map[string]float64                 `json:"allocations,omitempty"`
	Patterns       engine.PatternReport               `json:"patterns"`
	Summary        map[string]replayStrategyBreakdown `json:"per_strategy"`
}

type replayStrategyBreakdown struct {
	Trades int     `json:"trades"`
	Wins   int     `json:"wins"`
	Profit float64 `json:"profit"`
}

func newReplayCmd(flags *rootFlags) *cobra.Command {
	var (
		seed        int64
		exploration float64
		snapshotDir string
	)

	cmd := &cobra.Command{
		Use:   "replay <trades.jsonl>",
		Short: "Replay a trade log through a fresh engine and print the learned state",
		Long: `Reads closed trades from a JSONL file, one trade outcome per line, feeds
them through a fresh engine in order and prints the resulting learning
state as JSON. A fixed seed makes runs reproducible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args[0], seed, exploration, snapshotDir)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 42, "RNG seed for reproducible replays")
	cmd.Flags().Float64Var(&exploration, "exploration", 0.10, "bandit exploration rate")
	cmd.Flags().StringVar(&snapshotDir, "state-dir", "", "write final state snapshots to this directory")

	return cmd
}

func runReplay(path string, seed int64, exploration float64, snapshotDir string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open trade log: %w", err)
	}
	defer file.Close()

	gateCfg := gates.DefaultConfig()
	gateCfg.ExplorationRate = exploration

	eng := engine.New(engine.Options{
		ExplorationRate: exploration,
		Seed:            seed,
		GateConfig:      gateCfg,
		SnapshotDir:     snapshotDir,
	})
	defer eng.Close()

	summary := replaySummary{Summary: make(map[string]replayStrategyBreakdown)}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var trade domain.TradeOutcome
		if err := json.Unmarshal(raw, &trade); err != nil {
			log.Warn().Int("line", line).Err(err).Msg("malformed trade skipped")
			summary.SkippedLines++
			continue
		}
		if trade.Strategy == "" {
			log.Warn().Int("line", line).Msg("trade without strategy skipped")
			summary.SkippedLines++
			continue
		}

		eng.RecordTrade(trade)
		summary.TradesReplayed++

		b := summary.Summary[trade.Strategy]
		b.Trades++
		if trade.Won {
			b.Wins++
		}
		b.Profit += trade.Profit
		summary.Summary[trade.Strategy] = b
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read trade log: %w", err)
	}

	summary.Stats = eng.Stats()
	summary.Confidence = eng.StrategyConfidenceAdjustments()
	summary.Allocations = eng.Allocations()
	summary.Patterns = eng.Patterns()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
