// analyze-round applies a lifecycle action to a study from the command line.
// It is mostly used to retry ANALYZE_ROUND after a failed analysis rolled back,
// or with -recompute N to rebuild the summaries of an already analyzed round.
//
// Usage: go run ./scripts/analyze-round [-action ANALYZE_ROUND | -recompute N] -facilitator <uuid> <study-id>
//
// Database connection: Uses standard PG* environment variables
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/boreallogic/delphi-app/pkg/app"
	"github.com/boreallogic/delphi-app/pkg/config"
	"github.com/boreallogic/delphi-app/pkg/models"
)

func main() {
	action := flag.String("action", string(models.ActionAnalyzeRound), "Lifecycle action to apply")
	recompute := flag.Int("recompute", 0, "Recompute summaries of this analyzed round instead of applying an action")
	facilitator := flag.String("facilitator", "", "Facilitator ID issuing the action (required)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || *facilitator == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [-action ACTION | -recompute N] -facilitator <uuid> <study-id>\n", os.Args[0])
		os.Exit(1)
	}

	studyID, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid study ID: %v\n", err)
		os.Exit(1)
	}
	actorID, err := uuid.Parse(*facilitator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid facilitator ID: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadEnv("analyze-round")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := app.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	engine, err := app.New(ctx, cfg, app.Options{}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	scoped, release, err := engine.Scopes.WithScope(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire connection: %v\n", err)
		os.Exit(1)
	}
	defer release()

	actor := models.Actor{Type: models.ActorFacilitator, ID: actorID}

	if *recompute > 0 {
		summaries, err := engine.Lifecycle.RecomputeRoundSummaries(scoped, studyID, *recompute, actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Recompute failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Recomputed round %d of study %s\n", *recompute, studyID)
		printSummaries(summaries)
		return
	}

	state, err := engine.Lifecycle.ApplyAction(scoped, studyID, models.StudyAction(*action), actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Action failed: %v\n", err)
		os.Exit(1)
	}

	t := state.Transition
	fmt.Printf("Applied %s to study %s\n", t.Action, state.Study.ID)
	fmt.Printf("  status: %s -> %s\n", t.FromStatus, t.ToStatus)
	fmt.Printf("  round:  %d (%s)\n", t.RoundNumber, t.RoundStatus)
	if t.Action.RunsAggregation() {
		fmt.Printf("  items analyzed:  %d\n", t.ItemsAnalyzed)
		fmt.Printf("  consensus items: %d\n", t.ConsensusCount)
		printSummaries(state.Summaries)
	}
}

func printSummaries(summaries []*models.RoundSummary) {
	for _, s := range summaries {
		fmt.Printf("    %s  n=%-3d iqr=%-6s consensus=%v dissent=%d\n",
			s.ItemID, s.ResponseCount, formatStat(s.Priority.IQR), s.ConsensusReached, s.DissentCount)
	}
}

func formatStat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
