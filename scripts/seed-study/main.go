// seed-study creates a study from a YAML definition file.
//
// Usage: go run ./scripts/seed-study [-facilitator <uuid>] <study.yaml>
//
// Database connection: Uses standard PG* environment variables
//
// Example definition:
//
//	name: Community safety indicators
//	total_rounds: 3
//	consensus_threshold: 1.0
//	items:
//	  - external_id: CS-01
//	    name: Shelter bed availability
//	    domain: Safety
//	  - external_id: CS-02
//	    name: Narrative context
//	    tier: COMMENT_ONLY
//	participants:
//	  - email: panelist@example.org
//	    role: LIVED_EXPERIENCE
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/boreallogic/delphi-app/pkg/app"
	"github.com/boreallogic/delphi-app/pkg/config"
	"github.com/boreallogic/delphi-app/pkg/models"
	"github.com/boreallogic/delphi-app/pkg/services"
)

func main() {
	facilitator := flag.String("facilitator", "", "Facilitator ID recorded in the audit log (default: random)")
	migrate := flag.Bool("migrate", false, "Apply pending migrations before seeding")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [-facilitator <uuid>] [-migrate] <study.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	input, err := loadDefinition(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read study definition: %v\n", err)
		os.Exit(1)
	}

	actorID := uuid.New()
	if *facilitator != "" {
		if actorID, err = uuid.Parse(*facilitator); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid facilitator ID: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.LoadEnv("seed-study")
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
	engine, err := app.New(ctx, cfg, app.Options{RunMigrations: *migrate}, logger)
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

	state, err := engine.Studies.CreateStudy(scoped, input, models.Actor{Type: models.ActorFacilitator, ID: actorID})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create study: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created study %s (%q)\n", state.Study.ID, state.Study.Name)
	fmt.Printf("  rounds:       %d\n", state.Study.TotalRounds)
	fmt.Printf("  threshold:    %.2f\n", state.Study.ConsensusThreshold)
	fmt.Printf("  items:        %d\n", len(input.Items))
	fmt.Printf("  participants: %d\n", len(input.Participants))
}

// loadDefinition decodes a study definition, rejecting unknown keys.
func loadDefinition(path string) (services.CreateStudyInput, error) {
	var input services.CreateStudyInput

	data, err := os.ReadFile(path)
	if err != nil {
		return input, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&input); err != nil {
		return input, fmt.Errorf("parse %s: %w", path, err)
	}
	return input, nil
}
