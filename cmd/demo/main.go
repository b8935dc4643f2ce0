// Package main is the FieldScout demo console. It runs the canonical
// scenario end to end against the in-memory stores: generate a
// recommendation for the demo observation, patch the playbook's wind
// ceiling, and show the recomputed recommendation under the new version.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"fieldscout/internal/engine"
	"fieldscout/internal/patch"
	"fieldscout/internal/playbook"
	"fieldscout/internal/recommendation"
	"fieldscout/internal/types"
	"fieldscout/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := types.RealClock{}

	// The demo evening: an inversion-free, uniformly humid night in Yolo
	// County, observed at 19:00 local.
	referenceTime := time.Date(2026, 2, 11, 19, 0, 0, 0, time.FixedZone("PST", -8*3600))

	store := playbook.NewMemoryStore()
	if err := store.Seed(ctx, playbook.Demo()); err != nil {
		return err
	}

	recStore := recommendation.NewMemoryStore()
	provider := weather.NewProvider(types.WeatherSourceDemo, nil, clock, logger)
	builder := engine.NewBuilder(clock, logger)
	orchestrator := patch.NewOrchestrator(builder, logger)

	observation := playbook.DemoObservation()
	wx, err := provider.GetFeatures(ctx, observation.Location, referenceTime)
	if err != nil {
		return err
	}

	fmt.Println("=== FieldScout demo scenario ===")
	fmt.Printf("\nObservation %s: %s (%s) in %s\n",
		observation.ObservationID,
		observation.Extraction.Issue,
		observation.Extraction.Severity,
		observation.Extraction.FieldBlock,
	)
	fmt.Printf("Weather %s: inversion=%t humidity=%s shear=%s spray=%.2f\n",
		wx.WeatherFeaturesID, wx.InversionPresent, wx.HumidityLayering,
		wx.WindShearProxy, wx.SprayWindowScore,
	)

	// Step 1: generate the recommendation against playbook v3.
	active, err := store.GetActive(ctx, playbook.DemoPlaybookID)
	if err != nil {
		return err
	}

	rec, err := builder.GenerateRecommendation(observation, active, wx, "rec_"+uuid.NewString(), referenceTime)
	if err != nil {
		return err
	}
	if err := recStore.Put(ctx, &recommendation.Record{
		Recommendation: rec,
		Observation:    observation,
		Weather:        wx,
		ReferenceTime:  referenceTime,
	}); err != nil {
		return err
	}

	fmt.Printf("\n--- Recommendation against playbook v%d ---\n", rec.PlaybookVersion)
	printJSON(rec)

	// Step 2: the grower tightens the wind ceiling; the recommendation is
	// recomputed under v4 with the same observation and weather.
	p := playbook.DemoPatch()
	fmt.Printf("\n--- Patch %s: %s maxWindKph -> 10 (base v%d) ---\n",
		p.PatchID, p.Operations[0].Op, p.BaseVersion)

	var result *types.PatchApplyResult
	var recomputed *types.Recommendation
	err = store.Mutate(ctx, playbook.DemoPlaybookID, func(current *types.Playbook) (*types.Playbook, error) {
		res, updated, newRec := orchestrator.ApplyPatchAndRecompute(
			p, current, observation, wx, clock.Now(), "rec_"+uuid.NewString(), referenceTime)
		result, recomputed = res, newRec
		return updated, nil
	})
	if err != nil {
		return err
	}

	printJSON(result)

	if recomputed != nil {
		if err := recStore.Put(ctx, &recommendation.Record{
			Recommendation: recomputed,
			Observation:    observation,
			Weather:        wx,
			ReferenceTime:  referenceTime,
		}); err != nil {
			return err
		}
		fmt.Printf("\n--- Recomputed recommendation against playbook v%d ---\n", recomputed.PlaybookVersion)
		printJSON(recomputed)
	}

	versions, err := store.ListVersions(ctx, playbook.DemoPlaybookID)
	if err != nil {
		return err
	}
	fmt.Printf("\nRetained playbook versions: %v\n", versions)
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("marshal error: %v\n", err)
		return
	}
	fmt.Println(string(out))
}
