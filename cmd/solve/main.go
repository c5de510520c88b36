package main

import (
	"collection-route-service/internal/app"
	"collection-route-service/internal/config"
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/services"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
)

type output struct {
	Plan        services.Summary  `json:"plan"`
	Reoptimized *services.Summary `json:"reoptimized,omitempty"`
}

// solve plans one YAML scenario and prints the route summary as JSON. When
// the scenario carries a changeset the plan is reoptimized with it too.
func main() {
	configDir := flag.String("config", "", "directory holding config.yaml and .env")
	scenario := flag.String("scenario", "", "scenario YAML file")
	flag.Parse()

	if *scenario == "" {
		fmt.Fprintln(os.Stderr, "usage: solve -scenario scenario.yaml [-config dir]")
		os.Exit(2)
	}

	if err := run(*configDir, *scenario); err != nil {
		log.Fatal(err)
	}
}

func run(configDir, scenarioPath string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return err
	}
	level, _ := obs.ParseLevel(cfg.LogLevel)
	obs.SetLevel(level)

	s, err := app.LoadScenario(scenarioPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	plan, err := a.Planner.Plan(ctx, s.PlanRequest())
	if err != nil {
		return err
	}
	out := output{Plan: services.Summarize(plan.Solution)}

	if req, ok := s.ReoptimizeRequest(plan.ID); ok {
		child, err := a.Planner.Reoptimize(ctx, req)
		if err != nil {
			return err
		}
		sum := services.Summarize(child.Solution)
		out.Reoptimized = &sum
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
