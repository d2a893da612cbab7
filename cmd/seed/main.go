package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/solranch/backend/internal/config"
	"github.com/solranch/backend/internal/repository"
	"github.com/solranch/backend/internal/seed"
)

func main() {
	defaults := seed.DefaultConfig()
	var (
		verifiers   = flag.Int("verifiers", defaults.NumVerifiers, "number of verifiers to generate")
		ranches     = flag.Int("ranches", defaults.NumRanches, "number of ranches to generate")
		animals     = flag.Int("animals-per-ranch", defaults.AnimalsPerRanch, "maximum animals per verified ranch")
		verified    = flag.Float64("verified-chance", defaults.VerifiedChance, "probability a ranch or animal is verified")
		onSale      = flag.Float64("on-sale-chance", defaults.OnSaleChance, "probability a verified animal is listed for sale")
		randSeed    = flag.Int64("seed", defaults.Seed, "random seed for deterministic generation")
		outputDir   = flag.String("output-dir", "", "write JSON files to this directory instead of the database")
		writeStdout = flag.Bool("stdout", false, "write the combined dataset to stdout instead of the database")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	seeder, err := seed.New(seed.Config{
		ProgramID:       cfg.Solana.ProgramID,
		NumVerifiers:    *verifiers,
		NumRanches:      *ranches,
		AnimalsPerRanch: *animals,
		VerifiedChance:  clampProbability(*verified),
		OnSaleChance:    clampProbability(*onSale),
		Seed:            *randSeed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid seeder configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dataset, err := seeder.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *writeStdout:
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
	case *outputDir != "":
		if err := seed.WriteDataset(dataset, *outputDir); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "Wrote %d verifiers, %d ranches and %d animals into %s\n",
			len(dataset.Verifiers), len(dataset.Ranches), len(dataset.Animals), *outputDir)
	default:
		db, err := repository.Open(cfg.Database)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			os.Exit(1)
		}
		if err := seeder.Apply(ctx, dataset, repository.New(db)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed database: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "Seeded %d verifiers, %d ranches and %d animals\n",
			len(dataset.Verifiers), len(dataset.Ranches), len(dataset.Animals))
	}
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
