package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/stupiduntilnot/pharmassist/internal/db"
	"github.com/stupiduntilnot/pharmassist/internal/domain"
	"github.com/stupiduntilnot/pharmassist/internal/store"
)

var seedCollections = []string{
	domain.CollectionUsers,
	domain.CollectionAuthUsers,
	domain.CollectionPharmacies,
	domain.CollectionProducts,
	domain.CollectionCarts,
	domain.CollectionOrders,
	domain.CollectionPrescriptions,
}

// fixtures maps collection -> document id -> document.
type fixtures map[string]map[string]store.Document

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load fixture documents from a YAML or JSON file into the store",
		Long: `The file maps collection names to documents keyed by id:

  pharmacies:
    ph1: {name: Central, lat: 40.41, lon: -3.70, verified: true}
  products:
    p1: {name: Paracetamol, price: 3.5, pharmacyId: ph1}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fx, err := loadFixtures(args[0])
			if err != nil {
				return err
			}
			st, events, ownsDB, err := openStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if ownsDB {
				defer events.Close()
			}

			counts, err := seed(cmd.Context(), st, fx)
			if err != nil {
				return err
			}
			payload := map[string]any{"file": args[0]}
			for k, v := range counts {
				payload[k] = v
			}
			if _, err := db.LogEvent(events, nil, db.EventStoreSeeded, payload); err != nil {
				c.logger.Warn("failed to log store.seeded", zap.Error(err))
			}
			for _, name := range slices.Sorted(maps.Keys(counts)) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", name, counts[name])
			}
			return nil
		},
	}
}

// loadFixtures parses a fixture file. JSON is accepted as YAML.
func loadFixtures(path string) (fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	var fx fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures %s: %w", path, err)
	}
	for name := range fx {
		if !slices.Contains(seedCollections, name) {
			return nil, fmt.Errorf("unknown collection %q in %s", name, path)
		}
	}
	return fx, nil
}

// seed writes every fixture document and returns per-collection counts.
func seed(ctx context.Context, st store.Store, fx fixtures) (map[string]int, error) {
	counts := map[string]int{}
	for _, name := range seedCollections {
		docs := fx[name]
		for _, id := range slices.Sorted(maps.Keys(docs)) {
			if err := st.Put(ctx, name, id, docs[id]); err != nil {
				return counts, err
			}
			counts[name]++
		}
	}
	return counts, nil
}
