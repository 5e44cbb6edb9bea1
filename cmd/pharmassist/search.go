package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stupiduntilnot/pharmassist/internal/domain"
	"github.com/stupiduntilnot/pharmassist/internal/geo"
	"github.com/stupiduntilnot/pharmassist/internal/similarity"
	"github.com/stupiduntilnot/pharmassist/internal/store"
)

type searchOptions struct {
	lat, lon float64
	near     bool
	mode     string
	limit    int
}

func newSearchCmd(c *cli) *cobra.Command {
	opts := searchOptions{}
	cmd := &cobra.Command{
		Use:   "search {products|pharmacies} QUERY",
		Short: "Search the catalog by name, exact matches first",
		Long: `Searches products or pharmacies. Substring matches are listed first; when
there are none, names similar to the query are listed by score.

With --lat and --lon, pharmacy hits show their distance and estimated travel
time, and the closest hit is highlighted.`,
		Args:      cobra.MinimumNArgs(2),
		ValidArgs: []string{domain.CollectionProducts, domain.CollectionPharmacies},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.near = cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
			if !cmd.Flags().Changed("mode") {
				opts.mode = c.cfg.TravelMode
			}
			st, events, ownsDB, err := openStore(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if ownsDB {
				defer events.Close()
			}
			return runSearch(cmd.Context(), st, args[0], strings.Join(args[1:], " "), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Float64Var(&opts.lat, "lat", 0, "reference latitude")
	cmd.Flags().Float64Var(&opts.lon, "lon", 0, "reference longitude")
	cmd.Flags().StringVar(&opts.mode, "mode", string(geo.Driving), "travel mode for ETAs: walking, cycling, driving")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "maximum hits")
	return cmd
}

func runSearch(ctx context.Context, st store.Reader, kind, query string, opts searchOptions, out io.Writer) error {
	switch kind {
	case domain.CollectionProducts, "product":
		docs, err := st.List(ctx, domain.CollectionProducts, store.Filter{})
		if err != nil {
			return err
		}
		hits := similarity.Search(query, docs, field("name"), field("category"), field("description"))
		return printProducts(out, capHits(hits, opts.limit))
	case domain.CollectionPharmacies, "pharmacy":
		docs, err := st.List(ctx, domain.CollectionPharmacies, store.Filter{})
		if err != nil {
			return err
		}
		hits := similarity.Search(query, docs, field("name"), field("address"))
		return printPharmacies(out, capHits(hits, opts.limit), opts)
	default:
		return fmt.Errorf("unknown search kind %q (want products or pharmacies)", kind)
	}
}

func field(key string) similarity.Field[store.Document] {
	return func(d store.Document) string { return store.String(d, key) }
}

func capHits[T any](hits []similarity.Result[T], n int) []similarity.Result[T] {
	if n > 0 && len(hits) > n {
		return hits[:n]
	}
	return hits
}

func matchLabel(exact bool, score float64) string {
	if exact {
		return "exact"
	}
	return fmt.Sprintf("%.2f", score)
}

func printProducts(out io.Writer, hits []similarity.Result[store.Document]) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(out, "no products found")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MATCH\tID\tNAME\tPRICE\tLINK")
	for _, h := range hits {
		d := h.Item
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n",
			matchLabel(h.Exact, h.Score), store.ID(d), store.String(d, "name"),
			store.Float(d, "price"), domain.ProductPath(store.ID(d)))
	}
	return w.Flush()
}

func printPharmacies(out io.Writer, hits []similarity.Result[store.Document], opts searchOptions) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintln(out, "no pharmacies found")
		return err
	}
	ref := geo.Point{Lat: opts.lat, Lon: opts.lon}
	mode := geo.ParseTravelMode(opts.mode)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MATCH\tID\tNAME\tDISTANCE\tETA\tLINK")
	for _, h := range hits {
		d := h.Item
		distance, eta := "-", "-"
		if p, ok := geo.Resolve(d); ok && opts.near {
			km := geo.Distance(ref, p)
			distance = fmt.Sprintf("%.1f km", km)
			if e, ok := geo.EstimateETA(km, mode); ok {
				eta = e.Formatted
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			matchLabel(h.Exact, h.Score), store.ID(d), store.String(d, "name"),
			distance, eta, domain.VendorPath(store.ID(d)))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !opts.near {
		return nil
	}
	docs := make([]store.Document, len(hits))
	for i, h := range hits {
		docs[i] = h.Item
	}
	if m, ok := geo.Closest(docs, ref, mode, nil); ok {
		_, err := fmt.Fprintf(out, "\nclosest: %s (%.1f km, %s %s)\n",
			store.String(m.Item, "name"), m.Distance, m.ETA.Formatted, m.ETA.Mode)
		return err
	}
	return nil
}
