package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/RMahshie/skywatch/internal/matching"
	"github.com/RMahshie/skywatch/internal/signature"
	"github.com/RMahshie/skywatch/pkg/models"
)

func newSignaturesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signatures",
		Short: "Inspect the signature catalog",
	}

	var source string
	cmd.PersistentFlags().StringVar(&source, "source", "", "signature source; defaults to SIGNATURES_SOURCE")

	resolve := func() string {
		if source != "" {
			a.cfg.Signature.Source = source
		}
		return a.cfg.Signature.Source
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load the catalog and report the first invalid record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src := resolve()
			catalog, err := loadCatalog(cmd.Context(), a.cfg)
			if err != nil {
				var verr *signature.ValidationError
				if errors.As(err, &verr) {
					return fmt.Errorf("%s is invalid: %w", src, verr)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d signatures OK\n", src, catalog.Len())
			return nil
		},
	})

	var (
		freq  float64
		rssi  int
		burst string
	)
	explain := &cobra.Command{
		Use:   "explain",
		Short: "Score a detection against every signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolve()
			catalog, err := loadCatalog(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}

			d := models.Detection{
				FrequencyMHz: freq,
				RSSIDb:       rssi,
				BurstPattern: burst,
				DurationMs:   models.DefaultDurationMs,
				CapturedAt:   time.Now(),
			}
			engine := matching.NewEngine(catalog, a.cfg.Scanner.MinRSSIThreshold)
			return writeExplain(cmd, engine, d)
		},
	}
	explain.Flags().Float64Var(&freq, "freq", 0, "peak frequency in MHz")
	explain.Flags().IntVar(&rssi, "rssi", 0, "peak power in dB")
	explain.Flags().StringVar(&burst, "burst", models.UnknownBurstPattern, "burst pattern label")
	_ = explain.MarkFlagRequired("freq")
	cmd.AddCommand(explain)

	return cmd
}

func writeExplain(cmd *cobra.Command, engine *matching.Engine, d models.Detection) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDRONE\tFREQ\tBURST\tPOWER\tNEED_RSSI\tSCORE")

	patterns := engine.Catalog().Patterns()
	for i, b := range engine.Explain(d) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.1f\t%.2f\n",
			i, patterns[i].DroneName, mark(b.Frequency), mark(b.Burst), mark(b.Power), b.RequiredRSSI, b.Total)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if result, ok := engine.Match(d); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "match: %s (confidence %.2f)\n", result.Pattern.DroneName, result.Confidence)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "match: none")
	}
	return nil
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
