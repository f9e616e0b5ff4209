// Command ripartizione splits a roof and a general expense over the units of
// a millesimal table and prints one row per household.
//
//	ripartizione -input data/tabella_millesimale.csv -roof 1200 -general 3400,50
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"condomini/internal/allocation"
	"condomini/internal/cli"
	"condomini/internal/core"
	"condomini/internal/log"
	"condomini/internal/sheets/csvfile"
)

type options struct {
	input       string
	roof        string
	general     string
	vatIncluded bool
	vatRate     float64
	asJSON      bool
	importDB    string
}

type report struct {
	Input       string                  `json:"input"`
	Roof        float64                 `json:"roof_expense"`
	General     float64                 `json:"general_expense"`
	VATIncluded bool                    `json:"vat_included"`
	VATRate     float64                 `json:"vat_rate"`
	Households  []core.HouseholdSummary `json:"households"`
	Total       decimal.Decimal         `json:"total"`
}

func main() {
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "ripartizione:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("ripartizione", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.input, "input", "./data/tabella_millesimale.csv", "CSV unit table")
	fs.StringVar(&o.roof, "roof", "", "roof expense total, comma or dot decimals")
	fs.StringVar(&o.general, "general", "", "general expense total, comma or dot decimals")
	fs.BoolVar(&o.vatIncluded, "vat-included", false, "totals already include VAT")
	fs.Float64Var(&o.vatRate, "vat", 0.10, "VAT rate added when -vat-included is not set")
	fs.BoolVar(&o.asJSON, "json", false, "print JSON instead of a table")
	fs.StringVar(&o.importDB, "import-sqlite", "", "also import the table into this SQLite database")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.vatRate < 0 || o.vatRate > 1 {
		return o, fmt.Errorf("invalid VAT rate %v: must be between 0 and 1", o.vatRate)
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) error {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	roofCents, err := core.ParseDecimalToCents(o.roof)
	if err != nil {
		return fmt.Errorf("-roof %q: %w", o.roof, err)
	}
	generalCents, err := core.ParseDecimalToCents(o.general)
	if err != nil {
		return fmt.Errorf("-general %q: %w", o.general, err)
	}
	roof := core.GrossAmount(core.CentsToEuros(roofCents), o.vatRate, o.vatIncluded)
	general := core.GrossAmount(core.CentsToEuros(generalCents), o.vatRate, o.vatIncluded)

	units, err := csvfile.NewReader(o.input).ReadUnits(ctx)
	if err != nil {
		return err
	}
	fractions, err := allocation.ComputeFractions(units)
	if err != nil {
		return err
	}
	households, err := allocation.Allocate(fractions, roof, general)
	if err != nil {
		return err
	}

	if o.importDB != "" {
		repo := cli.InitSQLite(logger, o.importDB)
		defer repo.Close()
		n, err := cli.ImportUnitTable(ctx, o.input, repo)
		if err != nil {
			return err
		}
		logger.Info("Unit table imported", log.FieldUnits, n, "database", o.importDB)
	}

	r := report{
		Input:       o.input,
		Roof:        roof,
		General:     general,
		VATIncluded: o.vatIncluded,
		VATRate:     o.vatRate,
		Households:  households,
		Total:       allocation.GrandTotal(households),
	}
	if o.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return writeTable(stdout, r)
}

func writeTable(out io.Writer, r report) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Nucleo\tInterni\tMillesimi\tTetto\tGenerali\tTotale\t")
	for _, h := range r.Households {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\t%s\t\n",
			h.Household,
			strings.Join(h.Interiors, ", "),
			h.Share,
			h.RoofAmount.StringFixed(allocation.MoneyPlaces),
			h.GeneralAmount.StringFixed(allocation.MoneyPlaces),
			h.TotalAmount.StringFixed(allocation.MoneyPlaces))
	}
	fmt.Fprintf(tw, "Totale\t\t\t\t\t%s\t\n", r.Total.StringFixed(allocation.MoneyPlaces))
	return tw.Flush()
}
