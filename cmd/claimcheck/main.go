// Command claimcheck reports, offline, which targets of a catalog a player
// standing at a coordinate could claim. It also sanity checks the catalog
// itself: duplicate token ids, unknown rarity tiers and unparseable ids.
//
// Usage:
//
//	go run ./cmd/claimcheck \
//	  -catalog data/mock/targets.json \
//	  -at 40.4155,-3.7074 \
//	  -radius 15
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/couchcryptid/capyquest-claim/internal/adapter/distribution"
	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

// phase tracks pass/fail for a check phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	catalogPath := flag.String("catalog", "", "path to a target catalog JSON document")
	at := flag.String("at", "", "player position as \"lat,lng\"")
	radius := flag.Float64("radius", 15, "claim radius in meters")
	flag.Parse()

	if *catalogPath == "" || *at == "" {
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(os.Stdout, *catalogPath, *at, *radius))
}

func run(out io.Writer, catalogPath, at string, radius float64) int {
	player, err := domain.ParseCoordinate(at)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: -at: %v\n", err)
		return 2
	}

	f, err := os.Open(catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open catalog: %v\n", err)
		return 2
	}
	defer f.Close()

	logger, _ := zap.NewDevelopment()
	targets, err := distribution.ParseCatalog(f, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 2
	}

	integrity := checkCatalog(targets)
	rows := evaluate(targets, player, radius)

	fmt.Fprintf(out, "=== Claim check at %s (radius %.0fm) ===\n\n", player, radius)
	printRows(out, rows)

	status := "PASS"
	if !integrity.passed() {
		status = fmt.Sprintf("FAIL (%d errors)", len(integrity.errors))
	}
	fmt.Fprintf(out, "\n  %-24s %s\n", integrity.name, status)
	for i, e := range integrity.errors {
		fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
	}

	eligible := 0
	for _, r := range rows {
		if r.eligibility.Allowed {
			eligible++
		}
	}
	fmt.Fprintf(out, "\n%d of %d targets claimable.\n", eligible, len(rows))

	if !integrity.passed() {
		return 1
	}
	return 0
}

func checkCatalog(targets []domain.ClaimTarget) *phase {
	p := &phase{name: "Catalog integrity"}
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t.TokenID] {
			p.errorf("token %s: duplicate token id", t.TokenID)
		}
		seen[t.TokenID] = true

		if _, err := t.TokenIDInt(); err != nil {
			p.errorf("token %s: %v", t.TokenID, err)
		}
		if t.Rarity < 0 || t.Rarity > 4 {
			p.errorf("token %s: rarity %d outside 0..4", t.TokenID, t.Rarity)
		}
	}
	return p
}

type row struct {
	target      domain.ClaimTarget
	eligibility domain.Eligibility
}

// evaluate scores every target and orders them nearest first.
func evaluate(targets []domain.ClaimTarget, player domain.Coordinate, radius float64) []row {
	rows := make([]row, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, row{target: t, eligibility: domain.EvaluateEligibility(&player, t.Location, radius)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return *rows[i].eligibility.Distance < *rows[j].eligibility.Distance
	})
	return rows
}

func printRows(out io.Writer, rows []row) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tRARITY\tLOCATION\tDISTANCE\tCLAIMABLE")
	for _, r := range rows {
		claimable := "no"
		if r.eligibility.Allowed {
			claimable = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1fm\t%s\n",
			r.target.TokenID, r.target.Rarity.Name(), r.target.Location, *r.eligibility.Distance, claimable)
	}
	_ = tw.Flush()
}
