// Command gentargets writes a deterministic target catalog scattered around
// a center point, for local runs of claimd and the API test suites.
//
// Usage:
//
//	go run ./cmd/gentargets \
//	  -center 40.4155,-3.7074 \
//	  -count 25 -radius 2000 -seed 7 \
//	  -out data/mock/targets.json
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/capyquest-claim/internal/adapter/distribution"
	"github.com/couchcryptid/capyquest-claim/internal/domain"
)

const metersPerDegree = 111_320.0

// rarityWeights are the relative odds of each tier, most common first.
var rarityWeights = []int{50, 25, 15, 7, 3}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	center := flag.String("center", "", "center of the scatter as \"lat,lng\"")
	count := flag.Int("count", 25, "number of targets to generate")
	radius := flag.Float64("radius", 2000, "maximum distance from the center in meters")
	seed := flag.Uint64("seed", 1, "random seed; the same seed yields the same catalog")
	firstID := flag.Int("first-id", 1, "token id of the first target")
	out := flag.String("out", "", "output path for the catalog JSON")
	flag.Parse()

	if *center == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -center, -out")
	}
	if *count <= 0 || *radius <= 0 {
		return fmt.Errorf("-count and -radius must be positive")
	}

	at, err := domain.ParseCoordinate(*center)
	if err != nil {
		return err
	}

	targets := generate(at, *count, *radius, *seed, *firstID)
	if err := writeCatalog(*out, targets); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	log.Printf("wrote %d targets: %s", len(targets), *out)

	printStats(at, targets)
	return nil
}

func generate(center domain.Coordinate, count int, radius float64, seed uint64, firstID int) []domain.ClaimTarget {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	targets := make([]domain.ClaimTarget, 0, count)
	for i := range count {
		// sqrt keeps the scatter uniform over the disc rather than bunched at the center.
		d := radius * math.Sqrt(rng.Float64())
		bearing := rng.Float64() * 2 * math.Pi
		targets = append(targets, domain.ClaimTarget{
			TokenID:  strconv.Itoa(firstID + i),
			Location: offset(center, d, bearing),
			Rarity:   pickRarity(rng),
		})
	}
	return targets
}

// offset moves c by d meters along bearing on a locally flat earth.
func offset(c domain.Coordinate, d, bearing float64) domain.Coordinate {
	dLat := d * math.Cos(bearing) / metersPerDegree
	dLng := d * math.Sin(bearing) / (metersPerDegree * math.Cos(c.Lat*math.Pi/180))
	return domain.Coordinate{
		Lat: round6(c.Lat + dLat),
		Lng: round6(c.Lng + dLng),
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func pickRarity(rng *rand.Rand) domain.Rarity {
	total := 0
	for _, w := range rarityWeights {
		total += w
	}
	n := rng.IntN(total)
	for i, w := range rarityWeights {
		if n < w {
			return domain.Rarity(i)
		}
		n -= w
	}
	return 0
}

func writeCatalog(path string, targets []domain.ClaimTarget) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := distribution.WriteCatalog(f, targets); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStats(center domain.Coordinate, targets []domain.ClaimTarget) {
	byRarity := make([]int, len(rarityWeights))
	nearest, farthest := math.Inf(1), 0.0
	for _, t := range targets {
		if int(t.Rarity) < len(byRarity) {
			byRarity[t.Rarity]++
		}
		d := domain.DistanceMeters(center, t.Location)
		nearest = math.Min(nearest, d)
		farthest = math.Max(farthest, d)
	}

	fmt.Println("\n=== Catalog stats ===")
	fmt.Printf("Total: %d\n", len(targets))
	for i, n := range byRarity {
		fmt.Printf("  %-16s %d\n", domain.Rarity(i).Name(), n)
	}
	fmt.Printf("Distance from center: nearest=%.1fm farthest=%.1fm\n", nearest, farthest)
}
