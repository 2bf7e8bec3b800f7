package probe

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/csvmerge/internal/domain/merge"
)

// Case is one generated merge request.
type Case struct {
	ID        string     `json:"id"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
	Lag       int        `json:"n"`
	Companies [][]string `json:"companies"`
	Daily     [][]string `json:"daily"`
}

const (
	// Rows this many days outside the window exercise the discard path.
	windowSlack = 5
	valueRange  = 1000
)

// generateCases builds cfg.Cases deterministic fixtures from cfg.Seed.
// Each (company, day) pair appears at most once.
func generateCases(cfg *Config) []Case {
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	cases := make([]Case, cfg.Cases)
	for i := range cases {
		cases[i] = generateCase(rng, cfg)
	}
	return cases
}

func generateCase(rng *rand.Rand, cfg *Config) Case {
	base := time.Date(2000+rng.IntN(60), time.January, 1, 0, 0, 0, 0, time.UTC)
	start := base.AddDate(0, 0, rng.IntN(365))
	days := 1 + rng.IntN(max(cfg.WindowDays, 1))
	end := start.AddDate(0, 0, days-1)

	c := Case{
		ID:        uuid.NewString(),
		StartDate: merge.FormatDate(start),
		EndDate:   merge.FormatDate(end),
		Lag:       rng.IntN(cfg.MaxLag + 1),
	}

	span := days + 2*windowSlack
	for j := 0; j < cfg.Companies; j++ {
		id := uuid.NewString()
		c.Companies = append(c.Companies, []string{id, fmt.Sprintf("Company %d", j)})
		for _, off := range rng.Perm(span)[:rng.IntN(span+1)] {
			date := start.AddDate(0, 0, off-windowSlack)
			value := rng.IntN(2*valueRange+1) - valueRange
			c.Daily = append(c.Daily, []string{id, merge.FormatDate(date), fmt.Sprint(value)})
		}
	}
	rng.Shuffle(len(c.Daily), func(a, b int) { c.Daily[a], c.Daily[b] = c.Daily[b], c.Daily[a] })
	return c
}
