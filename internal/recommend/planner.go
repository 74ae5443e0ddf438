// Package recommend fuses a user's recent behavior into an interest vector and
// turns it into one blended, category-spanning recommendation list.
package recommend

import (
	"sort"

	"github.com/osusume-io/osusume/internal/partition"
	"github.com/osusume-io/osusume/internal/vector"
)

// Quota is the candidate budget for one partition. The request size for a
// target count T is floor(T*Ratio) + Floor, raised to Min when set, so sparse
// categories are never starved to zero. Order in the policy is priority order
// and breaks score ties.
type Quota struct {
	Key   string  `yaml:"key"`
	Ratio float64 `yaml:"ratio"`
	Floor int     `yaml:"floor"`
	Min   int     `yaml:"min"`
}

// DefaultQuotas preserves the tuning of the source system: half the list from
// the primary category, 30% secondary, the rest from the long tail with a
// minimum of three so the "others" bucket always gets a look-in.
func DefaultQuotas() []Quota {
	return []Quota{
		{Key: "apparel", Ratio: 0.5, Floor: 2},
		{Key: "footwear", Ratio: 0.3, Floor: 1},
		{Key: partition.DefaultKey, Ratio: 0.2, Floor: 1, Min: 3},
	}
}

// Size returns the candidate budget for a target count of t. Never negative,
// and at least Floor for any t >= 0.
func (q Quota) Size(t int) int {
	if t < 0 {
		t = 0
	}
	k := int(float64(t)*q.Ratio) + q.Floor
	if k < q.Min {
		k = q.Min
	}
	if k < 0 {
		k = 0
	}
	return k
}

// Planner allocates per-partition quotas and merges per-partition candidates
// into one globally ranked list.
type Planner struct {
	registry *partition.Registry
	quotas   []Quota
}

// NewPlanner creates a planner over the registry with the given quota policy.
// An empty policy falls back to DefaultQuotas.
func NewPlanner(registry *partition.Registry, quotas []Quota) *Planner {
	if len(quotas) == 0 {
		quotas = DefaultQuotas()
	}
	return &Planner{registry: registry, quotas: quotas}
}

// Quotas returns the policy in priority order.
func (p *Planner) Quotas() []Quota {
	return p.quotas
}

type candidate struct {
	vector.Result
	priority int // position in the quota policy
	rank     int // original rank inside its partition
}

// Blend queries every configured partition with its quota for target count t,
// merges the candidates, and re-sorts globally by descending score. Ties go to
// the higher-priority partition, then to the better per-partition rank.
// The result may hold fewer than t entries; under-fill is the caller's
// fallback case, never an error.
func (p *Planner) Blend(query []float32, t int) []vector.Result {
	if t <= 0 {
		return nil
	}
	var candidates []candidate
	for priority, quota := range p.quotas {
		hits := p.registry.Search(quota.Key, query, quota.Size(t))
		for rank, hit := range hits {
			candidates = append(candidates, candidate{Result: hit, priority: priority, rank: rank})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].rank < candidates[j].rank
	})
	if len(candidates) > t {
		candidates = candidates[:t]
	}
	out := make([]vector.Result, len(candidates))
	for i, c := range candidates {
		out[i] = c.Result
	}
	return out
}
