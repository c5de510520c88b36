package instance

import (
	"collection-route-service/internal/domain"
	"slices"
)

// SparsifyOptions restricts customer-to-customer arcs to each node's K
// cheapest neighbours. MaxTime, when positive, also drops any optional arc
// slower than it.
type SparsifyOptions struct {
	K       int
	MaxTime float64
}

// sparsify keeps, among customer-to-customer arcs, the K cheapest outgoing
// and K cheapest incoming arcs of every customer. Arcs touching the depot or
// the facility are kept; facility arcs obey MaxTime except customer to
// facility, which every route needs to close its last trip. Blocked arcs
// stay removed.
func (in *Instance) sparsify(opts SparsifyOptions) {
	if opts.K <= 0 {
		return
	}

	customers := in.Customers()
	keep := make([][]bool, len(in.nodes))
	for i := range keep {
		keep[i] = make([]bool, len(in.nodes))
	}

	nearest := func(from int, outgoing bool) []int {
		cands := make([]int, 0, len(customers))
		for _, c := range customers {
			if c == from {
				continue
			}
			i, j := from, c
			if !outgoing {
				i, j = c, from
			}
			if in.allowed[i][j] {
				cands = append(cands, c)
			}
		}
		slices.SortStableFunc(cands, func(a, b int) int {
			ca, cb := in.cost[from][a], in.cost[from][b]
			if !outgoing {
				ca, cb = in.cost[a][from], in.cost[b][from]
			}
			switch {
			case ca < cb:
				return -1
			case ca > cb:
				return 1
			default:
				return 0
			}
		})
		if len(cands) > opts.K {
			cands = cands[:opts.K]
		}
		return cands
	}

	for _, c := range customers {
		for _, o := range nearest(c, true) {
			keep[c][o] = true
		}
		for _, o := range nearest(c, false) {
			keep[o][c] = true
		}
	}

	withinCutoff := func(i, j int) bool {
		return opts.MaxTime <= 0 || in.time[i][j] <= opts.MaxTime
	}

	for i := range in.nodes {
		for j := range in.nodes {
			if !in.allowed[i][j] {
				continue
			}
			ki, kj := in.nodes[i].Kind, in.nodes[j].Kind
			switch {
			case ki == domain.KindDepot || kj == domain.KindDepot:
				// Mandatory: depot <-> every node.
			case ki == domain.KindCustomer && kj == domain.KindFacility:
				// Mandatory: closes a trip.
			case ki == domain.KindFacility:
				in.allowed[i][j] = withinCutoff(i, j)
			default:
				in.allowed[i][j] = keep[i][j] && withinCutoff(i, j)
			}
		}
	}
}
