// Package assign implements RLAPSolve, the rectangular linear assignment
// solver consumed by the tracker as an external operation (spec.md §4.1
// step d, §6). It finds a minimum-cost matching between two unequal-size
// sets using a shortest-augmenting-path (Jonker-Volgenant style) algorithm
// over a dense cost matrix.
package assign

import (
	"math"

	"github.com/zsiec/asdcore/internal/asderrors"
)

// ExitCode mirrors the external contract's int exit code: 0 is success,
// positive values are warnings that still yield a (possibly partial) match.
type ExitCode int

// Exit codes returned by Solve, matching spec.md §6's RLAPSolve contract.
const (
	ExitOK ExitCode = iota
	ExitInfeasible
	ExitInvalidCostMatrix
	ExitUnknown
)

const infeasible = math.MaxFloat64 / 4

// Solve finds a minimum-cost assignment over the dense cost matrix (rows x
// cols, row-major, len(cost) == rows*cols). It returns parallel slices
// rowMatch/colMatch where rowMatch[i] is the column assigned to row i (or
// -1 if unmatched), and colMatch[j] is the row assigned to column j (or
// -1). A non-zero ExitCode indicates a warning or fatal matrix problem;
// per spec.md §4.1's failure model, callers should still apply any
// non-negative entries in rowMatch/colMatch since partial matches remain
// valid.
func Solve(cost []float64, rows, cols int) (rowMatch, colMatch []int, code ExitCode, err error) {
	rowMatch = makeUnmatched(rows)
	colMatch = makeUnmatched(cols)

	if rows == 0 || cols == 0 {
		return rowMatch, colMatch, ExitOK, nil
	}
	if len(cost) != rows*cols {
		return rowMatch, colMatch, ExitInvalidCostMatrix, asderrors.New(asderrors.RLAPInvalidCostMatrix, "assign")
	}
	for _, c := range cost {
		if math.IsNaN(c) {
			return rowMatch, colMatch, ExitInvalidCostMatrix, asderrors.New(asderrors.RLAPInvalidCostMatrix, "assign")
		}
	}

	// Pad to a square matrix with infeasible-cost dummy entries so the
	// classic square-LAP shortest-augmenting-path algorithm applies; dummy
	// assignments are filtered back out of the result.
	n := rows
	if cols > n {
		n = cols
	}

	c := make([][]float64, n)
	for i := range c {
		c[i] = make([]float64, n)
		for j := range c[i] {
			switch {
			case i < rows && j < cols:
				c[i][j] = cost[i*cols+j]
			default:
				c[i][j] = infeasible
			}
		}
	}

	rowToCol, colToRow, ok := jonkerVolgenant(c, n)

	anyMatch := false
	for i := 0; i < rows; i++ {
		j := rowToCol[i]
		if j < cols && c[i][j] < infeasible {
			rowMatch[i] = j
			colMatch[j] = i
			anyMatch = true
		}
	}
	_ = colToRow

	if !ok {
		return rowMatch, colMatch, ExitInfeasible, asderrors.New(asderrors.RLAPInfeasible, "assign")
	}
	if !anyMatch && rows > 0 && cols > 0 {
		return rowMatch, colMatch, ExitInfeasible, asderrors.New(asderrors.RLAPInfeasible, "assign")
	}
	return rowMatch, colMatch, ExitOK, nil
}

func makeUnmatched(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	return out
}

// jonkerVolgenant solves the square n x n assignment problem via successive
// shortest augmenting paths with a potential (dual variable) relaxation.
// Returns rowToCol/colToRow assignment arrays and whether a complete
// (possibly all-infeasible) assignment was found.
func jonkerVolgenant(c [][]float64, n int) (rowToCol, colToRow []int, ok bool) {
	const unassigned = 0

	u := make([]float64, n+1) // potentials over rows, 1-indexed dummy at 0
	v := make([]float64, n+1)
	p := make([]int, n+1) // p[j] = row assigned to column j (1-indexed), 0 = dummy
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := 0; j <= n; j++ {
			minv[j] = math.MaxFloat64
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.MaxFloat64
			j1 := -1

			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := c[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 == -1 {
				return nil, nil, false
			}

			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == unassigned {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	rowToCol = make([]int, n)
	colToRow = make([]int, n)
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			rowToCol[p[j]-1] = j - 1
			colToRow[j-1] = p[j] - 1
		}
	}
	return rowToCol, colToRow, true
}
