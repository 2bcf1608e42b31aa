package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSolveSquareOptimal(t *testing.T) {
	t.Parallel()
	// Optimal assignment: row0->col1 (cost 1), row1->col0 (cost 1) = 2,
	// versus the diagonal which costs 4+4=8.
	cost := []float64{
		4, 1,
		1, 4,
	}
	rowMatch, colMatch, code, err := Solve(cost, 2, 2)
	assert.NoError(t, err)
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, []int{1, 0}, rowMatch)
	assert.Equal(t, []int{1, 0}, colMatch)
}

func TestSolveRectangularMoreRows(t *testing.T) {
	t.Parallel()
	// 3 rows, 2 cols: one row must go unmatched.
	cost := []float64{
		1, 9,
		9, 1,
		5, 5,
	}
	rowMatch, colMatch, code, err := Solve(cost, 3, 2)
	assert.NoError(t, err)
	assert.Equal(t, ExitOK, code)

	matchedRows := 0
	for _, m := range rowMatch {
		if m >= 0 {
			matchedRows++
		}
	}
	assert.Equal(t, 2, matchedRows)
	assert.Equal(t, 0, rowMatch[0])
	assert.Equal(t, 1, rowMatch[1])
	assert.Equal(t, -1, rowMatch[2])
	assert.Equal(t, []int{0, 1}, colMatch)
}

func TestSolveEmptyInputs(t *testing.T) {
	t.Parallel()
	rowMatch, colMatch, code, err := Solve(nil, 0, 0)
	assert.NoError(t, err)
	assert.Equal(t, ExitOK, code)
	assert.Empty(t, rowMatch)
	assert.Empty(t, colMatch)
}

func TestSolveInvalidMatrixShape(t *testing.T) {
	t.Parallel()
	_, _, code, err := Solve([]float64{1, 2, 3}, 2, 2)
	assert.Error(t, err)
	assert.Equal(t, ExitInvalidCostMatrix, code)
}

func TestSolveNaNCost(t *testing.T) {
	t.Parallel()
	cost := []float64{1, 2, 3, nanValue()}
	_, _, code, err := Solve(cost, 2, 2)
	assert.Error(t, err)
	assert.Equal(t, ExitInvalidCostMatrix, code)
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
