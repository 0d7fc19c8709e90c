package tracking

import "math"

// forbidden marks a cost-matrix entry that the solver must never choose. It
// stays small enough that pixel costs added to it keep their precision.
const forbidden = 1e9

// assign solves the rectangular assignment problem for an n×m cost matrix
// with the Kuhn-Munkres algorithm (Jonker-Volgenant potentials). It returns
// result[i] = column assigned to row i, or -1. Costs >= forbidden are never
// assigned.
func assign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	result := make([]int, n)
	if m == 0 {
		for i := range result {
			result[i] = -1
		}
		return result
	}

	dim := max(n, m)
	at := func(i, j int) float64 {
		if i < n && j < m {
			return cost[i][j]
		}
		return forbidden
	}

	const inf = math.MaxFloat64 / 2
	// 1-indexed; column 0 is virtual.
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	rowOf := make([]int, dim+1)
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		rowOf[0] = i
		col := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[col] = true
			row := rowOf[col]
			delta := inf
			next := -1
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				if cur := at(row-1, j-1) - u[row] - v[j]; cur < minv[j] {
					minv[j] = cur
					way[j] = col
				}
				if minv[j] < delta {
					delta = minv[j]
					next = j
				}
			}
			if next < 0 {
				break
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[rowOf[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			col = next
			if rowOf[col] == 0 {
				break
			}
		}

		for col != 0 {
			prev := way[col]
			rowOf[col] = rowOf[prev]
			col = prev
		}
	}

	for i := range result {
		result[i] = -1
	}
	for j := 1; j <= dim; j++ {
		row, c := rowOf[j]-1, j-1
		if row < 0 || row >= n || c >= m || cost[row][c] >= forbidden {
			continue
		}
		result[row] = c
	}
	return result
}
