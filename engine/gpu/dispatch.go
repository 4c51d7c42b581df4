package gpu

// Dispatch is a sized compute launch.
type Dispatch struct {
	// Grid is the number of invocations requested along each axis.
	Grid [3]int
	// ThreadsPerGroup never exceeds the pipeline's MaxTotalThreadsPerThreadgroup in product.
	ThreadsPerGroup [3]int
	// Groups is the threadgroup count of the round-up strategy.
	Groups [3]int
	// Exact dispatches Grid threads directly instead of Groups threadgroups.
	Exact bool
}

// DispatchSize chooses threadgroup dimensions for a grid. With non-uniform threadgroup
// support the launch covers the grid exactly; otherwise it rounds the group count up so
// every element still gets at least one invocation and kernels must bounds-check.
//
// Parameters:
//   - grid: invocations along x, y and z; values below one are treated as one
//   - p: the pipeline being dispatched
//   - nonUniform: whether the device supports partial threadgroups
//
// Returns:
//   - Dispatch: the launch dimensions
func DispatchSize(grid [3]int, p ComputePipeline, nonUniform bool) Dispatch {
	for i := range grid {
		grid[i] = max(grid[i], 1)
	}
	tpg := threadsPerGroup(grid, p)
	d := Dispatch{Grid: grid, ThreadsPerGroup: tpg, Exact: nonUniform}
	for i := range grid {
		d.Groups[i] = (grid[i] + tpg[i] - 1) / tpg[i]
	}
	return d
}

func threadsPerGroup(grid [3]int, p ComputePipeline) [3]int {
	maxTotal := max(p.MaxTotalThreadsPerThreadgroup(), 1)
	if fixed := p.ThreadgroupSize(); fixed[0] > 0 {
		t := [3]int{fixed[0], max(fixed[1], 1), max(fixed[2], 1)}
		for t[0]*t[1]*t[2] > maxTotal {
			switch {
			case t[2] > 1:
				t[2] /= 2
			case t[1] > 1:
				t[1] /= 2
			default:
				t[0] = max(t[0]/2, 1)
			}
		}
		return t
	}

	width := min(max(p.ThreadExecutionWidth(), 1), maxTotal)
	switch {
	case grid[1] == 1 && grid[2] == 1:
		return [3]int{maxTotal, 1, 1}
	case grid[2] == 1:
		return [3]int{width, max(maxTotal/width, 1), 1}
	default:
		h := max(maxTotal/width/4, 1)
		d := max(maxTotal/(width*h), 1)
		return [3]int{width, h, d}
	}
}

// Encode records the dispatch on enc using the strategy chosen by DispatchSize.
func (d Dispatch) Encode(enc ComputeEncoder) {
	if d.Exact {
		enc.DispatchThreads(d.Grid, d.ThreadsPerGroup)
		return
	}
	enc.DispatchThreadgroups(d.Groups, d.ThreadsPerGroup)
}

// Invocations returns the number of invocations the dispatch launches.
func (d Dispatch) Invocations() int {
	if d.Exact {
		return d.Grid[0] * d.Grid[1] * d.Grid[2]
	}
	return d.Groups[0] * d.ThreadsPerGroup[0] * d.Groups[1] * d.ThreadsPerGroup[1] * d.Groups[2] * d.ThreadsPerGroup[2]
}
