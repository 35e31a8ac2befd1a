package scorer

import (
	"math"
	"math/rand"
)

// kmeans partitions rows into k clusters with Lloyd's algorithm. All
// randomness comes from the seeded source, so identical inputs yield
// identical labels. Assignment ties at equal distance go to the
// lowest-indexed centroid.
func kmeans(features [][]float64, k int, seed int64, maxIter int) []int {
	n := len(features)
	labels := make([]int, n)
	if n == 0 || k <= 1 {
		return labels
	}
	if k > n {
		k = n
	}
	if maxIter <= 0 {
		maxIter = 100
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := initCentroids(features, k, rng)
	k = len(centroids) // may shrink when there are fewer distinct rows than k

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, row := range features {
			best := nearestCentroid(row, centroids)
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}

		recomputeCentroids(features, labels, centroids)

		if !changed && iter > 0 {
			break
		}
	}

	return labels
}

// initCentroids picks k distinct starting rows in seeded-shuffle order.
func initCentroids(features [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(features)
	perm := rng.Perm(n)

	var centroids [][]float64
	for _, idx := range perm {
		row := features[idx]
		if containsRow(centroids, row) {
			continue
		}
		c := make([]float64, len(row))
		copy(c, row)
		centroids = append(centroids, c)
		if len(centroids) == k {
			break
		}
	}
	return centroids
}

func containsRow(rows [][]float64, row []float64) bool {
	for _, r := range rows {
		if equalRow(r, row) {
			return true
		}
	}
	return false
}

func equalRow(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func nearestCentroid(row []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		d := sqDist(row, centroid)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// recomputeCentroids moves each centroid to the mean of its members. An
// empty cluster is re-seeded with the row farthest from its current
// centroid, which keeps k stable and stays deterministic.
func recomputeCentroids(features [][]float64, labels []int, centroids [][]float64) {
	dim := len(centroids[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	for i, row := range features {
		c := labels[i]
		counts[c]++
		for j := range row {
			sums[c][j] += row[j]
		}
	}

	for c := range centroids {
		if counts[c] == 0 {
			copy(centroids[c], features[farthestRow(features, labels, centroids)])
			continue
		}
		for j := 0; j < dim; j++ {
			centroids[c][j] = sums[c][j] / float64(counts[c])
		}
	}
}

// farthestRow returns the index of the row with the greatest distance to its
// assigned centroid; first such row wins on ties.
func farthestRow(features [][]float64, labels []int, centroids [][]float64) int {
	best := 0
	bestDist := -1.0
	for i, row := range features {
		d := sqDist(row, centroids[labels[i]])
		if d > bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}
