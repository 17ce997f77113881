// Package cluster implements the Topic Clusterer (spec §4.9): k-means over
// the embedding index's unit-normalized vectors, summarized per cluster by
// TF/IDF keywords against the rest of the corpus.
package cluster

import (
	"math"
	"math/rand"
)

// Point is one clusterable conversation: its embedding vector plus whatever
// the caller needs to look the conversation back up afterward.
type Point struct {
	ConversationID string
	Vector         []float32
}

type assignment struct {
	centroids [][]float64
	labels    []int
}

// kmeans runs Lloyd's algorithm with k-means++ seeding, stopping at
// maxIterations or once the largest centroid shift drops below
// convergenceDelta. Distance is squared Euclidean on the (already
// unit-normalized) input vectors.
func kmeans(points []Point, k, maxIterations int, convergenceDelta float64, seed int64) assignment {
	vectors := make([][]float64, len(points))
	for i, p := range points {
		vectors[i] = toFloat64(p.Vector)
	}

	rng := rand.New(rand.NewSource(seed))
	centroids := initCentroidsPlusPlus(vectors, k, rng)
	labels := make([]int, len(vectors))

	for iter := 0; iter < maxIterations; iter++ {
		changed := assignLabels(vectors, centroids, labels)
		newCentroids := recomputeCentroids(vectors, labels, centroids)
		shift := maxShift(centroids, newCentroids)
		centroids = newCentroids
		if !changed || shift < convergenceDelta {
			break
		}
	}
	// final assignment against the converged centroids
	assignLabels(vectors, centroids, labels)

	return assignment{centroids: centroids, labels: labels}
}

// initCentroidsPlusPlus picks k seed centroids via k-means++: the first
// uniformly at random, each subsequent one weighted by squared distance to
// its nearest already-chosen centroid. Both draws use rng, so a fixed seed
// always reproduces the same initialization.
func initCentroidsPlusPlus(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := rng.Intn(len(vectors))
	centroids = append(centroids, append([]float64(nil), vectors[first]...))

	for len(centroids) < k {
		weights := make([]float64, len(vectors))
		total := 0.0
		for i, v := range vectors {
			weights[i] = nearestSquaredDistance(v, centroids)
			total += weights[i]
		}
		if total == 0 {
			// all remaining points coincide with chosen centroids; fall back
			// to uniform selection so we still return k centroids.
			idx := rng.Intn(len(vectors))
			centroids = append(centroids, append([]float64(nil), vectors[idx]...))
			continue
		}
		target := rng.Float64() * total
		cum := 0.0
		chosen := len(vectors) - 1
		for i, w := range weights {
			cum += w
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), vectors[chosen]...))
	}
	return centroids
}

func nearestSquaredDistance(v []float64, centroids [][]float64) float64 {
	best := math.Inf(1)
	for _, c := range centroids {
		if d := squaredEuclidean(v, c); d < best {
			best = d
		}
	}
	return best
}

func assignLabels(vectors [][]float64, centroids [][]float64, labels []int) bool {
	changed := false
	for i, v := range vectors {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := squaredEuclidean(v, centroid); d < bestDist {
				best, bestDist = c, d
			}
		}
		if labels[i] != best {
			changed = true
		}
		labels[i] = best
	}
	return changed
}

func recomputeCentroids(vectors [][]float64, labels []int, prev [][]float64) [][]float64 {
	k := len(prev)
	dims := len(prev[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, v := range vectors {
		c := labels[i]
		counts[c]++
		for d, x := range v {
			sums[c][d] += x
		}
	}
	out := make([][]float64, k)
	for c := range sums {
		if counts[c] == 0 {
			// empty cluster keeps its previous centroid rather than
			// becoming NaN.
			out[c] = prev[c]
			continue
		}
		mean := make([]float64, dims)
		for d := range mean {
			mean[d] = sums[c][d] / float64(counts[c])
		}
		out[c] = mean
	}
	return out
}

func maxShift(a, b [][]float64) float64 {
	max := 0.0
	for i := range a {
		if d := math.Sqrt(squaredEuclidean(a[i], b[i])); d > max {
			max = d
		}
	}
	return max
}

func squaredEuclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
