package reputation

import (
	"math"
	"strings"
)

// Rating maps a like/dislike balance onto 0..100, with 50 for no votes.
// Halves round to even.
func Rating(likes, dislikes int) int {
	total := likes + dislikes
	if total < 1 {
		total = 1
	}
	score := 50 + 50*(float64(likes-dislikes)/float64(total))
	return clamp(int(math.RoundToEven(score)), 0, 100)
}

// Stars converts a 0..100 rating into a whole number of stars out of maxStars.
// Halves round to even.
func Stars(percent, maxStars int) int {
	if maxStars <= 0 {
		return 0
	}
	full := int(math.RoundToEven(float64(percent) / 100 * float64(maxStars)))
	return clamp(full, 0, maxStars)
}

// RenderStars draws n filled stars followed by empty ones up to maxStars
func RenderStars(n, maxStars int) string {
	n = clamp(n, 0, maxStars)
	return strings.Repeat("⭐", n) + strings.Repeat("☆", maxStars-n)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
