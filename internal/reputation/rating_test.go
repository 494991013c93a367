package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRating(t *testing.T) {
	cases := []struct {
		likes, dislikes, want int
	}{
		{0, 0, 50},
		{10, 0, 100},
		{0, 10, 0},
		{5, 5, 50},
		{7, 3, 70},
		{1, 0, 100},
		{0, 1, 0},
		{2, 1, 67},
		{1, 2, 33},
		// exact halves round to even
		{1, 7, 12},
		{7, 1, 88},
		{3, 5, 38},
		{5, 3, 62},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Rating(tc.likes, tc.dislikes), "likes=%d dislikes=%d", tc.likes, tc.dislikes)
	}
}

func TestRatingBounds(t *testing.T) {
	for l := 0; l < 25; l++ {
		for d := 0; d < 25; d++ {
			r := Rating(l, d)
			assert.GreaterOrEqual(t, r, 0)
			assert.LessOrEqual(t, r, 100)
		}
	}
}

func TestStars(t *testing.T) {
	cases := map[int]int{
		0: 0, 10: 0, 12: 1, 20: 1, 30: 2, 33: 2, 38: 2, 40: 2,
		50: 2, 60: 3, 62: 3, 67: 3, 70: 4, 80: 4, 90: 4, 100: 5,
	}
	for pct, want := range cases {
		assert.Equal(t, want, Stars(pct, 5), "pct=%d", pct)
	}
	assert.Equal(t, 5, Stars(250, 5))
	assert.Equal(t, 0, Stars(-10, 5))
	assert.Equal(t, 0, Stars(100, 0))
}

func TestRenderStars(t *testing.T) {
	assert.Equal(t, "⭐⭐⭐☆☆", RenderStars(3, 5))
	assert.Equal(t, "☆☆☆☆☆", RenderStars(0, 5))
	assert.Equal(t, "⭐⭐⭐⭐⭐", RenderStars(9, 5))
}
