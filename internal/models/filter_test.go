package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilterSpecIsZero(t *testing.T) {
	var spec FilterSpec
	assert.True(t, spec.IsZero())

	spec.Course = "PMP"
	assert.False(t, spec.IsZero())

	start := time.Now()
	assert.False(t, (&FilterSpec{Start: &start}).IsZero())
}

func TestFilterSpecInWindow(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	inside := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	before := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		spec FilterSpec
		ts   *time.Time
		want bool
	}{
		{"unbounded accepts nil", FilterSpec{}, nil, true},
		{"unbounded accepts anything", FilterSpec{}, &inside, true},
		{"bounded rejects nil", FilterSpec{Start: &start}, nil, false},
		{"inside window", FilterSpec{Start: &start, End: &end}, &inside, true},
		{"before start", FilterSpec{Start: &start, End: &end}, &before, false},
		{"end is inclusive", FilterSpec{Start: &start, End: &end}, &end, true},
		{"after end", FilterSpec{End: &before}, &inside, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.InWindow(tt.ts))
		})
	}
}

func TestFilterSpecCacheKey(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	a := FilterSpec{Start: &start, Course: "PMP", Language: "fr"}
	b := FilterSpec{Start: &start, Course: "PMP", Language: "fr"}
	assert.Equal(t, a.CacheKey(), b.CacheKey(), "identical specs must share a key")

	c := FilterSpec{Start: &start, Course: "PMP", Language: "en"}
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())

	// Empty fields still appear in the key, pinning the field order.
	var zero FilterSpec
	assert.Contains(t, zero.CacheKey(), "course=|")
	assert.Contains(t, zero.CacheKey(), "inquiry_id=|")
}
