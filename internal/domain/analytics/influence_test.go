package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sociogram/graph-analytics/internal/domain/shared"
)

func TestComputeInfluence_Chain(t *testing.T) {
	// A - B - C - D
	g := newFakeGraph()
	g.addEdge("A", "B")
	g.addEdge("B", "C")
	g.addEdge("C", "D")

	calc := NewInfluenceCalculator(g)

	dist, err := calc.ComputeInfluence(context.Background(), "A", 3)
	require.NoError(t, err)

	assert.Equal(t, 3, dist.TotalReach)
	require.Len(t, dist.Distribution, 3)
	assert.Equal(t, DistanceBucket{Distance: 1, Count: 1}, dist.Distribution[0])
	assert.Equal(t, DistanceBucket{Distance: 2, Count: 1}, dist.Distribution[1])
	assert.Equal(t, DistanceBucket{Distance: 3, Count: 1}, dist.Distribution[2])
}

func TestComputeInfluence_MaxDistanceOne(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("A", "B")
	g.addEdge("B", "C")
	g.addEdge("C", "D")

	calc := NewInfluenceCalculator(g)

	dist, err := calc.ComputeInfluence(context.Background(), "A", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, dist.TotalReach)
	require.Len(t, dist.Distribution, 1)
	assert.Equal(t, DistanceBucket{Distance: 1, Count: 1}, dist.Distribution[0])
}

func TestComputeInfluence_NoSelfInclusion(t *testing.T) {
	// Triangle: the source is reachable from itself via the cycle,
	// but must never appear in any bucket.
	g := newFakeGraph()
	g.addEdge("A", "B")
	g.addEdge("B", "C")
	g.addEdge("C", "A")

	calc := NewInfluenceCalculator(g)

	dist, err := calc.ComputeInfluence(context.Background(), "A", 3)
	require.NoError(t, err)

	assert.Equal(t, 2, dist.TotalReach)
	require.Len(t, dist.Distribution, 1)
	assert.Equal(t, DistanceBucket{Distance: 1, Count: 2}, dist.Distribution[0])
}

func TestComputeInfluence_ShortestDistanceWins(t *testing.T) {
	// Diamond: D is reachable at distance 2 via two paths and at
	// distance 3 via a detour. It must be counted once, at 2.
	g := newFakeGraph()
	g.addEdge("A", "B")
	g.addEdge("A", "C")
	g.addEdge("B", "D")
	g.addEdge("C", "D")
	g.addEdge("C", "E")
	g.addEdge("E", "D")

	calc := NewInfluenceCalculator(g)

	dist, err := calc.ComputeInfluence(context.Background(), "A", 3)
	require.NoError(t, err)

	assert.Equal(t, 4, dist.TotalReach)
	require.Len(t, dist.Distribution, 2)
	assert.Equal(t, DistanceBucket{Distance: 1, Count: 2}, dist.Distribution[0])
	assert.Equal(t, DistanceBucket{Distance: 2, Count: 2}, dist.Distribution[1])
}

func TestComputeInfluence_FriendlessUser(t *testing.T) {
	g := newFakeGraph()
	g.addUser("loner")

	calc := NewInfluenceCalculator(g)

	dist, err := calc.ComputeInfluence(context.Background(), "loner", 3)
	require.NoError(t, err)

	assert.Equal(t, 0, dist.TotalReach)
	assert.Empty(t, dist.Distribution)
}

func TestComputeInfluence_UnknownUser(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("A", "B")

	calc := NewInfluenceCalculator(g)

	_, err := calc.ComputeInfluence(context.Background(), "ghost", 3)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestComputeInfluence_InvalidMaxDistance(t *testing.T) {
	g := newFakeGraph()
	g.addUser("A")

	calc := NewInfluenceCalculator(g)

	_, err := calc.ComputeInfluence(context.Background(), "A", 0)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)

	_, err = calc.ComputeInfluence(context.Background(), "A", MaxAllowedDistance+1)
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestReachableAt_BFSOrder(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("A", "B")
	g.addEdge("A", "C")
	g.addEdge("B", "X")
	g.addEdge("C", "Y")
	g.addEdge("C", "X") // X discovered via B first

	calc := NewInfluenceCalculator(g)

	second, err := calc.ReachableAt(context.Background(), "A", 2)
	require.NoError(t, err)

	assert.Equal(t, []string{"X", "Y"}, toStrings(second))
}

func TestReachableAt_BeyondGraph(t *testing.T) {
	g := newFakeGraph()
	g.addEdge("A", "B")

	calc := NewInfluenceCalculator(g)

	third, err := calc.ReachableAt(context.Background(), "A", 3)
	require.NoError(t, err)
	assert.Empty(t, third)
}
