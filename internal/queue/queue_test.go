package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainEmpty(t *testing.T) {
	q := New()

	out := q.DrainAll()
	require.NotNil(t, out)
	assert.Empty(t, out)
	assert.Zero(t, q.Len())
}

func TestDrainPreservesOrderAndEmpties(t *testing.T) {
	q := New()
	for _, s := range []string{"1", "ok", "2"} {
		q.Push(s)
	}
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, []string{"1", "ok", "2"}, q.DrainAll())
	assert.Zero(t, q.Len())
	assert.Empty(t, q.DrainAll())
}

func TestDrainGrowsPastInitialCapacity(t *testing.T) {
	q := New()
	want := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		line := fmt.Sprintf("line-%d", i)
		want = append(want, line)
		q.Push(line)
	}
	assert.Equal(t, want, q.DrainAll())
}

func TestConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 500
	q := New()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(fmt.Sprintf("%d:%d", p, i))
			}
		}(p)
	}

	// Drain concurrently with producers to exercise partial batches.
	var got []string
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for draining := true; draining; {
		select {
		case <-done:
			draining = false
		default:
		}
		got = append(got, q.DrainAll()...)
	}
	got = append(got, q.DrainAll()...)

	require.Len(t, got, producers*perProducer)

	next := make([]int, producers)
	for _, line := range got {
		var p, i int
		_, err := fmt.Sscanf(line, "%d:%d", &p, &i)
		require.NoError(t, err)
		require.Equal(t, next[p], i, "producer %d out of order", p)
		next[p]++
	}
}
