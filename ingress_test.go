package iocoro

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntakeDrainIntoPrependsNewestFirst(t *testing.T) {
	var q intake
	a := &Task{id: 1}
	b := &Task{id: 2}
	q.push(a)
	q.push(b)

	existing := []*Task{{id: 99}}
	runlist := q.drainInto(existing)

	require.Len(t, runlist, 3)
	assert.Equal(t, int64(2), runlist[0].id)
	assert.Equal(t, int64(1), runlist[1].id)
	assert.Equal(t, int64(99), runlist[2].id)
	assert.True(t, q.empty())
}

func TestIntakeDrainIntoEmptyIsNoop(t *testing.T) {
	var q intake
	existing := []*Task{{id: 1}}
	runlist := q.drainInto(existing)
	require.Len(t, runlist, 1)
	assert.Same(t, existing[0], runlist[0])
}

func TestIntakeConcurrentPush(t *testing.T) {
	var q intake
	var wg sync.WaitGroup
	const n = 200
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			q.push(&Task{id: int64(i)})
		}(i)
	}
	wg.Wait()

	runlist := q.drainInto(nil)
	assert.Len(t, runlist, n)
	assert.True(t, q.empty())
}
