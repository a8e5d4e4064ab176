package concurrent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap_Len(t *testing.T) {
	var m Map[string, int]

	m.Store("a", 1)
	m.Store("a", 2)
	m.Store("b", 3)
	assert.Equal(t, int64(2), m.Len())

	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	actual, loaded := m.LoadOrStore("b", 9)
	assert.True(t, loaded)
	assert.Equal(t, 3, actual)

	assert.True(t, m.CompareAndSwap("b", 3, 4))
	assert.False(t, m.CompareAndSwap("b", 3, 5))

	m.Clear()
	assert.Equal(t, int64(0), m.Len())
	_, ok = m.Load("a")
	assert.False(t, ok)
}

func TestMap_Concurrent(t *testing.T) {
	var m Map[int, int]
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Store(j, i)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), m.Len())

	count := 0
	for range m.All() {
		count++
	}
	assert.Equal(t, 100, count)
}
