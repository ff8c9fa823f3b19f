package idgen

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeRejectsBadWorker(t *testing.T) {
	_, err := NewSnowflake(-1)
	assert.Error(t, err)

	_, err = NewSnowflake(maxWorkerID + 1)
	assert.Error(t, err)
}

func TestGenerateIsUniqueAndIncreasing(t *testing.T) {
	sf, err := NewSnowflake(7)
	require.NoError(t, err)

	prev := sf.Generate()
	for i := 0; i < 10000; i++ {
		id := sf.Generate()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestGenerateEntryNoConcurrent(t *testing.T) {
	const workers, perWorker = 8, 500

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				no := GenerateEntryNo("CTB")
				mu.Lock()
				seen[no] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	for no := range seen {
		assert.True(t, strings.HasPrefix(no, "CTB"))
		break
	}
}
