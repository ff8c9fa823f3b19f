package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupSorted(t *testing.T) {
	got := dedupSorted([]string{"campaign:9", "account:b", "", "account:a", "account:b"})
	assert.Equal(t, []string{"account:a", "account:b", "campaign:9"}, got)
	assert.Empty(t, dedupSorted(nil))
}
