package shipping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTieredFee(t *testing.T) {
	policy := NewDefaultPolicy()

	assert.Equal(t, int64(0), policy.Fee(0, "domestic"), "empty cart ships nothing")
	assert.Equal(t, int64(3000), policy.Fee(20000, "domestic"))
	assert.Equal(t, int64(6000), policy.Fee(20000, "jeju"))
	assert.Equal(t, int64(0), policy.Fee(50000, "domestic"), "free at threshold")
	assert.Equal(t, int64(0), policy.Fee(120000, "jeju"), "threshold beats surcharge")
	assert.Equal(t, int64(3000), policy.Fee(49999, ""), "blank destination treated as domestic")
}
