package logger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundMS(t *testing.T) {
	assert.Equal(t, time.Duration(0), RoundMS(-time.Second))
	assert.Equal(t, 2*time.Millisecond, RoundMS(1600*time.Microsecond))
}

func TestPreview(t *testing.T) {
	files := []string{"0001_init.up.sql", "0002_orders.up.sql", "0003_idx.up.sql"}

	got, cut := Preview(files, 2)
	assert.Equal(t, "0001_init.up.sql, 0002_orders.up.sql, +1", got)
	assert.True(t, cut)

	got, cut = Preview(files, 0)
	assert.Equal(t, "0001_init.up.sql, 0002_orders.up.sql, 0003_idx.up.sql", got)
	assert.False(t, cut)

	got, cut = Preview(nil, 6)
	assert.Empty(t, got)
	assert.False(t, cut)
}
