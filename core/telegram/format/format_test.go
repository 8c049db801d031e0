package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount(t *testing.T) {
	assert.Equal(t, "0", Amount(0))
	assert.Equal(t, "999", Amount(999))
	assert.Equal(t, "30,000", Amount(30000))
	assert.Equal(t, "1,234,567", Amount(1234567))
	assert.Equal(t, "30,000 UZS", Price(30000, "UZS"))
	assert.Equal(t, "6,000", Price(6000, ""))
}

func TestEscapeMarkdown(t *testing.T) {
	v1, err := EscapeMarkdown("a_b*c`d[e]", MarkdownV1)
	require.NoError(t, err)
	assert.Equal(t, "a\\_b\\*c\\`d\\[e]", v1)

	v2, err := EscapeMarkdown("1.5 (x)!", MarkdownV2)
	require.NoError(t, err)
	assert.Equal(t, "1\\.5 \\(x\\)\\!", v2)

	_, err = EscapeMarkdown("x", 3)
	assert.Error(t, err)

	assert.Equal(t, "Daraxt", MD("Daraxt"))
}
