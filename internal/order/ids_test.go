package order

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("")
	assert.Equal(t, "order-1", g.Generate())
	assert.Equal(t, "order-2", g.Generate())

	g = NewSequentialIDs("local")
	for i := 0; i < 9; i++ {
		g.Generate()
	}
	assert.Equal(t, "local-10", g.Generate())
}
