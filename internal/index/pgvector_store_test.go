package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonbook-be/internal/pkg/logger"
	"commonbook-be/pkg/embedding"
)

func TestNewPgvectorStoreRejectsDimensionMismatch(t *testing.T) {
	_, err := NewPgvectorStore(nil, embedding.NewLocalProvider(384), logger.NopLogger{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "384")
	assert.Contains(t, err.Error(), "768")
}

func TestNewPgvectorStoreAcceptsMatchingProvider(t *testing.T) {
	store, err := NewPgvectorStore(nil, embedding.NewLocalProvider(VectorDims), logger.NopLogger{})
	require.NoError(t, err)
	assert.NotNil(t, store)
}
