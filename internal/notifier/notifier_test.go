package notifier

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/utxo-graph/internal/models"
)

func TestNotifierDeliversInOrder(t *testing.T) {
	n := New(zerolog.Nop(), 8)

	var mu sync.Mutex
	var got []string
	n.OnTransactionPersisted(func(tx *models.Transaction) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, tx.Hash)
	})

	require.NoError(t, n.Start())
	require.NoError(t, n.Start())
	for _, h := range []string{"a", "b", "c"} {
		n.Publish(&models.Transaction{Hash: h})
	}
	require.NoError(t, n.Stop())

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.NoError(t, n.Stop())
}

func TestNotifierDropsWhenFull(t *testing.T) {
	n := New(zerolog.Nop(), 1)

	delivered := 0
	n.OnTransactionPersisted(func(*models.Transaction) { delivered++ })

	n.Publish(&models.Transaction{Hash: "kept"})
	n.Publish(&models.Transaction{Hash: "dropped"})

	require.NoError(t, n.Start())
	require.NoError(t, n.Stop())
	assert.Equal(t, 1, delivered)
}
