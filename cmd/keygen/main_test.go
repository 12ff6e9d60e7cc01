package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-swap-bot/internal/solana"
)

func TestEncodeSecret_RoundTrips(t *testing.T) {
	kp, err := solana.GenerateKeypair()
	require.NoError(t, err)

	for _, format := range []string{"json", "base58"} {
		t.Run(format, func(t *testing.T) {
			encoded, err := encodeSecret(kp.SecretKey(), format)
			require.NoError(t, err)

			decoded, err := solana.ParseSecretKey(encoded)
			require.NoError(t, err)
			restored, err := solana.NewKeypair(decoded)
			require.NoError(t, err)
			assert.Equal(t, kp.PublicKey(), restored.PublicKey())
		})
	}
}

func TestEncodeSecret_UnknownFormat(t *testing.T) {
	_, err := encodeSecret(make([]byte, 64), "hex")
	assert.Error(t, err)
}
