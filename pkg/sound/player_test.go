package sound

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-monitor/pkg/logger"
)

func TestPlayMissingAsset(t *testing.T) {
	p := NewPlayer(fstest.MapFS{}, logger.NewNop())

	err := p.Play(BuyAsset)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "buy.wav")
}

func TestPlayInvalidAsset(t *testing.T) {
	p := NewPlayer(fstest.MapFS{
		SellAsset: &fstest.MapFile{Data: []byte("not a wav file")},
	}, logger.NewNop())

	err := p.Play(SellAsset)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode sell.wav")
}
