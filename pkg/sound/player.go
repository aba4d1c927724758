package sound

import (
	"bytes"
	"io/fs"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"github.com/pkg/errors"

	"trade-monitor/pkg/core"
)

const (
	BuyAsset  = "buy.wav"
	SellAsset = "sell.wav"
)

// Player plays short WAV assets through the default audio device. Decoded
// assets are cached, and the speaker is initialised on first use with the
// sample rate of the first asset played.
type Player struct {
	assets fs.FS
	log    core.Logger

	mu      sync.Mutex
	buffers map[string]*beep.Buffer
	rate    beep.SampleRate
	ready   bool
}

func NewPlayer(assets fs.FS, log core.Logger) *Player {
	return &Player{
		assets:  assets,
		log:     log,
		buffers: make(map[string]*beep.Buffer),
	}
}

// Play starts asset and returns without waiting for it to finish.
func (p *Player) Play(asset string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf, err := p.load(asset)
	if err != nil {
		return err
	}

	if !p.ready {
		rate := buf.Format().SampleRate
		if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
			return errors.Wrap(err, "failed to initialize audio")
		}
		p.rate = rate
		p.ready = true
		p.log.Debug("Audio initialized", "sample_rate", int(rate))
	}

	var s beep.Streamer = buf.Streamer(0, buf.Len())
	if r := buf.Format().SampleRate; r != p.rate {
		s = beep.Resample(4, r, p.rate, s)
	}
	speaker.Play(s)

	p.log.Debug("Playing sound", "asset", asset)
	return nil
}

func (p *Player) load(asset string) (*beep.Buffer, error) {
	if buf, ok := p.buffers[asset]; ok {
		return buf, nil
	}

	data, err := fs.ReadFile(p.assets, asset)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sound file %s", asset)
	}

	streamer, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", asset)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	p.buffers[asset] = buf
	return buf, nil
}

// Close stops playback and releases the audio device.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		speaker.Clear()
		speaker.Close()
		p.ready = false
	}
}
