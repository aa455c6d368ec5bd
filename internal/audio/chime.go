package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// Memory-saved cue: a short sine ping that decays exponentially.
const (
	ChimeFrequencyHz = 800.0
	ChimeGain        = 0.3
	ChimeDuration    = 300 * time.Millisecond

	// chimeFloor is the gain the envelope reaches at the end of the cue.
	chimeFloor = 0.01
)

var (
	chimeOnce sync.Once
	chimeWAV  []byte
	chimeErr  error
)

// ChimePCM renders the cue as PCM16LE mono samples.
func ChimePCM(sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = ChimeSampleRate
	}
	n := int(float64(sampleRate) * ChimeDuration.Seconds())
	pcm := make([]byte, n*2)
	decay := math.Log(ChimeGain/chimeFloor) / ChimeDuration.Seconds()
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		gain := ChimeGain * math.Exp(-decay*t)
		v := gain * math.Sin(2*math.Pi*ChimeFrequencyHz*t)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return pcm
}

// ChimeWAV returns the encoded cue. It is rendered once per process.
func ChimeWAV() ([]byte, error) {
	chimeOnce.Do(func() {
		chimeWAV, chimeErr = EncodeWAVPCM16LE(ChimePCM(ChimeSampleRate), ChimeSampleRate)
	})
	return chimeWAV, chimeErr
}

// ChimeBase64 returns the encoded cue ready for a JSON payload.
func ChimeBase64() (string, error) {
	wav, err := ChimeWAV()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(wav), nil
}
