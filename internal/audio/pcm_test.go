package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodePCM16(t *testing.T) {
	data := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0xff, 0x7f, 0xaa}
	assert.Equal(t, []int{1, -1, math.MinInt16, math.MaxInt16}, DecodePCM16(data))
	assert.Empty(t, DecodePCM16(nil))
}

func TestResample(t *testing.T) {
	t.Run("same rate is identity", func(t *testing.T) {
		in := []int{1, 2, 3}
		assert.Equal(t, in, Resample(in, 24000, 24000))
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		out := Resample([]int{0, 100}, 1, 2)
		assert.Equal(t, []int{0, 50, 100, 100}, out)
	})

	t.Run("downsample keeps duration", func(t *testing.T) {
		in := make([]int, 48000)
		out := Resample(in, 48000, 24000)
		assert.Len(t, out, 24000)
	})

	t.Run("invalid rates pass through", func(t *testing.T) {
		in := []int{5}
		assert.Equal(t, in, Resample(in, 0, 24000))
	})
}

func TestClipDuration(t *testing.T) {
	var none *Clip
	assert.Zero(t, none.Duration())
	assert.InDelta(t, 10.0, (&Clip{SampleRate: 24000, Bytes: 480000}).Duration(), 1e-9)
	assert.Zero(t, (&Clip{Bytes: 100}).Duration())
}

func TestCommonRateAndPaths(t *testing.T) {
	clips := []*Clip{nil, {Path: "/tmp/b", SampleRate: 22050}, {Path: "/tmp/c", SampleRate: 24000}}
	assert.Equal(t, 22050, CommonRate(clips))
	assert.Equal(t, DefaultSampleRate, CommonRate([]*Clip{nil, nil}))
	assert.Equal(t, []string{"/tmp/b", "/tmp/c"}, Paths(clips))
}
