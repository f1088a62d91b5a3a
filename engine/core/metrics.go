package core

import "github.com/spaghettifunk/cadence/engine/containers"

const AVG_COUNT int = 30

// Metrics keeps a rolling average of frame times and a frames-per-second
// counter refreshed once per second.
type Metrics struct {
	frameTimes         *containers.RingQueue[float64]
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
	skipped            uint64
}

func NewMetrics() *Metrics {
	return &Metrics{
		frameTimes: containers.NewRingQueue[float64](AVG_COUNT),
	}
}

func (m *Metrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	m.frameTimes.Push(frameMS)

	var sum float64
	m.frameTimes.Each(func(v float64) { sum += v })
	m.msAvg = sum / float64(m.frameTimes.Len())

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	// Count all Frames.
	m.frames++
}

// FrameSkipped records a loop iteration that produced no frame.
func (m *Metrics) FrameSkipped() {
	m.skipped++
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

func (m *Metrics) Skipped() uint64 {
	return m.skipped
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}
