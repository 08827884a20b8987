// Package timesync estimates the mapping between a sensor device's tick
// counter and host time. Devices stamp samples with a free-running 32-bit
// tick; the estimator extends it to 64 bits and tracks offset and frequency
// with an exponentially decaying linear regression, so device stamps can be
// reported on the host timeline.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package timesync

import (
	"math"
	"sync"
	"time"
)

const (
	// RTTAge is the aging factor for the best observed round-trip time.
	RTTAge = 0.000010 / (60.0 * 60.0)

	// Decay is the exponential decay factor for the regression.
	Decay = 1.0 / 30.0

	// QueryInterval is the suggested probe period in seconds, slightly off
	// a round number to avoid resonance with sample periods.
	QueryInterval = 0.9839
)

// Estimate holds the current tick-to-host-time mapping.
type Estimate struct {
	SampleTime float64 // Host time of the estimate
	Tick       int64   // Device tick at sample time
	Freq       float64 // Estimated tick frequency
}

// Estimator tracks one device's tick clock against the host clock.
type Estimator struct {
	mu sync.RWMutex

	// TickFreq is the nominal tick frequency from the device descriptor.
	TickFreq float64

	// Last known device tick (64-bit extended)
	lastTick int64

	est Estimate

	// Minimum round-trip-time tracking
	minHalfRTT float64
	minRTTTime float64

	// Regression of device tick against host send time
	timeAvg        float64
	timeVariance   float64
	tickAvg        float64
	tickCovariance float64
	predictionVar  float64
	lastPredTime   float64

	probesPending int
}

// New creates an estimator for a device with the given nominal tick
// frequency.
func New(tickFreq float64) *Estimator {
	return &Estimator{
		TickFreq:   tickFreq,
		minHalfRTT: 999999999.9,
		est:        Estimate{Freq: tickFreq},
	}
}

// Initialize seeds the estimator from the device's first stamped sample.
func (e *Estimator) Initialize(tick int64, sentTime float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastTick = tick
	e.tickAvg = float64(tick)
	e.timeAvg = sentTime
	e.est = Estimate{
		SampleTime: sentTime,
		Tick:       tick,
		Freq:       e.TickFreq,
	}
	e.predictionVar = (0.001 * e.TickFreq) * (0.001 * e.TickFreq)
}

// HandleProbe folds one probe response into the regression. sentTime and
// receiveTime are the host times bracketing the exchange; tick32 is the
// device tick it reported. Returns the updated estimate.
func (e *Estimator) HandleProbe(tick32 uint32, sentTime, receiveTime float64) Estimate {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.probesPending = 0

	// Extend the 32-bit tick to 64 bits.
	lastTick := e.lastTick
	tickDelta := int64(int32(tick32 - uint32(lastTick&0xffffffff)))
	tick := lastTick + tickDelta
	e.lastTick = tick

	if sentTime == 0 {
		return e.est
	}

	// Track the best round-trip time seen so far, slowly aged.
	halfRTT := 0.5 * (receiveTime - sentTime)
	agedRTT := (sentTime - e.minRTTTime) * RTTAge
	if halfRTT < e.minHalfRTT+agedRTT {
		e.minHalfRTT = halfRTT
		e.minRTTTime = sentTime
	}

	// Filter out extreme outliers.
	expTick := (sentTime-e.timeAvg)*e.est.Freq + e.tickAvg
	tickDiff2 := (float64(tick) - expTick) * (float64(tick) - expTick)
	threshold := 0.000500 * e.TickFreq
	if tickDiff2 > 25.0*e.predictionVar && tickDiff2 > threshold*threshold {
		if float64(tick) > expTick && sentTime < e.lastPredTime+10.0 {
			return e.est
		}
		e.predictionVar = (0.001 * e.TickFreq) * (0.001 * e.TickFreq)
	} else {
		e.lastPredTime = sentTime
		e.predictionVar = (1.0 - Decay) * (e.predictionVar + tickDiff2*Decay)
	}

	// Fold the sample into the regression.
	diffSentTime := sentTime - e.timeAvg
	e.timeAvg += Decay * diffSentTime
	e.timeVariance = (1.0 - Decay) * (e.timeVariance + diffSentTime*diffSentTime*Decay)
	diffTick := float64(tick) - e.tickAvg
	e.tickAvg += Decay * diffTick
	e.tickCovariance = (1.0 - Decay) * (e.tickCovariance + diffSentTime*diffTick*Decay)

	var newFreq float64
	if e.timeVariance > 0 {
		newFreq = e.tickCovariance / e.timeVariance
	} else {
		newFreq = e.TickFreq
	}

	e.est = Estimate{
		SampleTime: e.timeAvg + e.minHalfRTT,
		Tick:       int64(e.tickAvg),
		Freq:       newFreq,
	}

	return e.est
}

// TickAt returns the estimated device tick at the given host time.
func (e *Estimator) TickAt(eventtime float64) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	est := e.est
	return int64(float64(est.Tick) + (eventtime-est.SampleTime)*est.Freq)
}

// HostTime returns the estimated host time at which the device reaches the
// given tick. This is the conversion applied to sample stamps.
func (e *Estimator) HostTime(tick int64) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	est := e.est
	return float64(tick-est.Tick)/est.Freq + est.SampleTime
}

// Tick32ToTick64 extends a wrapped 32-bit tick using the last known value.
func (e *Estimator) Tick32ToTick64(tick32 uint32) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	lastTick := e.lastTick
	tickDiff := int32(tick32 - uint32(lastTick&0xffffffff))
	return lastTick + int64(tickDiff)
}

// IsActive reports whether the device is still answering probes.
func (e *Estimator) IsActive() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.probesPending <= 4
}

// IncrementProbesPending records an unanswered probe.
func (e *Estimator) IncrementProbesPending() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.probesPending++
}

// Estimate returns the current mapping.
func (e *Estimator) Estimate() Estimate {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.est
}

// LastTick returns the last known 64-bit device tick.
func (e *Estimator) LastTick() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.lastTick
}

// PredictionStddev returns the standard deviation of the tick prediction.
func (e *Estimator) PredictionStddev() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return math.Sqrt(e.predictionVar)
}

// Stats is a snapshot of the estimator internals for diagnostics.
type Stats struct {
	TickFreq      float64
	LastTick      int64
	SampleTime    float64
	Tick          int64
	Freq          float64
	MinHalfRTT    float64
	MinRTTTime    float64
	TimeAvg       float64
	TimeVariance  float64
	TickAvg       float64
	TickCovar     float64
	PredictionVar float64
}

// GetStats returns current statistics.
func (e *Estimator) GetStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		TickFreq:      e.TickFreq,
		LastTick:      e.lastTick,
		SampleTime:    e.est.SampleTime,
		Tick:          e.est.Tick,
		Freq:          e.est.Freq,
		MinHalfRTT:    e.minHalfRTT,
		MinRTTTime:    e.minRTTTime,
		TimeAvg:       e.timeAvg,
		TimeVariance:  e.timeVariance,
		TickAvg:       e.tickAvg,
		TickCovar:     e.tickCovariance,
		PredictionVar: e.predictionVar,
	}
}

// MonotonicTime provides a high-resolution monotonic time source shared by
// the control loop and the device readers.
type MonotonicTime struct {
	startTime time.Time
}

// NewMonotonicTime creates a new monotonic time source.
func NewMonotonicTime() *MonotonicTime {
	return &MonotonicTime{
		startTime: time.Now(),
	}
}

// Now returns the current monotonic time in seconds.
func (mt *MonotonicTime) Now() float64 {
	return time.Since(mt.startTime).Seconds()
}
