// Package dsp supplies the signal transforms applied to raw strain data
// before threshold scanning: FFT band-limiting, block RMS reduction, and
// the scattering fringe-frequency projection.
package dsp

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"

	"github.com/detcharstack/dqflagger/internal/repo"
)

// fringeWavelength is the Nd:YAG laser wavelength in micrometres. Optic
// motion channels are calibrated in µm, so 2|v|/λ lands directly in Hz.
const fringeWavelength = 1.064

// BandLimit applies a zero-phase FFT brick-wall filter. Cutoffs are in Hz;
// zero means unset. With both cutoffs the series is band-passed between the
// highpass and lowpass frequencies, otherwise the single given cutoff
// applies on its own.
func BandLimit(ts repo.TimeSeries, lowpass, highpass float64) (repo.TimeSeries, error) {
	if lowpass == 0 && highpass == 0 {
		return ts, nil
	}
	nyquist := ts.SampleRate / 2

	lo, hi := 0.0, nyquist
	switch {
	case lowpass > 0 && highpass > 0:
		lo, hi = highpass, lowpass
	case highpass > 0:
		lo = highpass
	default:
		hi = lowpass
	}
	if lo >= hi {
		return repo.TimeSeries{}, fmt.Errorf("empty passband [%v, %v] Hz", lo, hi)
	}
	if hi > nyquist {
		return repo.TimeSeries{}, fmt.Errorf("cutoff %v Hz above Nyquist %v Hz", hi, nyquist)
	}

	n := len(ts.Samples)
	spectrum := fft.FFTReal(ts.Samples)
	binWidth := ts.SampleRate / float64(n)
	for i := range spectrum {
		// mirrored bins above n/2 carry negative frequencies
		k := i
		if i > n/2 {
			k = n - i
		}
		freq := float64(k) * binWidth
		if freq < lo || freq > hi {
			spectrum[i] = 0
		}
	}

	filtered := fft.IFFT(spectrum)
	out := repo.TimeSeries{
		Epoch:      ts.Epoch,
		SampleRate: ts.SampleRate,
		Samples:    make([]float64, n),
	}
	for i, c := range filtered {
		out.Samples[i] = real(c)
	}
	return out, nil
}

// RMS reduces the series to one root-mean-square value per window of the
// given length in seconds. A partial trailing block is discarded.
func RMS(ts repo.TimeSeries, window float64) (repo.TimeSeries, error) {
	if window <= 0 {
		return repo.TimeSeries{}, fmt.Errorf("invalid RMS window %v s", window)
	}
	stride := int(window * ts.SampleRate)
	if stride < 1 {
		return repo.TimeSeries{}, fmt.Errorf("RMS window %v s shorter than one sample at %v Hz", window, ts.SampleRate)
	}
	blocks := len(ts.Samples) / stride
	if blocks == 0 {
		return repo.TimeSeries{}, fmt.Errorf("series shorter than one RMS window (%v s)", window)
	}

	out := repo.TimeSeries{
		Epoch:      ts.Epoch,
		SampleRate: 1 / window,
		Samples:    make([]float64, blocks),
	}
	for b := 0; b < blocks; b++ {
		sum := 0.0
		for _, v := range ts.Samples[b*stride : (b+1)*stride] {
			sum += v * v
		}
		out.Samples[b] = math.Sqrt(sum / float64(stride))
	}
	return out, nil
}

// FringeFrequency projects an optic-motion series onto the predicted
// scattering fringe frequency f(t) = 2|v(t)|/λ, with the velocity taken by
// central difference (one-sided at the edges).
func FringeFrequency(ts repo.TimeSeries) (repo.TimeSeries, error) {
	n := len(ts.Samples)
	if n < 2 {
		return repo.TimeSeries{}, fmt.Errorf("series too short for fringe projection (%d samples)", n)
	}
	dt := ts.Dt()

	out := repo.TimeSeries{
		Epoch:      ts.Epoch,
		SampleRate: ts.SampleRate,
		Samples:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		var v float64
		switch {
		case i == 0:
			v = (ts.Samples[1] - ts.Samples[0]) / dt
		case i == n-1:
			v = (ts.Samples[n-1] - ts.Samples[n-2]) / dt
		default:
			v = (ts.Samples[i+1] - ts.Samples[i-1]) / (2 * dt)
		}
		out.Samples[i] = 2 * math.Abs(v) / fringeWavelength
	}
	return out, nil
}
