package fbank

import "math"

// hannWindow generates a periodic Hann window of the given length.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// hzToMel converts frequency in Hz to mel scale.
func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melToHz converts mel scale frequency back to Hz.
func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melFilterBank creates triangular filters evaluated at the exact FFT bin
// frequencies, each scaled to unit area (Slaney normalisation).
// Returns [numMels][fftSize/2 + 1].
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	halfFFT := fftSize/2 + 1
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)

	// numMels + 2 equally spaced mel points
	hz := make([]float64, numMels+2)
	step := (highMel - lowMel) / float64(numMels+1)
	for i := range hz {
		hz[i] = melToHz(lowMel + float64(i)*step)
	}

	binHz := float64(sampleRate) / float64(fftSize)
	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		left, center, right := hz[m], hz[m+1], hz[m+2]
		norm := 2.0 / (right - left)
		filter := make([]float64, halfFFT)
		for k := range filter {
			f := float64(k) * binHz
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			if w := math.Min(lower, upper); w > 0 {
				filter[k] = w * norm
			}
		}
		bank[m] = filter
	}
	return bank
}

// dctBasis returns the first n rows of the orthonormal DCT-II matrix for
// inputs of length size.
func dctBasis(size, n int) [][]float64 {
	basis := make([][]float64, n)
	scale0 := math.Sqrt(1 / float64(size))
	scale := math.Sqrt(2 / float64(size))
	for k := 0; k < n; k++ {
		row := make([]float64, size)
		s := scale
		if k == 0 {
			s = scale0
		}
		for i := range row {
			row[i] = s * math.Cos(math.Pi/float64(size)*(float64(i)+0.5)*float64(k))
		}
		basis[k] = row
	}
	return basis
}
