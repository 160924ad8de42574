package agent

import "math"

// ShannonEntropy computes the byte-level Shannon entropy of data in
// bits per byte. The result is in [0, 8]; an empty buffer scores 0.
func ShannonEntropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	total := float64(len(data))
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// classificationSample bounds how much of a file the binary/text
// heuristic inspects.
const classificationSample = 8 * 1024

// IsBinary classifies data as binary when the leading sample contains a
// NUL byte or falls below a printable-character ratio of 0.7.
func IsBinary(data []byte) bool {
	sample := data
	if len(sample) > classificationSample {
		sample = sample[:classificationSample]
	}
	if len(sample) == 0 {
		return false
	}

	printable := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if isPrintable(b) {
			printable++
		}
	}
	return float64(printable)/float64(len(sample)) < 0.7
}

func isPrintable(b byte) bool {
	return (b >= 0x20 && b <= 0x7e) || b == '\n' || b == '\r' || b == '\t'
}
