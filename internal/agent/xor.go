package agent

import "math"

// englishFreq is the expected relative frequency of a-z in English text.
// Used for the chi-square half of the plaintext score and for the
// per-column frequency attack on repeating keys.
var englishFreq = map[byte]float64{
	'a': 0.0817, 'b': 0.0150, 'c': 0.0278, 'd': 0.0425, 'e': 0.1270,
	'f': 0.0223, 'g': 0.0202, 'h': 0.0609, 'i': 0.0697, 'j': 0.0015,
	'k': 0.0077, 'l': 0.0403, 'm': 0.0241, 'n': 0.0675, 'o': 0.0751,
	'p': 0.0193, 'q': 0.0010, 'r': 0.0599, 's': 0.0633, 't': 0.0906,
	'u': 0.0276, 'v': 0.0098, 'w': 0.0236, 'x': 0.0015, 'y': 0.0197,
	'z': 0.0007,
}

// spaceFreq approximates how often a space appears in English text.
const spaceFreq = 0.13

// XorBytes applies key cyclically over data. XOR is symmetric, so the
// same call encrypts and decrypts.
func XorBytes(data, key []byte) []byte {
	if len(key) == 0 {
		return append([]byte(nil), data...)
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// minReadableRun is the run length below which printable sequences do
// not count as readable.
const minReadableRun = 4

// ReadableRuns counts bytes inside printable ASCII runs of at least
// minReadableRun characters, the same notion of "readable string" the
// carve pipeline records in xor_analysis.
func ReadableRuns(data []byte) int {
	readable := 0
	run := 0
	for _, b := range data {
		if isPrintable(b) {
			run++
			continue
		}
		if run >= minReadableRun {
			readable += run
		}
		run = 0
	}
	if run >= minReadableRun {
		readable += run
	}
	return readable
}

// PlaintextScore rates how English-like data looks on a 0-10 scale:
// up to 5 points for the fraction of bytes inside readable runs, up to
// 5 for letter-frequency agreement with English.
func PlaintextScore(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	runScore := 5 * float64(ReadableRuns(data)) / float64(len(data))

	freqScore := 5 * frequencyAgreement(data)

	score := runScore + freqScore
	if score > 10 {
		score = 10
	}
	return score
}

// frequencyAgreement maps the chi-square distance between observed and
// expected English letter frequencies to [0, 1], 1 meaning a close match.
func frequencyAgreement(data []byte) float64 {
	var counts [26]int
	letters := 0
	spaces := 0
	for _, b := range data {
		c := b | 0x20 // lowercase
		if c >= 'a' && c <= 'z' {
			counts[c-'a']++
			letters++
		} else if b == ' ' {
			spaces++
		}
	}
	if letters == 0 {
		return 0
	}

	chi := 0.0
	for i := 0; i < 26; i++ {
		expected := englishFreq[byte('a'+i)]
		observed := float64(counts[i]) / float64(letters)
		diff := observed - expected
		chi += diff * diff / expected
	}

	// Penalize text with almost no spaces relative to English prose.
	spaceRatio := float64(spaces) / float64(len(data))
	spacePenalty := math.Abs(spaceRatio-spaceFreq) / spaceFreq
	if spacePenalty > 1 {
		spacePenalty = 1
	}

	agreement := 1 / (1 + chi)
	return agreement * (1 - 0.3*spacePenalty)
}

// indexOfCoincidence computes the IoC of data over the byte alphabet
// restricted to letters. English text scores near 0.067, uniform random
// bytes near 0.038.
func indexOfCoincidence(data []byte) float64 {
	var counts [26]int
	n := 0
	for _, b := range data {
		c := b | 0x20
		if c >= 'a' && c <= 'z' {
			counts[c-'a']++
			n++
		}
	}
	if n < 2 {
		return 0
	}

	sum := 0.0
	for _, c := range counts {
		sum += float64(c) * float64(c-1)
	}
	return sum / (float64(n) * float64(n-1))
}

// iocEnglishThreshold is the average column IoC above which a candidate
// key length is accepted as breaking the ciphertext into single-byte
// XOR columns of natural-language text.
const iocEnglishThreshold = 0.055

// EstimateKeyLength estimates the repeating-key length of an
// XOR-encrypted buffer via the index-of-coincidence technique: split the
// ciphertext into L columns and accept the smallest L whose average
// column IoC looks like natural language. Falls back to the best-scoring
// length when no candidate crosses the threshold.
func EstimateKeyLength(data []byte, maxLen int) int {
	if maxLen < 1 {
		maxLen = 1
	}

	bestLen := 1
	bestIoC := -1.0
	for l := 1; l <= maxLen; l++ {
		if len(data) < l*4 {
			break
		}

		total := 0.0
		for col := 0; col < l; col++ {
			column := make([]byte, 0, len(data)/l+1)
			for i := col; i < len(data); i += l {
				column = append(column, data[i])
			}
			total += indexOfCoincidence(column)
		}
		avg := total / float64(l)

		if avg >= iocEnglishThreshold {
			return l
		}
		if avg > bestIoC {
			bestIoC = avg
			bestLen = l
		}
	}
	return bestLen
}

// CrackSingleByte tries all 256 single-byte keys and returns the key
// whose decryption scores highest, with the score and plaintext.
func CrackSingleByte(data []byte) (byte, float64, []byte) {
	var bestKey byte
	bestScore := -1.0
	var bestPlain []byte

	for k := 0; k < 256; k++ {
		plain := XorBytes(data, []byte{byte(k)})
		score := PlaintextScore(plain)
		if score > bestScore {
			bestScore = score
			bestKey = byte(k)
			bestPlain = plain
		}
	}
	return bestKey, bestScore, bestPlain
}

// CrackRepeatingKey recovers a repeating key of the given length by
// running the single-byte frequency attack on each ciphertext column.
func CrackRepeatingKey(data []byte, keyLen int) []byte {
	if keyLen <= 0 {
		return nil
	}

	key := make([]byte, keyLen)
	for col := 0; col < keyLen; col++ {
		column := make([]byte, 0, len(data)/keyLen+1)
		for i := col; i < len(data); i += keyLen {
			column = append(column, data[i])
		}
		k, _, _ := CrackSingleByte(column)
		key[col] = k
	}
	return key
}
