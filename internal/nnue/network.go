package nnue

import "github.com/sebhofmann/sleepmind2/internal/board"

// Network holds the NNUE weights: a king-bucketed feature transformer
// shared by both perspectives, and an output head selected by total piece
// count on the board.
type Network struct {
	// FTWeights is indexed by the flat feature index produced by
	// FeatureIndex (which already folds in the input bucket), each entry
	// holding the HiddenSize weight column added to the accumulator when
	// that feature is active.
	FTWeights [InputBuckets * FeatureCount][HiddenSize]int16
	FTBiases  [HiddenSize]int16

	// OutWeights[bucket][0] is the "us" weight vector, [bucket][1] the
	// "them" weight vector, dotted against the two SCReLU-activated
	// accumulators.
	OutWeights [OutputBuckets][2][HiddenSize]int16
	OutBiases  [OutputBuckets]int16
}

// NewNetwork creates a zero-weight network. Load real weights with
// LoadWeights, or InitRandom for tests.
func NewNetwork() *Network {
	return &Network{}
}

// outputBucket selects the output head by total piece count on the board,
// spreading the legal range (2..32 pieces) evenly across OutputBuckets.
func outputBucket(pieceCount int) int {
	divisor := (30 + OutputBuckets - 1) / OutputBuckets
	bucket := (pieceCount - 2) / divisor
	return clampInt(bucket, 0, OutputBuckets-1)
}

// Evaluate runs the output head and returns centipawns from the
// perspective of the side to move.
func (n *Network) Evaluate(acc *Accumulator, sideToMove board.Color, pieceCount int) int {
	bucket := outputBucket(pieceCount)

	var us, them *[HiddenSize]int16
	if sideToMove == board.White {
		us, them = &acc.White, &acc.Black
	} else {
		us, them = &acc.Black, &acc.White
	}

	var sum int64
	for i := 0; i < HiddenSize; i++ {
		sum += int64(screlu(us[i])) * int64(n.OutWeights[bucket][0][i])
		sum += int64(screlu(them[i])) * int64(n.OutWeights[bucket][1][i])
	}

	score := sum/QA + int64(n.OutBiases[bucket])
	return int(score * Scale / (QA * QB))
}

// InitRandom initializes weights with small random values. Test-only: never
// used for actual play, which always loads a trained weight file.
func (n *Network) InitRandom(seed int64) {
	state := uint64(seed)
	next := func() int16 {
		state = state*6364136223846793005 + 1442695040888963407
		return int16((state >> 48) & 0xFF) - 128
	}

	for i := range n.FTWeights {
		for j := 0; j < HiddenSize; j++ {
			n.FTWeights[i][j] = next() >> 5
		}
	}
	for i := 0; i < HiddenSize; i++ {
		n.FTBiases[i] = next() >> 3
	}
	for b := 0; b < OutputBuckets; b++ {
		for side := 0; side < 2; side++ {
			for i := 0; i < HiddenSize; i++ {
				n.OutWeights[b][side][i] = next() >> 5
			}
		}
		n.OutBiases[b] = next()
	}
}
