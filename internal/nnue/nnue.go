// Package nnue implements an Efficiently Updatable Neural Network evaluator:
// a king-bucketed feature transformer feeding two perspective accumulators,
// reduced through a squared-clipped-ReLU output head selected by total piece
// count.
package nnue

import "github.com/sebhofmann/sleepmind2/internal/board"

// Network architecture constants.
const (
	InputBuckets  = 4   // King-bucket count for the feature transformer
	OutputBuckets = 8   // Output-head count, selected by material count
	HiddenSize    = 256 // Per-perspective accumulator width

	piecesPerColor = 6 // Pawn..King, King reserved but never an active feature
	squaresPerSide = 64
	FeatureCount   = squaresPerSide * piecesPerColor * 2 // per input bucket

	// Quantization constants, fixed by the weight-file format contract.
	QA    = 255
	QB    = 64
	Scale = 400
)

// clampInt clamps x to [lo, hi].
func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// screlu is the Squared Clipped ReLU nonlinearity: clamp(x, 0, QA)^2.
func screlu(x int16) int32 {
	v := int32(x)
	if v < 0 {
		v = 0
	}
	if v > QA {
		v = QA
	}
	return v * v
}

// Evaluator ties a loaded Network to a per-search accumulator stack.
type Evaluator struct {
	net   *Network
	stack *AccumulatorStack
}

// NewEvaluator creates a new NNUE evaluator. If weightsFile is empty, the
// network is left randomly initialized (for tests only — never for play).
func NewEvaluator(weightsFile string) (*Evaluator, error) {
	net := NewNetwork()

	if weightsFile != "" {
		if err := net.LoadWeights(weightsFile); err != nil {
			return nil, err
		}
	} else {
		net.InitRandom(12345)
	}

	return &Evaluator{
		net:   net,
		stack: NewAccumulatorStack(),
	}, nil
}

// Evaluate returns the NNUE evaluation of the position, in centipawns, from
// the perspective of the side to move.
func (e *Evaluator) Evaluate(pos *board.Position) int {
	acc := e.stack.Current()
	if !acc.Computed[board.White] || !acc.Computed[board.Black] {
		acc.RefreshFull(pos, e.net)
	}
	pieceCount := pos.AllOccupied.PopCount()
	return e.net.Evaluate(acc, pos.SideToMove, pieceCount)
}

// Push saves accumulator state; call before MakeMove.
func (e *Evaluator) Push() {
	e.stack.Push()
}

// Pop restores the prior accumulator state; call after UnmakeMove.
func (e *Evaluator) Pop() {
	e.stack.Pop()
}

// Refresh forces a full recomputation of the current accumulator.
func (e *Evaluator) Refresh(pos *board.Position) {
	e.stack.Current().RefreshFull(pos, e.net)
}

// Update applies the incremental feature deltas for a move about to be made
// from pos (the pre-move position). A perspective whose own king moves is
// instead marked stale and lazily refreshed on the next Evaluate call.
func (e *Evaluator) Update(pos *board.Position, m board.Move, captured board.Piece) {
	e.stack.Current().ApplyMove(pos, e.net, m, captured)
}

// Reset clears the accumulator stack for a new game.
func (e *Evaluator) Reset() {
	e.stack.Reset()
}
