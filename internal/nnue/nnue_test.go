package nnue

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sebhofmann/sleepmind2/internal/board"
)

func TestFeatureIndexInBounds(t *testing.T) {
	pos := board.NewPosition()

	for _, perspective := range [2]board.Color{board.White, board.Black} {
		for _, idx := range ActiveFeatures(pos, perspective) {
			require.GreaterOrEqual(t, idx, 0)
			require.Less(t, idx, InputBuckets*FeatureCount)
		}
	}
}

func TestOutputBucketMonotonic(t *testing.T) {
	prev := outputBucket(2)
	for pieces := 3; pieces <= 32; pieces++ {
		b := outputBucket(pieces)
		require.GreaterOrEqual(t, b, prev)
		require.Less(t, b, OutputBuckets)
		prev = b
	}
}

// assertIncrementalMatchesRefresh plays moveStr against fen through both
// Accumulator.ApplyMove and a from-scratch RefreshFull, and requires the two
// perspectives to match exactly.
func assertIncrementalMatchesRefresh(t *testing.T, seed int64, fen, moveStr string) {
	t.Helper()

	pos, err := board.ParseFEN(fen)
	require.NoError(t, err)

	net := NewNetwork()
	net.InitRandom(seed)

	acc := &Accumulator{}
	acc.RefreshFull(pos, net)

	m, err := board.ParseMove(moveStr, pos)
	require.NoError(t, err)

	var captured board.Piece
	if m.IsEnPassant() {
		captured = board.NewPiece(board.Pawn, pos.SideToMove.Other())
	} else {
		captured = pos.PieceAt(m.To())
	}

	acc.ApplyMove(pos, net, m, captured)
	pos.MakeMove(m)

	// Mirror Evaluator.Evaluate's lazy-refresh contract: a stale perspective
	// (own king moved) is only ever rebuilt against the post-move position,
	// never compared to the pre-move accumulation.
	if !acc.Computed[board.White] || !acc.Computed[board.Black] {
		acc.RefreshFull(pos, net)
	}

	want := &Accumulator{}
	want.RefreshFull(pos, net)

	require.Equal(t, want.White, acc.White)
	require.Equal(t, want.Black, acc.Black)
}

func TestIncrementalMatchesFullRefresh(t *testing.T) {
	assertIncrementalMatchesRefresh(t, 42, board.StartFEN, "e2e4")
}

func TestIncrementalMatchesFullRefreshKingMove(t *testing.T) {
	assertIncrementalMatchesRefresh(t, 43, "4k3/8/8/8/8/8/8/4K3 w - - 0 1", "e1e2")
}

func TestIncrementalMatchesFullRefreshCapture(t *testing.T) {
	assertIncrementalMatchesRefresh(t, 44, "4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1", "e4d5")
}

func TestIncrementalMatchesFullRefreshEnPassant(t *testing.T) {
	assertIncrementalMatchesRefresh(t, 45, "4k3/8/8/8/3pP3/8/8/4K3 b - e3 0 1", "d4e3")
}

func TestIncrementalMatchesFullRefreshPromotion(t *testing.T) {
	assertIncrementalMatchesRefresh(t, 46, "4k3/P7/8/8/8/8/8/4K3 w - - 0 1", "a7a8q")
}

// TestMakeUnmakeRestoresHistoryExactly guards the repetition ring across an
// irreversible move: MakeMove resets it, so UnmakeMove must restore the
// exact prior slice rather than merely truncate the freshly-reset one.
func TestMakeUnmakeRestoresHistoryExactly(t *testing.T) {
	pos, err := board.ParseFEN("4k3/8/8/8/8/4P3/8/4K3 w - - 0 1")
	require.NoError(t, err)

	quiet, err := board.ParseMove("e1d1", pos)
	require.NoError(t, err)
	undo1 := pos.MakeMove(quiet)
	historyBeforeIrreversible := append([]uint64(nil), pos.History...)

	pawnPush, err := board.ParseMove("e3e4", pos)
	require.NoError(t, err)
	undo2 := pos.MakeMove(pawnPush)
	require.Len(t, pos.History, 1, "irreversible move must reset the repetition ring")

	pos.UnmakeMove(pawnPush, undo2)
	require.Equal(t, historyBeforeIrreversible, pos.History, "unmake must restore the exact pre-move history")

	pos.UnmakeMove(quiet, undo1)
}

func TestWeightsRoundTrip(t *testing.T) {
	net := NewNetwork()
	net.InitRandom(7)

	f, err := os.CreateTemp(t.TempDir(), "weights-*.bin")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())

	require.NoError(t, net.SaveWeights(path))

	loaded := NewNetwork()
	require.NoError(t, loaded.LoadWeights(path))

	require.Equal(t, net.FTBiases, loaded.FTBiases)
	require.Equal(t, net.OutBiases, loaded.OutBiases)
	require.Equal(t, net.OutWeights, loaded.OutWeights)
}

func TestEvaluateDeterministic(t *testing.T) {
	pos := board.NewPosition()

	net := NewNetwork()
	net.InitRandom(99)

	eval, err := NewEvaluator("")
	require.NoError(t, err)
	eval.net = net

	a := eval.Evaluate(pos)
	b := eval.Evaluate(pos)
	require.Equal(t, a, b)
}
