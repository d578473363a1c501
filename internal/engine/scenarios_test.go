package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sebhofmann/sleepmind2/internal/board"
)

// searchBestMove runs a depth-bounded, time-bounded search and returns the
// resulting move's UCI string, for comparing against the small set of
// acceptable moves each scenario below names.
func searchBestMove(t *testing.T, fen string, depth int) string {
	t.Helper()

	var pos *board.Position
	if fen == "" {
		pos = board.NewPosition()
	} else {
		var err error
		pos, err = board.ParseFEN(fen)
		require.NoError(t, err)
	}

	eng := NewEngine(32)
	move := eng.SearchWithLimits(pos, SearchLimits{Depth: depth, MoveTime: 5 * time.Second})
	require.NotEqual(t, board.NoMove, move, "fen=%q", fen)
	return move.String()
}

func TestScenarioOpeningMove(t *testing.T) {
	move := searchBestMove(t, "", 10)
	require.Contains(t, []string{"e2e4", "d2d4", "g1f3", "c2c4"}, move)
}

func TestScenarioMateInOne(t *testing.T) {
	move := searchBestMove(t, "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1", 10)
	require.Equal(t, "a1a8", move)
}

func TestScenarioScholarsMateDefense(t *testing.T) {
	pos := board.NewPosition()
	for _, s := range []string{"e2e4", "e7e5", "d1h5", "b8c6", "f1c4"} {
		m, err := board.ParseMove(s, pos)
		require.NoError(t, err)
		pos.MakeMove(m)
		pos.UpdateCheckers()
	}

	eng := NewEngine(32)
	move := eng.SearchWithLimits(pos, SearchLimits{Depth: 10, MoveTime: 5 * time.Second})
	require.NotEqual(t, board.NoMove, move)
	require.NotEqual(t, "f7f6", move.String(), "must not hang the king to mate in one")
}

func TestScenarioZugzwangKPEndgame(t *testing.T) {
	move := searchBestMove(t, "8/8/8/4k3/8/4K3/4P3/8 w - - 0 1", 10)
	// Any king move that keeps the opposition is acceptable; what must never
	// happen is pushing or abandoning the pawn.
	require.NotEqual(t, "e2e4", move, "must not blunder the pawn push")
	require.NotEqual(t, "e2e3", move, "must not blunder the pawn push")
}

func TestScenarioPromotionTactic(t *testing.T) {
	pos, err := board.ParseFEN("8/P7/8/8/8/8/8/k6K w - - 0 1")
	require.NoError(t, err)

	eng := NewEngine(32)
	move := eng.SearchWithLimits(pos, SearchLimits{Depth: 10, MoveTime: 5 * time.Second})
	require.Equal(t, "a7a8q", move.String())

	score := eng.Evaluate(pos)
	require.GreaterOrEqual(t, score, 0, "white's evaluation before promoting must not already look lost")
}

func TestScenarioCheckmateReturnsMateScore(t *testing.T) {
	pos, err := board.ParseFEN("6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1")
	require.NoError(t, err)

	s := NewSearcher(NewTranspositionTable(4))
	s.NewSearch(pos)
	_, score := s.SearchDepth(5, -Infinity, Infinity)
	require.Greater(t, score, MateScore-100)
}

func TestScenarioStalemateReturnsZero(t *testing.T) {
	// Black to move, no legal moves, not in check.
	pos, err := board.ParseFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	require.NoError(t, err)
	require.Zero(t, pos.GenerateLegalMoves().Len())
	require.False(t, pos.InCheck())

	s := NewSearcher(NewTranspositionTable(4))
	s.NewSearch(pos)
	_, score := s.SearchDepth(1, -Infinity, Infinity)
	require.Zero(t, score)
}
