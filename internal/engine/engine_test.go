package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sebhofmann/sleepmind2/internal/board"
)

func TestSearchBasic(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)
	eng.SetDifficulty(Easy)

	move := eng.Search(pos)
	require.NotEqual(t, board.NoMove, move, "search returned no move for the starting position")
}

func TestSearchWithLimitsAcrossPositions(t *testing.T) {
	eng := NewEngine(16)

	positions := []string{
		board.StartFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3", // Italian Game
		"8/8/8/4k3/8/4K3/4P3/8 w - - 0 1",                                  // KP endgame
	}

	for i, fen := range positions {
		pos, err := board.ParseFEN(fen)
		require.NoError(t, err, "position %d", i)

		limits := SearchLimits{Depth: 5, MoveTime: 300 * time.Millisecond}
		move := eng.SearchWithLimits(pos, limits)

		if move == board.NoMove {
			require.Zero(t, pos.GenerateLegalMoves().Len(), "position %d: no move found despite legal moves existing", i)
			continue
		}
	}
}

func TestSearchWithUCILimitsRespectsMoveTime(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	limits := UCILimits{MoveTime: 200 * time.Millisecond}

	start := time.Now()
	move := eng.SearchWithUCILimits(pos, limits, 0)
	elapsed := time.Since(start)

	require.NotEqual(t, board.NoMove, move)
	require.Less(t, elapsed, 2*time.Second, "search ran well past its move-time budget")
}

func TestStopHaltsSearch(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(16)

	go func() {
		time.Sleep(50 * time.Millisecond)
		eng.Stop()
	}()

	start := time.Now()
	eng.SearchWithLimits(pos, SearchLimits{Depth: 60, Infinite: true})
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestEvaluateSymmetry(t *testing.T) {
	pos, err := board.ParseFEN("rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq e6 0 2")
	require.NoError(t, err)

	eng := NewEngine(1)
	// The position after 1.e4 e5 is symmetric but for side to move,
	// so classical evaluation should be near zero either way.
	score := eng.Evaluate(pos)
	require.Less(t, score, 100)
	require.Greater(t, score, -100)
}

func TestPerftStartingPosition(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(1)

	require.EqualValues(t, 1, eng.Perft(pos, 0))
	require.EqualValues(t, 20, eng.Perft(pos, 1))
	require.EqualValues(t, 400, eng.Perft(pos, 2))
}

func TestScoreToString(t *testing.T) {
	require.Equal(t, "1.0", ScoreToString(100))
	require.Equal(t, "-1.50", ScoreToString(-150))
	require.Contains(t, ScoreToString(MateScore-5), "Mate in")
	require.Contains(t, ScoreToString(-MateScore+5), "Mated in")
}
