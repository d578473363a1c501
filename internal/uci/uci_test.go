package uci

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sebhofmann/sleepmind2/internal/board"
	"github.com/sebhofmann/sleepmind2/internal/engine"
)

func newTestUCI(t *testing.T) *UCI {
	t.Helper()
	return New(engine.NewEngine(4))
}

func TestHandlePositionStartposWithMoves(t *testing.T) {
	u := newTestUCI(t)
	u.handlePosition([]string{"startpos", "moves", "e2e4", "e7e5"})

	require.Equal(t, board.Black, u.position.SideToMove)
	require.NotEqual(t, board.NewPosition().Hash, u.position.Hash)
}

func TestHandlePositionFEN(t *testing.T) {
	u := newTestUCI(t)
	fen := "r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3"
	u.handlePosition([]string{"fen", "r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R", "b", "KQkq", "-", "3", "3"})

	want, err := board.ParseFEN(fen)
	require.NoError(t, err)
	require.Equal(t, want.Hash, u.position.Hash)
}

func TestHandlePositionUnparsableMoveIsProtocolError(t *testing.T) {
	u := newTestUCI(t)
	startHash := u.position.Hash

	u.handlePosition([]string{"startpos", "moves", "zz99"})

	// Protocol errors leave the position wherever it was before the bad
	// token; they must never desync or crash the process.
	require.Equal(t, startHash, u.position.Hash)
}

func TestParseSetOption(t *testing.T) {
	name, value, err := parseSetOption([]string{"name", "Use", "LMR", "value", "false"})
	require.NoError(t, err)
	require.Equal(t, "Use LMR", name)
	require.Equal(t, "false", value)
}

func TestParseSetOptionMissingName(t *testing.T) {
	_, _, err := parseSetOption([]string{"value", "123"})
	require.Error(t, err)
}

func TestSetSearchParamTogglesBoolean(t *testing.T) {
	u := newTestUCI(t)
	require.True(t, u.engine.Params().UseNullMove)

	u.setSearchParam("use_nullmove", "false")
	require.False(t, u.engine.Params().UseNullMove)
}

func TestSetSearchParamUpdatesSpinValue(t *testing.T) {
	u := newTestUCI(t)

	u.setSearchParam("aspiration_window", "40")
	require.Equal(t, 40, u.engine.Params().AspirationWindow)
}

func TestCalculateLimitsInfinite(t *testing.T) {
	u := newTestUCI(t)
	limits := u.calculateLimits(GoOptions{Infinite: true})
	require.True(t, limits.Infinite)
}

func TestCalculateLimitsDepthAndMoveTime(t *testing.T) {
	u := newTestUCI(t)
	limits := u.calculateLimits(GoOptions{Depth: 8, MoveTime: 500 * time.Millisecond})
	require.Equal(t, 8, limits.Depth)
	require.Equal(t, 500*time.Millisecond, limits.MoveTime)
}

func TestParseGoOptions(t *testing.T) {
	u := newTestUCI(t)
	opts := u.parseGoOptions([]string{"wtime", "60000", "btime", "60000", "winc", "1000", "movestogo", "30"})

	require.Equal(t, 60000*time.Millisecond, opts.WTime)
	require.Equal(t, 60000*time.Millisecond, opts.BTime)
	require.Equal(t, 1000*time.Millisecond, opts.WInc)
	require.Equal(t, 30, opts.MovesToGo)
}

func TestHandleSetOptionHashResizesTable(t *testing.T) {
	u := newTestUCI(t)
	u.handleSetOption([]string{"name", "Hash", "value", "8"})
	// Resizing must not panic and the engine should still search fine.
	move := u.engine.Search(board.NewPosition())
	require.NotEqual(t, board.NoMove, move)
}
