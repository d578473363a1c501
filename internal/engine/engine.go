// Package engine implements the chess AI search engine.
package engine

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sebhofmann/sleepmind2/internal/board"
	"github.com/sebhofmann/sleepmind2/internal/nnue"
)

// SearchInfo contains information about the current search, reported once
// per completed iteration so the UCI layer can emit "info" lines.
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth    int           // Maximum depth (0 = no limit)
	Nodes    uint64        // Maximum nodes (0 = no limit)
	MoveTime time.Duration // Time for this move (0 = no limit)
	Infinite bool          // Search until stopped
}

// Difficulty represents the AI difficulty level.
type Difficulty int

const (
	Easy   Difficulty = iota // ~2-3 ply, 500ms
	Medium                   // up to 7 ply, 1s
	Hard                     // Maximum strength, 3s
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: 40, MoveTime: 3 * time.Second}, // Max strength (time-limited)
}

// Engine is the single-threaded chess AI engine: one Searcher sharing a
// transposition table across iterative-deepening calls, optionally backed
// by an NNUE evaluator in place of the classical hand-crafted evaluation.
type Engine struct {
	tt       *TranspositionTable
	searcher *Searcher

	difficulty Difficulty

	useNNUE  bool
	nnueEval *nnue.Evaluator

	log zerolog.Logger

	// Callbacks
	OnInfo func(SearchInfo)
	// OnSearchComplete, if set, is invoked once per completed root search
	// with the searched position's FEN and the final centipawn score. It
	// is the sole integration point for an external self-play/training-data
	// collector (internal/selfplay); the core search never calls into that
	// package directly.
	OnSearchComplete func(fen string, scoreCP int)
}

// NewEngine creates a new chess engine with the given transposition table size in MB.
func NewEngine(ttSizeMB int) *Engine {
	tt := NewTranspositionTable(ttSizeMB)

	e := &Engine{
		tt:         tt,
		searcher:   NewSearcher(tt),
		difficulty: Medium,
		log:        log.Logger,
	}

	e.log.Info().Int("hash_mb", ttSizeMB).Msg("engine initialized")

	return e
}

// SetLogger replaces the engine's logger, e.g. to attach request-scoped
// fields from the UCI session.
func (e *Engine) SetLogger(l zerolog.Logger) {
	e.log = l
}

// SetDifficulty sets the engine difficulty.
func (e *Engine) SetDifficulty(d Difficulty) {
	e.difficulty = d
}

// SetHashSize replaces the transposition table with a freshly sized one,
// carrying the current search parameters and NNUE evaluator over to the new
// searcher. Any entries from the previous table are lost, matching the UCI
// "Hash" option's documented behavior of resetting the table on resize.
func (e *Engine) SetHashSize(sizeMB int) {
	params := e.searcher.Params()

	e.tt = NewTranspositionTable(sizeMB)
	e.searcher = NewSearcher(e.tt)
	e.searcher.SetParams(params)
	if e.useNNUE && e.nnueEval != nil {
		e.searcher.SetNNUE(e.nnueEval)
	}

	e.log.Info().Int("hash_mb", sizeMB).Msg("hash table resized")
}

// SetParams replaces the underlying searcher's pruning/reduction tuning.
func (e *Engine) SetParams(p SearchParams) {
	e.searcher.SetParams(p)
}

// Params returns the underlying searcher's current pruning/reduction tuning.
func (e *Engine) Params() SearchParams {
	return e.searcher.Params()
}

// Search finds the best move for the given position using the engine's
// configured difficulty.
func (e *Engine) Search(pos *board.Position) board.Move {
	limits := DifficultySettings[e.difficulty]
	return e.SearchWithLimits(pos, limits)
}

// SearchWithLimits runs iterative deepening with aspiration windows until
// limits is satisfied, reporting each completed iteration through OnInfo.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) board.Move {
	e.log.Debug().Str("side_to_move", pos.SideToMove.String()).Msg("search requested")

	e.tt.NewSearch()
	e.searcher.NewSearch(pos)

	startTime := time.Now()
	var bestMove board.Move
	var bestScore int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	var deadline time.Time
	if limits.MoveTime > 0 {
		deadline = startTime.Add(limits.MoveTime)
	}
	e.searcher.SetLimits(deadline, limits.Nodes)

	prevScore := 0

	for depth := 1; depth <= maxDepth; depth++ {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		if limits.Nodes > 0 && e.searcher.Nodes() >= limits.Nodes {
			break
		}

		move, score := e.iterate(depth, prevScore)
		if e.searcher.IsStopped() {
			break
		}

		prevScore = score
		if move != board.NoMove {
			bestMove = move
			bestScore = score
		}

		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth:    depth,
				Score:    bestScore,
				Nodes:    e.searcher.Nodes(),
				Time:     time.Since(startTime),
				PV:       e.searcher.GetPV(),
				HashFull: e.tt.HashFull(),
			})
		}

		if bestScore > MateScore-100 || bestScore < -MateScore+100 {
			break
		}
	}

	if e.OnSearchComplete != nil {
		e.OnSearchComplete(pos.ToFEN(), bestScore)
	}

	return bestMove
}

// SearchWithUCILimits runs iterative deepening under UCI time controls
// (wtime/btime/winc/binc), stopping early once the time manager's stability
// and time-budget heuristics say so.
func (e *Engine) SearchWithUCILimits(pos *board.Position, limits UCILimits, ply int) board.Move {
	tm := NewTimeManager()
	tm.Init(limits, pos.SideToMove, ply)

	e.tt.NewSearch()
	e.searcher.NewSearch(pos)
	e.searcher.SetLimits(tm.Deadline(), limits.Nodes)

	startTime := time.Now()
	var bestMove, lastBestMove board.Move
	var bestScore int
	var stabilityCount, instabilityCount int

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}

	prevScore := 0

	for depth := 1; depth <= maxDepth; depth++ {
		if tm.ShouldStop() {
			break
		}
		if limits.Nodes > 0 && e.searcher.Nodes() >= limits.Nodes {
			break
		}

		iterStart := time.Now()
		move, score := e.iterate(depth, prevScore)
		if e.searcher.IsStopped() {
			break
		}
		iterElapsed := time.Since(iterStart)

		prevScore = score
		if move != board.NoMove {
			if move == lastBestMove {
				stabilityCount++
				instabilityCount = 0
			} else {
				instabilityCount++
				stabilityCount = 0
			}
			lastBestMove = move
			bestMove = move
			bestScore = score
		}

		tm.AdjustForStability(stabilityCount)
		tm.AdjustForInstability(instabilityCount)

		if e.OnInfo != nil {
			e.OnInfo(SearchInfo{
				Depth:    depth,
				Score:    bestScore,
				Nodes:    e.searcher.Nodes(),
				Time:     time.Since(startTime),
				PV:       e.searcher.GetPV(),
				HashFull: e.tt.HashFull(),
			})
		}

		if bestScore > MateScore-100 || bestScore < -MateScore+100 {
			break
		}
		if !limits.Infinite && !tm.ShouldDeepen(iterElapsed) {
			break
		}
	}

	if e.OnSearchComplete != nil {
		e.OnSearchComplete(pos.ToFEN(), bestScore)
	}

	return bestMove
}

// iterate runs a single iterative-deepening depth. From depth 5 on (with
// aspiration enabled) it starts from a window built around prevScore, and a
// fail-low/fail-high re-searches with that side opened all the way to
// +-Infinity; shallower depths search the full window from the start.
func (e *Engine) iterate(depth, prevScore int) (board.Move, int) {
	alpha, beta := -Infinity, Infinity
	if e.searcher.Params().UseAspiration && depth >= 5 {
		window := e.searcher.Params().AspirationWindow
		alpha = prevScore - window
		beta = prevScore + window
	}

	for {
		move, score := e.searcher.SearchDepth(depth, alpha, beta)
		if e.searcher.IsStopped() {
			return move, score
		}
		if score <= alpha && alpha > -Infinity {
			alpha = -Infinity
			continue
		}
		if score >= beta && beta < Infinity {
			beta = Infinity
			continue
		}
		return move, score
	}
}

// Stop stops the current search.
func (e *Engine) Stop() {
	e.searcher.Stop()
}

// Clear clears the transposition table and move-ordering statistics.
func (e *Engine) Clear() {
	e.tt.Clear()
	e.searcher.ClearOrderer()
}

// Perft performs a perft test (for debugging move generation).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}

	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}

	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(move, undo)
	}

	return nodes
}

// Evaluate returns the static evaluation of a position from White's
// perspective, through whichever evaluator (classical or NNUE) is active.
func (e *Engine) Evaluate(pos *board.Position) int {
	if e.useNNUE && e.nnueEval != nil {
		score := e.nnueEval.Evaluate(pos)
		if pos.SideToMove == board.Black {
			return -score
		}
		return score
	}
	return Evaluate(pos)
}

// LoadNNUE loads an NNUE weight file and installs it on the engine's searcher.
func (e *Engine) LoadNNUE(weightsPath string) error {
	e.log.Info().Str("path", weightsPath).Msg("loading NNUE weights")

	eval, err := nnue.NewEvaluator(weightsPath)
	if err != nil {
		wrapped := NewResourceError("LoadNNUE", err)
		e.log.Error().Err(wrapped).Msg("failed to load NNUE weights, falling back to classical evaluation")
		return wrapped
	}

	e.nnueEval = eval
	if e.useNNUE {
		e.searcher.SetNNUE(e.nnueEval)
	}

	e.log.Info().Msg("NNUE weights loaded")
	return nil
}

// SetUseNNUE enables or disables NNUE evaluation.
func (e *Engine) SetUseNNUE(use bool) {
	e.useNNUE = use
	if use && e.nnueEval != nil {
		e.searcher.SetNNUE(e.nnueEval)
	} else {
		e.searcher.SetNNUE(nil)
	}

	if use {
		e.log.Info().Msg("evaluation mode: NNUE")
	} else {
		e.log.Info().Msg("evaluation mode: classical")
	}
}

// UseNNUE returns whether NNUE evaluation is enabled.
func (e *Engine) UseNNUE() bool {
	return e.useNNUE
}

// HasNNUE returns whether an NNUE network is loaded.
func (e *Engine) HasNNUE() bool {
	return e.nnueEval != nil
}

// ScoreToString converts a score to a human-readable string.
func ScoreToString(score int) string {
	if score > MateScore-100 {
		mateIn := (MateScore - score + 1) / 2
		return "Mate in " + itoa(mateIn)
	}
	if score < -MateScore+100 {
		mateIn := (MateScore + score + 1) / 2
		return "Mated in " + itoa(mateIn)
	}

	sign := ""
	if score < 0 {
		sign = "-"
		score = -score
	}
	pawns := score / 100
	centipawns := score % 100

	return sign + itoa(pawns) + "." + itoa(centipawns)
}

// itoa is a small integer-to-string helper, avoiding an fmt import for a
// single conversion used on the UCI hot path.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + itoa(-n)
	}
	s := ""
	for n > 0 {
		s = string('0'+byte(n%10)) + s
		n /= 10
	}
	return s
}
