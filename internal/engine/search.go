package engine

import (
	"sync/atomic"
	"time"

	"github.com/sebhofmann/sleepmind2/internal/board"
	"github.com/sebhofmann/sleepmind2/internal/nnue"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// lmrReductions is a precomputed late-move-reduction table, indexed by
// [depth][moveCount]: one ply, plus one each from depth 6 and depth 10, plus
// one each from 8, 16 and 32 moves already searched.
var lmrReductions [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			r := 1
			for _, step := range [...]bool{d >= 6, d >= 10, m >= 8, m >= 16, m >= 32} {
				if step {
					r++
				}
			}
			lmrReductions[d][m] = r
		}
	}
}

// futilityMargin returns the futility-pruning margin for the given
// remaining depth, driven by the three UCI-tunable levels spec.md §6 names
// (Futility_Margin/D2/D3 for depths 1-3) and extrapolated linearly beyond
// depth 3 at the same 200cp-per-ply step the teacher's fixed table used.
func (s *Searcher) futilityMargin(depth int) int {
	switch {
	case depth <= 0:
		return 0
	case depth == 1:
		return s.params.FutilityMargin
	case depth == 2:
		return s.params.FutilityMarginD2
	case depth == 3:
		return s.params.FutilityMarginD3
	default:
		return s.params.FutilityMarginD3 + 200*(depth-3)
	}
}

// SearchParams holds the tunable pruning/reduction knobs exposed as UCI
// options, so operators can disable or retune individual techniques without
// a rebuild.
type SearchParams struct {
	UseLMR          bool
	UseNullMove     bool
	UseFutility     bool
	UseRFP          bool
	UseDeltaPruning bool
	UseAspiration   bool

	LMRFullDepthMoves int
	LMRReductionLimit int
	NullMoveReduction int
	NullMoveMinDepth  int
	FutilityMargin    int
	FutilityMarginD2  int
	FutilityMarginD3  int
	RFPMargin         int
	RFPMaxDepth       int
	DeltaMargin       int
	AspirationWindow  int
}

// DefaultSearchParams returns the engine's out-of-the-box tuning, matching
// the values baked into the pruning formulas below.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		UseLMR:          true,
		UseNullMove:     true,
		UseFutility:     true,
		UseRFP:          true,
		UseDeltaPruning: true,
		UseAspiration:   true,

		LMRFullDepthMoves: 2,
		LMRReductionLimit: 3,
		NullMoveReduction: 3,
		NullMoveMinDepth:  3,
		FutilityMargin:    200,
		FutilityMarginD2:  300,
		FutilityMarginD3:  500,
		RFPMargin:         200,
		RFPMaxDepth:       6,
		DeltaMargin:       200,
		AspirationWindow:  25,
	}
}

// PVTable stores the principal variation.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// Searcher performs a single-threaded alpha-beta search with the modern
// pruning techniques expected of a UCI engine: null-move pruning, reverse
// futility pruning, futility pruning, late move reductions and check
// extensions, on top of transposition-table cutoffs and move ordering.
type Searcher struct {
	pos     *board.Position
	tt      *TranspositionTable
	orderer  *MoveOrderer
	corr     *CorrectionHistory
	params   SearchParams
	nnueEval *nnue.Evaluator

	nodes     uint64
	stopFlag  atomic.Bool
	deadline  time.Time // zero means no time limit
	nodeLimit uint64    // 0 means no node limit

	pv PVTable

	undoStack  [MaxPly]board.UndoInfo
	prevMove   [MaxPly]board.Move
	staticEval [MaxPly]int
}

// NewSearcher creates a new searcher sharing the given transposition table.
func NewSearcher(tt *TranspositionTable) *Searcher {
	return &Searcher{
		tt:      tt,
		orderer: NewMoveOrderer(),
		corr:    NewCorrectionHistory(),
		params:  DefaultSearchParams(),
	}
}

// SetParams replaces the searcher's pruning/reduction tuning.
func (s *Searcher) SetParams(p SearchParams) {
	s.params = p
}

// Params returns the searcher's current pruning/reduction tuning.
func (s *Searcher) Params() SearchParams {
	return s.params
}

// SetNNUE installs an NNUE evaluator; subsequent searches evaluate through
// its incrementally-updated accumulators instead of the classical
// hand-crafted evaluation. Pass nil to revert to classical evaluation.
func (s *Searcher) SetNNUE(e *nnue.Evaluator) {
	s.nnueEval = e
}

// doMove plays move on the board, maintaining the NNUE accumulator stack in
// lockstep when an evaluator is installed.
func (s *Searcher) doMove(move board.Move) board.UndoInfo {
	if s.nnueEval != nil {
		captured := s.capturedPiece(move)
		s.nnueEval.Push()
		s.nnueEval.Update(s.pos, move, captured)
	}
	return s.pos.MakeMove(move)
}

// undoMove reverses doMove.
func (s *Searcher) undoMove(move board.Move, undo board.UndoInfo) {
	s.pos.UnmakeMove(move, undo)
	if s.nnueEval != nil {
		s.nnueEval.Pop()
	}
}

// capturedPiece returns the piece a move about to be played on s.pos (still
// in its pre-move state) will remove from the board, board.NoPiece if none.
func (s *Searcher) capturedPiece(move board.Move) board.Piece {
	if move.IsEnPassant() {
		return board.NewPiece(board.Pawn, s.pos.SideToMove.Other())
	}
	return s.pos.PieceAt(move.To())
}

// SetLimits installs the hard deadline and node cap the node-count poll in
// negamax enforces. A zero deadline means no time limit; a zero nodeLimit
// means no node limit. Call before each SearchDepth iteration loop so a
// single deep iteration can't overrun go movetime/go nodes.
func (s *Searcher) SetLimits(deadline time.Time, nodeLimit uint64) {
	s.deadline = deadline
	s.nodeLimit = nodeLimit
}

// Stop signals the search to stop.
func (s *Searcher) Stop() {
	s.stopFlag.Store(true)
}

// IsStopped reports whether the search has been signaled to stop.
func (s *Searcher) IsStopped() bool {
	return s.stopFlag.Load()
}

// ClearOrderer discards accumulated move-ordering statistics.
func (s *Searcher) ClearOrderer() {
	s.orderer = NewMoveOrderer()
}

// Reset resets the searcher for a new search.
func (s *Searcher) Reset() {
	s.stopFlag.Store(false)
	s.nodes = 0
	s.orderer.Clear()
}

// Nodes returns the number of nodes searched.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// NewSearch prepares the searcher for a fresh iterative-deepening run over
// pos: resets node count, stop flag and ages move-ordering tables, but
// leaves the shared transposition table untouched between calls.
func (s *Searcher) NewSearch(pos *board.Position) {
	s.pos = pos.Copy()
	s.Reset()
	if s.nnueEval != nil {
		s.nnueEval.Reset()
		s.nnueEval.Refresh(s.pos)
	}
}

// SearchDepth runs one iteration of the search already set up by NewSearch,
// at the given depth and aspiration window, without resetting node count or
// move-ordering state — so later iterations benefit from earlier ones.
func (s *Searcher) SearchDepth(depth, alpha, beta int) (board.Move, int) {
	score := s.negamax(depth, 0, alpha, beta, board.NoMove)

	var bestMove board.Move
	if s.pv.length[0] > 0 {
		bestMove = s.pv.moves[0][0]
	}

	return bestMove, score
}

// Search performs a single fixed-depth, full-window search from the root.
// Convenience wrapper over NewSearch+SearchDepth for tests and one-shot
// callers that don't need iterative deepening.
func (s *Searcher) Search(pos *board.Position, depth int) (board.Move, int) {
	s.NewSearch(pos)
	return s.SearchDepth(depth, -Infinity, Infinity)
}

// negamax implements the negamax algorithm with alpha-beta pruning and the
// standard pruning/reduction suite.
func (s *Searcher) negamax(depth, ply int, alpha, beta int, prevMove board.Move) int {
	if s.nodes&2047 == 0 {
		if s.stopFlag.Load() {
			return 0
		}
		if s.nodeLimit > 0 && s.nodes >= s.nodeLimit {
			s.stopFlag.Store(true)
			return 0
		}
		if !s.deadline.IsZero() && time.Now().After(s.deadline) {
			s.stopFlag.Store(true)
			return 0
		}
	}

	s.nodes++
	s.pv.length[ply] = ply

	if ply > 0 && s.isDraw() {
		return 0
	}

	isPV := beta-alpha > 1

	// Mate distance pruning: no line can beat a mate already found closer to the root.
	if ply > 0 {
		matingValue := MateScore - ply
		if matingValue < beta {
			beta = matingValue
			if alpha >= beta {
				return beta
			}
		}
		matedValue := -MateScore + ply
		if matedValue > alpha {
			alpha = matedValue
			if alpha >= beta {
				return alpha
			}
		}
	}

	var ttMove board.Move
	ttEntry, found := s.tt.Probe(s.pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		if int(ttEntry.Depth) >= depth && !isPV {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score > alpha {
					alpha = score
				}
			case TTUpperBound:
				if score < beta {
					beta = score
				}
			}
			if alpha >= beta {
				return score
			}
		}
	}

	if depth <= 0 {
		return s.quiescence(ply, alpha, beta)
	}

	inCheck := s.pos.InCheck()

	rawStaticEval := s.relativeEval()
	staticEval := rawStaticEval + s.corr.Get(s.pos)
	s.staticEval[ply] = staticEval

	// Reverse futility pruning: if we're already far above beta, assume the
	// opponent won't let us keep this much of an advantage.
	if s.params.UseRFP && !inCheck && !isPV && depth <= s.params.RFPMaxDepth && staticEval-s.params.RFPMargin*depth >= beta && beta < MateScore-MaxPly {
		return staticEval
	}

	// Null-move pruning: skip our turn and see if the opponent still can't
	// beat beta. Guarded against zugzwang with a non-pawn-material check.
	if s.params.UseNullMove && !inCheck && !isPV && depth >= s.params.NullMoveMinDepth && staticEval >= beta && s.pos.HasNonPawnMaterial() {
		R := s.params.NullMoveReduction + depth/6
		nullUndo := s.pos.MakeNullMove()
		nullScore := -s.negamax(depth-1-R, ply+1, -beta, -beta+1, board.NoMove)
		s.pos.UnmakeNullMove(nullUndo)

		if s.stopFlag.Load() {
			return 0
		}
		if nullScore >= beta {
			if nullScore >= MateScore-MaxPly {
				nullScore = beta
			}
			// Verify at the reduced depth with the real window before
			// trusting the null-move cutoff; zugzwang can otherwise slip
			// through the material guard above.
			verifyDepth := depth - R - 1
			if verifyDepth <= 0 || s.negamax(verifyDepth, ply, alpha, beta, prevMove) >= beta {
				return nullScore
			}
		}
	}

	moves := s.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	scores := s.orderer.ScoreMovesWithCounter(s.pos, moves, ply, ttMove, prevMove)

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	movesSearched := 0
	canFutilityPrune := s.params.UseFutility && !inCheck && !isPV && depth <= 3 && staticEval+s.futilityMargin(depth) <= alpha
	var triedQuiets []board.Move

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)
		isCapture := move.IsCapture()
		isPromotion := move.IsPromotion()

		// Futility pruning: a quiet move this far behind isn't going to catch up.
		if canFutilityPrune && movesSearched > 0 && !isCapture && !isPromotion && bestMove != board.NoMove {
			continue
		}

		s.undoStack[ply] = s.doMove(move)
		if !s.undoStack[ply].Valid {
			if s.nnueEval != nil {
				s.nnueEval.Pop()
			}
			continue
		}

		givesCheck := s.pos.InCheck()
		extension := 0
		if givesCheck {
			extension = 1
		}

		newDepth := depth - 1 + extension

		var score int
		if movesSearched == 0 {
			score = -s.negamax(newDepth, ply+1, -beta, -alpha, move)
		} else {
			reduction := 0
			if s.params.UseLMR && depth >= s.params.LMRReductionLimit && movesSearched >= s.params.LMRFullDepthMoves && !isCapture && !isPromotion && !inCheck && !givesCheck {
				d := depth
				if d > 63 {
					d = 63
				}
				m := movesSearched
				if m > 63 {
					m = 63
				}
				reduction = lmrReductions[d][m]
				if isPV {
					reduction--
				}
				if reduction < 0 {
					reduction = 0
				}
				if reduction > newDepth-1 {
					reduction = newDepth - 1
				}
			}

			score = -s.negamax(newDepth-reduction, ply+1, -alpha-1, -alpha, move)
			if score > alpha && reduction > 0 {
				// The reduced search beat alpha: re-verify at full depth,
				// still inside the null window, before trusting it enough
				// to open the window for a PV re-search.
				score = -s.negamax(newDepth, ply+1, -alpha-1, -alpha, move)
			}
			if score > alpha && score < beta {
				score = -s.negamax(newDepth, ply+1, -beta, -alpha, move)
			}
		}

		s.undoMove(move, s.undoStack[ply])
		movesSearched++

		if !isCapture && !isPromotion {
			triedQuiets = append(triedQuiets, move)
		}

		if s.stopFlag.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				s.pv.moves[ply][ply] = move
				for j := ply + 1; j < s.pv.length[ply+1]; j++ {
					s.pv.moves[ply][j] = s.pv.moves[ply+1][j]
				}
				s.pv.length[ply] = s.pv.length[ply+1]
			}
		}

		if score >= beta {
			s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(score, ply), TTLowerBound, bestMove)

			if !isCapture {
				s.orderer.UpdateKillers(move, ply)
				s.orderer.UpdateHistory(move, depth, true)
				if prevMove != board.NoMove {
					s.orderer.UpdateCounterMove(prevMove, move, s.pos)
				}
				// Every quiet move tried before the one that cut off lost
				// its chance; penalize them so they sink in future ordering.
				for _, tried := range triedQuiets {
					if tried != move {
						s.orderer.UpdateHistoryMalus(tried, depth)
					}
				}
			}

			return score
		}
	}

	s.tt.Store(s.pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove)

	if !inCheck && bestMove != board.NoMove && !bestMove.IsCapture() &&
		bestScore > -MateScore+MaxPly && bestScore < MateScore-MaxPly {
		s.corr.Update(s.pos, bestScore, rawStaticEval, depth)
	}

	return bestScore
}

// quiescence searches captures (and, when in check, every evasion) to avoid
// the horizon effect and to let checkmates be found at the search horizon.
func (s *Searcher) quiescence(ply int, alpha, beta int) int {
	const maxQuiescencePly = 32
	if ply >= MaxPly || ply > maxQuiescencePly {
		return s.relativeEval()
	}

	if s.stopFlag.Load() {
		return 0
	}

	s.nodes++

	var ttMove board.Move
	ttEntry, found := s.tt.Probe(s.pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		score := AdjustScoreFromTT(int(ttEntry.Score), ply)
		switch ttEntry.Flag {
		case TTExact:
			return score
		case TTLowerBound:
			if score >= beta {
				return score
			}
		case TTUpperBound:
			if score <= alpha {
				return score
			}
		}
	}

	inCheck := s.pos.InCheck()

	var standPat int
	if !inCheck {
		standPat = s.relativeEval()
		if standPat >= beta {
			return beta
		}
		if standPat > alpha {
			alpha = standPat
		}
		if s.params.UseDeltaPruning {
			bigDelta := QueenValue
			if standPat+bigDelta < alpha {
				return alpha
			}
		}
	} else {
		standPat = -MateScore + ply
	}

	var moves *board.MoveList
	if inCheck {
		moves = s.pos.GenerateLegalMoves()
	} else {
		moves = s.pos.GenerateCaptures()
	}

	if inCheck && moves.Len() == 0 {
		return -MateScore + ply
	}

	scores := s.orderer.ScoreMoves(s.pos, moves, ply, ttMove)

	bestScore := standPat
	bestMove := board.NoMove
	flag := TTUpperBound
	searchedAny := false

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		if !inCheck {
			var captureValue int
			if move.IsEnPassant() {
				captureValue = PawnValue
			} else {
				capturedPiece := s.pos.PieceAt(move.To())
				if capturedPiece != board.NoPiece {
					captureValue = pieceValues[capturedPiece.Type()]
				}
			}
			if move.IsPromotion() {
				captureValue += QueenValue - PawnValue
			}
			if s.params.UseDeltaPruning && standPat+captureValue+s.params.DeltaMargin < alpha {
				continue
			}
			if SEE(s.pos, move) < 0 {
				continue
			}
		}

		undo := s.doMove(move)
		if !undo.Valid {
			if s.nnueEval != nil {
				s.nnueEval.Pop()
			}
			continue
		}

		searchedAny = true
		score := -s.quiescence(ply+1, -beta, -alpha)

		s.undoMove(move, undo)

		if score > bestScore {
			bestScore = score
			bestMove = move
			if score > alpha {
				alpha = score
				flag = TTExact
			}
		}

		if score >= beta {
			s.tt.Store(s.pos.Hash, 0, AdjustScoreToTT(score, ply), TTLowerBound, move)
			return score
		}
	}

	if inCheck && !searchedAny {
		return -MateScore + ply
	}

	s.tt.Store(s.pos.Hash, 0, AdjustScoreToTT(bestScore, ply), flag, bestMove)
	return bestScore
}

// relativeEval returns the static evaluation relative to the side to move.
// With an NNUE evaluator installed it reads the incrementally-maintained
// accumulators (already side-to-move relative); otherwise it falls back to
// the classical evaluation, negating the white-relative Evaluate() exactly
// once.
func (s *Searcher) relativeEval() int {
	if s.nnueEval != nil {
		return s.nnueEval.Evaluate(s.pos)
	}
	score := Evaluate(s.pos)
	if s.pos.SideToMove == board.Black {
		return -score
	}
	return score
}

// isDraw checks for a draw by repetition, the fifty-move rule, or
// insufficient material.
func (s *Searcher) isDraw() bool {
	if s.pos.HalfMoveClock >= 100 {
		return true
	}
	if s.pos.IsInsufficientMaterial() {
		return true
	}
	if s.pos.IsRepetition() {
		return true
	}
	return false
}

// GetPV returns the principal variation from the last search.
func (s *Searcher) GetPV() []board.Move {
	pv := make([]board.Move, s.pv.length[0])
	for i := 0; i < s.pv.length[0]; i++ {
		pv[i] = s.pv.moves[0][i]
	}
	return pv
}
