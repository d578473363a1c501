// Package uci implements the Universal Chess Interface protocol, translating
// stdin/stdout UCI text into calls against an internal/engine.Engine.
package uci

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/profile"
	"github.com/rs/zerolog"

	"github.com/sebhofmann/sleepmind2/internal/board"
	"github.com/sebhofmann/sleepmind2/internal/engine"
	"github.com/sebhofmann/sleepmind2/internal/selfplay"
)

// UCI implements the Universal Chess Interface protocol.
type UCI struct {
	engine   *engine.Engine
	position *board.Position

	// NNUE configuration
	nnuePath string

	// Self-play / training-data collection (SPEC_FULL.md §4.11)
	selfplayPath string
	recorder     *selfplay.Recorder

	// Search state
	searching     bool
	searchDone    chan struct{}
	stopRequested atomic.Bool

	// CPU profiling, toggled on/off at runtime via "setoption name CPUProfile"
	profiler interface{ Stop() }

	log zerolog.Logger
}

// New creates a new UCI protocol handler.
func New(eng *engine.Engine) *UCI {
	return &UCI{
		engine:   eng,
		position: board.NewPosition(),
		log:      zerolog.New(os.Stderr).With().Timestamp().Str("component", "uci").Logger(),
	}
}

// Run starts the UCI main loop, reading commands from stdin until "quit" or
// EOF.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "quit":
			u.handleQuit()
		case "setoption":
			u.handleSetOption(args)
		// Debug commands, not part of the UCI spec but standard in the
		// engines this one is tested against.
		case "d":
			fmt.Println(u.position.String())
		case "perft":
			u.handlePerft(args)
		default:
			u.protocolError("Run", fmt.Errorf("unknown command %q", cmd))
		}
	}
}

// protocolError logs a ClassProtocol EngineError as both a zerolog line and
// a UCI "info string", and otherwise does nothing: protocol errors are
// non-fatal by spec.md §7, the offending line is simply ignored.
func (u *UCI) protocolError(op string, err error) {
	wrapped := engine.NewProtocolError(op, err)
	u.log.Warn().Err(wrapped).Msg("protocol error, ignoring line")
	fmt.Printf("info string %s\n", wrapped.Error())
}

// fatalDesync logs a ClassInvariant EngineError and aborts the process: a
// position move that looked like algebraic notation but isn't legal from the
// current board means the front end's model of the position has drifted
// from the engine's, and continuing would search the wrong position.
func (u *UCI) fatalDesync(op string, err error) {
	wrapped := engine.NewInvariantError(op, err)
	u.log.Error().Err(wrapped).Msg("position desynchronized from front end, aborting")
	fmt.Printf("info string fatal: %s\n", wrapped.Error())
	os.Exit(1)
}

// handleUCI responds to the "uci" command with engine identity and the full
// option list, including spec.md §6's named pruning switches and knobs.
func (u *UCI) handleUCI() {
	fmt.Println("id name sleepmind2")
	fmt.Println("id author sebhofmann")
	fmt.Println()

	fmt.Println("option name Hash type spin default 64 min 1 max 4096")
	fmt.Println("option name UseNNUE type check default false")
	fmt.Println("option name EvalFile type string default <empty>")
	fmt.Println("option name SelfPlay type string default <empty>")
	fmt.Println("option name CPUProfile type string default <empty>")

	p := engine.DefaultSearchParams()
	fmt.Printf("option name Use_LMR type check default %v\n", p.UseLMR)
	fmt.Printf("option name Use_NullMove type check default %v\n", p.UseNullMove)
	fmt.Printf("option name Use_Futility type check default %v\n", p.UseFutility)
	fmt.Printf("option name Use_RFP type check default %v\n", p.UseRFP)
	fmt.Printf("option name Use_DeltaPruning type check default %v\n", p.UseDeltaPruning)
	fmt.Printf("option name Use_Aspiration type check default %v\n", p.UseAspiration)

	fmt.Printf("option name LMR_FullDepthMoves type spin default %d min 0 max 16\n", p.LMRFullDepthMoves)
	fmt.Printf("option name LMR_ReductionLimit type spin default %d min 0 max 16\n", p.LMRReductionLimit)
	fmt.Printf("option name NullMove_Reduction type spin default %d min 0 max 8\n", p.NullMoveReduction)
	fmt.Printf("option name NullMove_MinDepth type spin default %d min 0 max 16\n", p.NullMoveMinDepth)
	fmt.Printf("option name Futility_Margin type spin default %d min 0 max 2000\n", p.FutilityMargin)
	fmt.Printf("option name Futility_MarginD2 type spin default %d min 0 max 2000\n", p.FutilityMarginD2)
	fmt.Printf("option name Futility_MarginD3 type spin default %d min 0 max 2000\n", p.FutilityMarginD3)
	fmt.Printf("option name RFP_Margin type spin default %d min 0 max 2000\n", p.RFPMargin)
	fmt.Printf("option name RFP_MaxDepth type spin default %d min 0 max 16\n", p.RFPMaxDepth)
	fmt.Printf("option name Delta_Margin type spin default %d min 0 max 2000\n", p.DeltaMargin)
	fmt.Printf("option name Aspiration_Window type spin default %d min 1 max 500\n", p.AspirationWindow)

	fmt.Println("uciok")
}

// handleNewGame resets the engine and transposition table for a new game.
func (u *UCI) handleNewGame() {
	u.engine.Clear()
	u.position = board.NewPosition()
}

// handlePosition parses and sets up a position.
// Formats:
//   - position startpos
//   - position startpos moves e2e4 e7e5
//   - position fen <fen>
//   - position fen <fen> moves e2e4
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		u.protocolError("handlePosition", fmt.Errorf("missing startpos/fen"))
		return
	}

	var moveStart int

	switch args[0] {
	case "startpos":
		u.position = board.NewPosition()
		moveStart = len(args)
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	case "fen":
		fenEnd := len(args)
		for i, arg := range args[1:] {
			if arg == "moves" {
				fenEnd = i + 1
				break
			}
		}

		fenStr := strings.Join(args[1:fenEnd], " ")
		pos, err := board.ParseFEN(fenStr)
		if err != nil {
			u.protocolError("handlePosition", fmt.Errorf("invalid FEN %q: %w", fenStr, err))
			return
		}
		u.position = pos

		moveStart = len(args)
		for i, arg := range args {
			if arg == "moves" {
				moveStart = i + 1
				break
			}
		}
	default:
		u.protocolError("handlePosition", fmt.Errorf("expected startpos or fen, got %q", args[0]))
		return
	}

	for _, moveStr := range args[moveStart:] {
		move, err := board.ParseMove(moveStr, u.position)
		if err != nil {
			// The token doesn't even look like a move (too short, squares
			// out of range): a protocol error, not a desync. It and the
			// moves after it are ignored, and the engine keeps running.
			u.protocolError("handlePosition", fmt.Errorf("unparsable move %q: %w", moveStr, err))
			return
		}

		legal := u.position.GenerateLegalMoves()
		found := false
		for i := 0; i < legal.Len(); i++ {
			if legal.Get(i) == move {
				found = true
				break
			}
		}
		if !found {
			// The token parses as algebraic notation but isn't legal from
			// here: the GUI's position model has drifted from ours. Fatal.
			u.fatalDesync("handlePosition", fmt.Errorf("move %q is not legal in the current position", moveStr))
			return
		}

		u.position.MakeMove(move)
		u.position.UpdateCheckers()
	}
}

// GoOptions holds parsed "go" command options.
type GoOptions struct {
	Depth     int
	Nodes     uint64
	MoveTime  time.Duration
	Infinite  bool
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
}

// handleGo starts a search with the given parameters.
func (u *UCI) handleGo(args []string) {
	opts := u.parseGoOptions(args)

	u.engine.OnInfo = func(info engine.SearchInfo) {
		u.sendInfo(info)
	}
	if u.recorder != nil {
		u.engine.OnSearchComplete = func(fen string, scoreCP int) {
			if err := u.recorder.Record(fen, scoreCP); err != nil {
				u.log.Warn().Err(err).Msg("self-play recorder write failed")
			}
		}
	} else {
		u.engine.OnSearchComplete = nil
	}

	limits := u.calculateLimits(opts)

	u.searching = true
	u.stopRequested.Store(false)
	u.searchDone = make(chan struct{})

	pos := u.position.Copy()
	ply := (pos.FullMoveNumber-1)*2 + int(pos.SideToMove)

	go func() {
		defer close(u.searchDone)

		var bestMove board.Move
		if opts.WTime > 0 || opts.BTime > 0 || opts.Infinite {
			uciLimits := engine.UCILimits{
				Time:      [2]time.Duration{opts.WTime, opts.BTime},
				Inc:       [2]time.Duration{opts.WInc, opts.BInc},
				MovesToGo: opts.MovesToGo,
				MoveTime:  opts.MoveTime,
				Depth:     opts.Depth,
				Nodes:     opts.Nodes,
				Infinite:  opts.Infinite,
			}
			bestMove = u.engine.SearchWithUCILimits(pos, uciLimits, ply)
		} else {
			bestMove = u.engine.SearchWithLimits(pos, limits)
		}

		u.searching = false

		// Validate against a fresh copy of the original position: the
		// search's own copy has been mutated by MakeMove/UnmakeMove pairs
		// throughout the tree and must never be trusted for this check.
		validationPos := u.position.Copy()
		legal := validationPos.GenerateLegalMoves()

		if bestMove != board.NoMove {
			for i := 0; i < legal.Len(); i++ {
				if legal.Get(i) == bestMove {
					fmt.Printf("bestmove %s\n", bestMove.String())
					return
				}
			}
			u.log.Error().Str("move", bestMove.String()).Int("legal_count", legal.Len()).
				Msg("search returned a move not found among legal moves")
		}

		if legal.Len() > 0 {
			fmt.Printf("bestmove %s\n", legal.Get(0).String())
		} else {
			fmt.Println("bestmove 0000")
		}
	}()
}

// parseGoOptions parses "go" command arguments.
func (u *UCI) parseGoOptions(args []string) GoOptions {
	opts := GoOptions{}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			if i+1 < len(args) {
				opts.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(args) {
				n, _ := strconv.ParseUint(args[i+1], 10, 64)
				opts.Nodes = n
				i++
			}
		case "movetime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.MoveTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "infinite":
			opts.Infinite = true
		case "wtime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "btime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "winc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "binc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "movestogo":
			if i+1 < len(args) {
				opts.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		default:
			u.protocolError("parseGoOptions", fmt.Errorf("unknown go token %q", args[i]))
		}
	}

	return opts
}

// calculateLimits converts GoOptions to engine.SearchLimits, used on the
// fixed-depth/fixed-movetime path; wtime/btime go through
// engine.SearchWithUCILimits and its TimeManager instead.
func (u *UCI) calculateLimits(opts GoOptions) engine.SearchLimits {
	limits := engine.SearchLimits{}

	if opts.Infinite {
		limits.Infinite = true
		return limits
	}

	if opts.Depth > 0 {
		limits.Depth = opts.Depth
	}
	if opts.Nodes > 0 {
		limits.Nodes = opts.Nodes
	}
	if opts.MoveTime > 0 {
		limits.MoveTime = opts.MoveTime
	}

	return limits
}

// sendInfo outputs search info in UCI format.
func (u *UCI) sendInfo(info engine.SearchInfo) {
	var parts []string

	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))

	switch {
	case info.Score > engine.MateScore-100:
		mateIn := (engine.MateScore - info.Score + 1) / 2
		parts = append(parts, fmt.Sprintf("score mate %d", mateIn))
	case info.Score < -engine.MateScore+100:
		mateIn := -(engine.MateScore + info.Score + 1) / 2
		parts = append(parts, fmt.Sprintf("score mate %d", mateIn))
	default:
		parts = append(parts, fmt.Sprintf("score cp %d", info.Score))
	}

	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))

	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}
	if info.HashFull > 0 {
		parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	}

	// Validate the PV against the position it was computed from before
	// printing it: a GUI that trusts an illegal PV move can desynchronize
	// its own board display.
	if len(info.PV) > 0 {
		validPV := make([]string, 0, len(info.PV))
		testPos := u.position.Copy()
		for _, move := range info.PV {
			legal := testPos.GenerateLegalMoves()
			isLegal := false
			for i := 0; i < legal.Len(); i++ {
				if legal.Get(i) == move {
					isLegal = true
					break
				}
			}
			if !isLegal {
				break
			}
			validPV = append(validPV, move.String())
			testPos.MakeMove(move)
		}
		if len(validPV) > 0 {
			parts = append(parts, "pv "+strings.Join(validPV, " "))
		}
	}

	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

// handleStop stops the current search and waits for it to report bestmove.
func (u *UCI) handleStop() {
	if u.searching {
		u.stopRequested.Store(true)
		u.engine.Stop()
		<-u.searchDone
	}
}

// handleQuit stops any running search, closes the self-play recorder and
// CPU profiler if active, and exits.
func (u *UCI) handleQuit() {
	u.handleStop()

	if u.profiler != nil {
		u.profiler.Stop()
		u.profiler = nil
	}
	if u.recorder != nil {
		if err := u.recorder.Close(); err != nil {
			u.log.Warn().Err(err).Msg("closing self-play recorder")
		}
	}

	os.Exit(0)
}

// handleSetOption processes "setoption" commands.
func (u *UCI) handleSetOption(args []string) {
	name, value, err := parseSetOption(args)
	if err != nil {
		u.protocolError("handleSetOption", err)
		return
	}

	switch strings.ToLower(name) {
	case "hash":
		mb, err := strconv.Atoi(value)
		if err != nil || mb < 1 {
			u.protocolError("handleSetOption", fmt.Errorf("invalid Hash value %q", value))
			return
		}
		u.engine.SetHashSize(mb)

	case "usennue":
		use := strings.ToLower(value) == "true"
		if use && u.nnuePath != "" && !u.engine.HasNNUE() {
			if err := u.engine.LoadNNUE(u.nnuePath); err != nil {
				u.log.Warn().Err(err).Msg("failed to load NNUE, staying on classical evaluation")
				return
			}
		}
		u.engine.SetUseNNUE(use)

	case "evalfile":
		u.nnuePath = value
		u.tryLoadNNUE()

	case "selfplay":
		u.selfplayPath = value
		if u.recorder != nil {
			if err := u.recorder.Close(); err != nil {
				u.log.Warn().Err(err).Msg("closing previous self-play recorder")
			}
			u.recorder = nil
		}
		if value != "" {
			rec, err := selfplay.NewRecorder(value)
			if err != nil {
				u.log.Warn().Err(err).Str("path", value).Msg("failed to open self-play recorder")
				return
			}
			u.recorder = rec
			u.log.Info().Str("path", value).Msg("self-play recording enabled")
		}

	case "cpuprofile":
		if u.profiler != nil {
			u.profiler.Stop()
			u.profiler = nil
			u.log.Info().Msg("CPU profiling stopped")
		}
		if value != "" && value != "stop" {
			u.profiler = profile.Start(
				profile.CPUProfile,
				profile.ProfilePath(value),
				profile.NoShutdownHook,
				profile.Quiet,
			)
			u.log.Info().Str("dir", value).Msg("CPU profiling started")
		}

	case "use_lmr", "use_nullmove", "use_futility", "use_rfp", "use_deltapruning", "use_aspiration",
		"lmr_fulldepthmoves", "lmr_reductionlimit", "nullmove_reduction", "nullmove_mindepth",
		"futility_margin", "futility_margind2", "futility_margind3",
		"rfp_margin", "rfp_maxdepth", "delta_margin", "aspiration_window":
		u.setSearchParam(strings.ToLower(name), value)

	default:
		u.protocolError("handleSetOption", fmt.Errorf("unknown option %q", name))
	}
}

// parseSetOption splits "name <name...> value <value...>" tokens, allowing
// multi-word names and values as UCI permits.
func parseSetOption(args []string) (name, value string, err error) {
	readingName, readingValue := false, false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName, readingValue = true, false
		case "value":
			readingName, readingValue = false, true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	if name == "" {
		return "", "", fmt.Errorf("setoption missing name")
	}
	return name, value, nil
}

// setSearchParam updates one field of the engine's SearchParams by its
// lowercased UCI option name.
func (u *UCI) setSearchParam(lowerName, value string) {
	p := u.engine.Params()

	asBool := func() bool { return strings.ToLower(value) == "true" }
	asInt := func() (int, bool) {
		n, err := strconv.Atoi(value)
		return n, err == nil
	}

	switch lowerName {
	case "use_lmr":
		p.UseLMR = asBool()
	case "use_nullmove":
		p.UseNullMove = asBool()
	case "use_futility":
		p.UseFutility = asBool()
	case "use_rfp":
		p.UseRFP = asBool()
	case "use_deltapruning":
		p.UseDeltaPruning = asBool()
	case "use_aspiration":
		p.UseAspiration = asBool()
	case "lmr_fulldepthmoves":
		if n, ok := asInt(); ok {
			p.LMRFullDepthMoves = n
		}
	case "lmr_reductionlimit":
		if n, ok := asInt(); ok {
			p.LMRReductionLimit = n
		}
	case "nullmove_reduction":
		if n, ok := asInt(); ok {
			p.NullMoveReduction = n
		}
	case "nullmove_mindepth":
		if n, ok := asInt(); ok {
			p.NullMoveMinDepth = n
		}
	case "futility_margin":
		if n, ok := asInt(); ok {
			p.FutilityMargin = n
		}
	case "futility_margind2":
		if n, ok := asInt(); ok {
			p.FutilityMarginD2 = n
		}
	case "futility_margind3":
		if n, ok := asInt(); ok {
			p.FutilityMarginD3 = n
		}
	case "rfp_margin":
		if n, ok := asInt(); ok {
			p.RFPMargin = n
		}
	case "rfp_maxdepth":
		if n, ok := asInt(); ok {
			p.RFPMaxDepth = n
		}
	case "delta_margin":
		if n, ok := asInt(); ok {
			p.DeltaMargin = n
		}
	case "aspiration_window":
		if n, ok := asInt(); ok {
			p.AspirationWindow = n
		}
	}

	u.engine.SetParams(p)
}

// tryLoadNNUE attempts to load the configured NNUE weights file.
func (u *UCI) tryLoadNNUE() {
	if u.nnuePath == "" {
		return
	}
	if err := u.engine.LoadNNUE(u.nnuePath); err != nil {
		u.log.Warn().Err(err).Str("path", u.nnuePath).Msg("failed to load NNUE weights")
		return
	}
	u.log.Info().Str("path", u.nnuePath).Msg("NNUE weights loaded")
}

// handlePerft runs a perft test from the current position and prints the
// node count, elapsed time, and nodes-per-second.
func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		depth, _ = strconv.Atoi(args[0])
	}

	start := time.Now()
	nodes := u.engine.Perft(u.position, depth)
	elapsed := time.Since(start)

	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		nps := float64(nodes) / elapsed.Seconds()
		fmt.Printf("NPS: %.0f\n", nps)
	}
}
