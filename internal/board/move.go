package board

import "fmt"

// Move is an opaque 32-bit value encoding a chess move:
// bits 0-5:   from square (0-63)
// bits 6-11:  to square (0-63)
// bits 12-14: promotion piece, 0=none, 1=Knight, 2=Bishop, 3=Rook, 4=Queen
// bit 15:     capture flag
// bit 16:     double pawn push flag
// bit 17:     en passant flag
// bit 18:     castling flag
//
// Move is modeled as a plain integer with accessor functions rather than a
// tagged struct, so that from/to/flag extraction on the hot path stays
// branchless.
type Move uint32

const (
	moveFromShift  = 0
	moveToShift    = 6
	movePromoShift = 12
	moveCaptureBit = 1 << 15
	moveDoubleBit  = 1 << 16
	moveEPBit      = 1 << 17
	moveCastleBit  = 1 << 18

	moveFromMask  = 0x3F
	moveToMask    = 0x3F
	movePromoMask = 0x7
)

// Promotion codes packed into bits 12-14.
const (
	promoNone Move = iota
	promoKnight
	promoBishop
	promoRook
	promoQueen
)

// NoMove represents an invalid or null move.
const NoMove Move = 0

// MoveFlags bundles the boolean tags used when constructing a move.
type MoveFlags struct {
	Capture    bool
	DoublePush bool
	EnPassant  bool
	Castling   bool
	PromoteTo  PieceType // NoPieceType if not a promotion
}

func promoCode(pt PieceType) Move {
	switch pt {
	case Knight:
		return promoKnight
	case Bishop:
		return promoBishop
	case Rook:
		return promoRook
	case Queen:
		return promoQueen
	default:
		return promoNone
	}
}

func promoPieceType(code Move) PieceType {
	switch code {
	case promoKnight:
		return Knight
	case promoBishop:
		return Bishop
	case promoRook:
		return Rook
	case promoQueen:
		return Queen
	default:
		return NoPieceType
	}
}

// NewMove builds a move from its components.
func NewMove(from, to Square, f MoveFlags) Move {
	m := Move(from)<<moveFromShift | Move(to)<<moveToShift
	m |= promoCode(f.PromoteTo) << movePromoShift
	if f.Capture {
		m |= moveCaptureBit
	}
	if f.DoublePush {
		m |= moveDoubleBit
	}
	if f.EnPassant {
		m |= moveEPBit
	}
	if f.Castling {
		m |= moveCastleBit
	}
	return m
}

// NewQuietMove creates a plain, non-capturing, non-special move.
func NewQuietMove(from, to Square) Move {
	return NewMove(from, to, MoveFlags{})
}

// NewCaptureMove creates a capturing move with no other special flags.
func NewCaptureMove(from, to Square) Move {
	return NewMove(from, to, MoveFlags{Capture: true})
}

// NewDoublePush creates a two-square pawn push.
func NewDoublePush(from, to Square) Move {
	return NewMove(from, to, MoveFlags{DoublePush: true})
}

// NewPromotion creates a (possibly capturing) promotion move.
func NewPromotion(from, to Square, promo PieceType, capture bool) Move {
	return NewMove(from, to, MoveFlags{Capture: capture, PromoteTo: promo})
}

// NewEnPassant creates an en passant capture.
func NewEnPassant(from, to Square) Move {
	return NewMove(from, to, MoveFlags{Capture: true, EnPassant: true})
}

// NewCastling creates a castling move, encoded as the king's two-square move.
func NewCastling(from, to Square) Move {
	return NewMove(from, to, MoveFlags{Castling: true})
}

// From returns the origin square.
func (m Move) From() Square {
	return Square(m & moveFromMask)
}

// To returns the destination square.
func (m Move) To() Square {
	return Square((m >> moveToShift) & moveToMask)
}

// Promotion returns the promotion piece type, or NoPieceType if this move
// does not promote.
func (m Move) Promotion() PieceType {
	return promoPieceType((m >> movePromoShift) & movePromoMask)
}

// IsPromotion returns true if this move promotes a pawn.
func (m Move) IsPromotion() bool {
	return (m>>movePromoShift)&movePromoMask != promoNone
}

// IsCastling returns true if this is a castling move.
func (m Move) IsCastling() bool {
	return m&moveCastleBit != 0
}

// IsEnPassant returns true if this is an en passant capture.
func (m Move) IsEnPassant() bool {
	return m&moveEPBit != 0
}

// IsDoublePush returns true if this is a two-square pawn push.
func (m Move) IsDoublePush() bool {
	return m&moveDoubleBit != 0
}

// IsCapture returns true if this move captures a piece, including en passant.
func (m Move) IsCapture() bool {
	return m&moveCaptureBit != 0
}

// IsQuiet returns true if this is neither a capture nor a promotion.
func (m Move) IsQuiet() bool {
	return !m.IsCapture() && !m.IsPromotion()
}

// String returns the UCI text of the move (e.g. "e2e4", "e7e8q").
func (m Move) String() string {
	if m == NoMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.IsPromotion() {
		s += string(promoChar(m.Promotion()))
	}
	return s
}

func promoChar(pt PieceType) byte {
	switch pt {
	case Knight:
		return 'n'
	case Bishop:
		return 'b'
	case Rook:
		return 'r'
	case Queen:
		return 'q'
	default:
		return 0
	}
}

// ParseMove parses UCI move text against a position, recovering the special
// flags (castling, en passant, double push) that the text alone doesn't carry.
func ParseMove(s string, pos *Position) (Move, error) {
	if len(s) < 4 {
		return NoMove, fmt.Errorf("invalid move string: %s", s)
	}

	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NoMove, err
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NoMove, err
	}

	piece := pos.PieceAt(from)
	if piece == NoPiece {
		return NoMove, fmt.Errorf("no piece at %s", from)
	}
	pt := piece.Type()
	capture := !pos.IsEmpty(to)

	if len(s) == 5 {
		var promo PieceType
		switch s[4] {
		case 'n':
			promo = Knight
		case 'b':
			promo = Bishop
		case 'r':
			promo = Rook
		case 'q':
			promo = Queen
		default:
			return NoMove, fmt.Errorf("invalid promotion piece: %c", s[4])
		}
		return NewPromotion(from, to, promo, capture), nil
	}

	if pt == King && abs(int(to)-int(from)) == 2 {
		return NewCastling(from, to), nil
	}
	if pt == Pawn && to == pos.EnPassant && to != NoSquare {
		return NewEnPassant(from, to), nil
	}
	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		return NewDoublePush(from, to), nil
	}
	if capture {
		return NewCaptureMove(from, to), nil
	}
	return NewQuietMove(from, to), nil
}

// MoveList is a fixed-capacity buffer of moves, which avoids per-node
// allocation; 256 is above 218, the most legal moves any known chess
// position has.
type MoveList struct {
	moves [256]Move
	count int
}

// NewMoveList creates an empty move list.
func NewMoveList() *MoveList {
	return &MoveList{}
}

// Add appends a move to the list.
func (ml *MoveList) Add(m Move) {
	ml.moves[ml.count] = m
	ml.count++
}

// Len returns the number of moves in the list.
func (ml *MoveList) Len() int {
	return ml.count
}

// Get returns the move at index i.
func (ml *MoveList) Get(i int) Move {
	return ml.moves[i]
}

// Set overwrites the move at index i.
func (ml *MoveList) Set(i int, m Move) {
	ml.moves[i] = m
}

// Swap exchanges two moves in the list.
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}

// Clear empties the list without reallocating.
func (ml *MoveList) Clear() {
	ml.count = 0
}

// Contains reports whether the list holds m.
func (ml *MoveList) Contains(m Move) bool {
	for i := 0; i < ml.count; i++ {
		if ml.moves[i] == m {
			return true
		}
	}
	return false
}

// Slice returns the list's live moves as a slice (no copy).
func (ml *MoveList) Slice() []Move {
	return ml.moves[:ml.count]
}

// UndoInfo is the minimal record needed to reverse a move: everything
// make/unmake cannot recompute from the move itself.
type UndoInfo struct {
	CapturedPiece  Piece
	CapturedSquare Square
	CastlingRights CastlingRights
	EnPassant      Square
	HalfMoveClock  int
	Hash           uint64
	PawnKey        uint64
	Checkers       Bitboard
	Valid          bool

	// HistoryReset holds the repetition ring as it stood immediately before
	// this move, but only when the move was irreversible (pawn move or
	// capture) and MakeMove therefore started a fresh ring. UnmakeMove
	// restores it verbatim instead of trying to reconstruct it. Nil for
	// reversible moves, where MakeMove only appended one entry.
	HistoryReset []uint64
}
