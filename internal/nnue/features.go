package nnue

import "github.com/sebhofmann/sleepmind2/internal/board"

// kingBucket maps a post-transform king square to one of InputBuckets input
// buckets. Post-transform squares always fall on files a-d, so only the
// left half of the table is ever consulted; the right half is filled in to
// keep the table a full 64 entries.
var kingBucket [64]int

func init() {
	for sq := 0; sq < 64; sq++ {
		kingBucket[sq] = (sq / 8) / 2
	}
}

// perspectiveTransform applies the perspective-dependent square transform:
// a vertical flip for Black's perspective, then a horizontal mirror if the
// (possibly already flipped) king sits on files e-h. The king square and
// the piece square go through the identical transform so the resulting
// bucket and feature index stay consistent with each other.
func perspectiveTransform(perspective board.Color, kingSquare, sq board.Square) (board.Square, int) {
	k := kingSquare
	s := sq

	if perspective == board.Black {
		k ^= 56
		s ^= 56
	}
	if k.File() >= 4 {
		k ^= 7
		s ^= 7
	}

	return s, kingBucket[k]
}

// FeatureIndex computes the feature-transformer input index for a piece of
// type pt and color pieceColor sitting on pieceSquare, as seen from
// perspective's point of view with its king on kingSquare.
func FeatureIndex(perspective board.Color, kingSquare board.Square, pieceColor board.Color, pt board.PieceType, pieceSquare board.Square) int {
	transformedSq, bucket := perspectiveTransform(perspective, kingSquare, pieceSquare)
	mappedColor := int(pieceColor) ^ int(perspective)
	return bucket*FeatureCount + mappedColor*(squaresPerSide*piecesPerColor) + int(pt)*squaresPerSide + int(transformedSq)
}

// ActiveFeatures returns the active feature indices for one perspective,
// covering every non-king piece on the board.
func ActiveFeatures(pos *board.Position, perspective board.Color) []int {
	kingSquare := pos.KingSquare[perspective]

	features := make([]int, 0, 32)
	for c := board.White; c <= board.Black; c++ {
		for pt := board.Pawn; pt < board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				features = append(features, FeatureIndex(perspective, kingSquare, c, pt, sq))
			}
		}
	}
	return features
}

// ChangedFeatures returns the feature indices to remove and add for one
// perspective when a move is made, given that perspective's own king square
// before the move. ok is false when the move requires a full refresh instead:
// the perspective's own king moved (castling included), which can change its
// bucket or mirror side.
func ChangedFeatures(perspective board.Color, kingSquare board.Square, m board.Move, movedPT board.PieceType, movedColor board.Color, captured board.Piece) (add, rem []int, ok bool) {
	if movedPT == board.King && movedColor == perspective {
		return nil, nil, false
	}

	from := m.From()
	to := m.To()

	rem = append(rem, FeatureIndex(perspective, kingSquare, movedColor, movedPT, from))

	addPT := movedPT
	if m.IsPromotion() {
		addPT = m.Promotion()
	}
	add = append(add, FeatureIndex(perspective, kingSquare, movedColor, addPT, to))

	if captured != board.NoPiece && captured.Type() != board.King {
		capturedSq := to
		if m.IsEnPassant() {
			if movedColor == board.White {
				capturedSq = to - 8
			} else {
				capturedSq = to + 8
			}
		}
		rem = append(rem, FeatureIndex(perspective, kingSquare, captured.Color(), captured.Type(), capturedSq))
	}

	return add, rem, true
}
