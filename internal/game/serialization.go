package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"
)

// Checksum computes a deterministic sha256 of the session's game state.
// Timestamps, history and version are excluded so two sessions that reached
// the same position through different paths hash equal.
func (s *GameSession) Checksum() string {
	sum := sha256.Sum256([]byte(s.canonical()))
	return hex.EncodeToString(sum[:])
}

// canonical renders the game state as stable text: slots in seat order,
// zones in code order and cards in zone order.
func (s *GameSession) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%s|%d|%d|%s|%s|%s\n",
		s.ID,
		s.Status,
		s.CurrentTurn,
		int(s.Phase),
		s.ActivePlayer,
		s.WinnerID,
		s.FinishReason,
	)

	for i, slot := range s.Slots {
		if slot == nil {
			fmt.Fprintf(&buf, "SLOT:%d|empty\n", i)
			continue
		}
		fmt.Fprintf(&buf, "SLOT:%d|%s|%s|%t\n", i, slot.Reserved, slot.PlayerID, slot.Joined)
		p := slot.State
		if p == nil {
			continue
		}
		fmt.Fprintf(&buf, "PLAYER:%d|%d|%t|%t|%t|%t|%d\n",
			p.AP,
			p.MaxAP,
			p.MulliganResolved,
			p.Mulliganed,
			p.DrewThisTurn,
			p.ExtraDrawUsed,
			p.TurnsTaken,
		)
		writeCards(&buf, "HAND", p.Hand)
		writeCards(&buf, "DECK", p.Deck)
		for _, z := range Zones {
			writeCards(&buf, strings.ToUpper(z.String()), *p.Board.Zone(z))
		}
	}

	return buf.String()
}

func writeCards(buf *bytes.Buffer, label string, cards []Card) {
	ids := make([]string, len(cards))
	for i, card := range cards {
		if card.Rested {
			ids[i] = card.ID + "*"
		} else {
			ids[i] = card.ID
		}
	}
	fmt.Fprintf(buf, "  %s:%s\n", label, strings.Join(ids, ","))
}

// VerifyChecksum reports whether the session hashes to expected.
func (s *GameSession) VerifyChecksum(expected string) bool {
	return s.Checksum() == expected
}

// SerializeToBytes encodes the session with gob, the format used by replay files.
func (s *GameSession) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a gob-encoded session.
func DeserializeFromBytes(data []byte) (*GameSession, error) {
	var session GameSession
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// ValidateSerializationRoundtrip checks that encoding and decoding preserves the checksum.
func ValidateSerializationRoundtrip(s *GameSession) error {
	original := s.Checksum()

	data, err := s.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}
	decoded, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}

	if roundTripped := decoded.Checksum(); roundTripped != original {
		return fmt.Errorf("checksum mismatch: original=%s, deserialized=%s", original, roundTripped)
	}
	return nil
}
