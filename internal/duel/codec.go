package duel

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"
)

const snapshotWireVersion = 1

// snapshotEnvelope is the on-wire form of a snapshot: the payload plus a
// checksum that guards against corrupt or tampered state reaching a
// reconnecting seat.
type snapshotEnvelope struct {
	Version  int
	Checksum string
	Snapshot GameStateSnapshot
}

// EncodeSnapshot serializes a snapshot to transport-neutral bytes. The
// encoding round-trips exactly: DecodeSnapshot(EncodeSnapshot(s)) == s.
func EncodeSnapshot(s GameStateSnapshot) ([]byte, error) {
	envelope := snapshotEnvelope{
		Version:  snapshotWireVersion,
		Checksum: snapshotChecksum(&s),
		Snapshot: s,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot deserializes snapshot bytes. Malformed input, a version
// mismatch or a checksum failure all surface as ErrSnapshotCorrupt; the
// decoder never substitutes defaults for unreadable state.
func DecodeSnapshot(data []byte) (GameStateSnapshot, error) {
	var envelope snapshotEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&envelope); err != nil {
		return GameStateSnapshot{}, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if envelope.Version != snapshotWireVersion {
		return GameStateSnapshot{}, fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, envelope.Version)
	}
	if computed := snapshotChecksum(&envelope.Snapshot); computed != envelope.Checksum {
		return GameStateSnapshot{}, fmt.Errorf("%w: checksum mismatch", ErrSnapshotCorrupt)
	}
	return envelope.Snapshot, nil
}

// snapshotChecksum computes a deterministic SHA-256 over a canonical
// representation of the snapshot. The capture timestamp is excluded:
// only game state matters, not when it was captured.
func snapshotChecksum(s *GameStateSnapshot) string {
	hash := sha256.New()
	hash.Write([]byte(canonicalRepresentation(s)))
	return hex.EncodeToString(hash.Sum(nil))
}

// canonicalRepresentation builds a stable textual form of the snapshot,
// independent of how it was produced.
func canonicalRepresentation(s *GameStateSnapshot) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "TURN:%d|%s|%d|%s|%d\n",
		s.TurnNumber,
		s.CurrentSeat,
		s.ShuffleSeed,
		s.Perspective,
		s.SlotsPerSide,
	)

	writePlayer := func(label string, p *PlayerSnapshot) {
		fmt.Fprintf(&buf, "%s:%d|%d|%d|%d\n", label, p.Health, p.MaxHealth, p.Mana, p.MaxMana)
		fmt.Fprintf(&buf, "  HAND:%s\n", strings.Join(p.HandCardIDs, ","))
		fmt.Fprintf(&buf, "  DECK:%s\n", strings.Join(p.DeckCardIDs, ","))
		fmt.Fprintf(&buf, "  GRAVEYARD:%s\n", strings.Join(p.GraveyardCardIDs, ","))
		for _, bc := range p.BoardCards {
			fmt.Fprintf(&buf, "  BOARD:%d|%s|%s|%d|%t|%t\n",
				bc.SlotIndex, bc.SlotName, bc.CardID, bc.CurrentHealth, bc.HasActed, bc.SummoningSick)
		}
	}

	writePlayer("HOST", &s.Host)
	writePlayer("GUEST", &s.Guest)

	return buf.String()
}
