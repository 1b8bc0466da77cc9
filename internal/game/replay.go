package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const replayFormatVersion = 2

// Replay is the sequence of session snapshots taken after every accepted mutation.
type Replay struct {
	GameID string
	States []*GameSession
	mu     sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(gameID string) *Replay {
	return &Replay{
		GameID: gameID,
		States: make([]*GameSession, 0),
	}
}

// RecordState appends a snapshot.
func (r *Replay) RecordState(snapshot *GameSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, snapshot)
}

// Size returns the number of recorded snapshots.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// StateAt returns the snapshot at index, or nil.
func (r *Replay) StateAt(index int) *GameSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index < 0 || index >= len(r.States) {
		return nil
	}
	return r.States[index]
}

// Verify checks that versions increase monotonically across the recording.
func (r *Replay) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := 1; i < len(r.States); i++ {
		prev, cur := r.States[i-1], r.States[i]
		if cur.Version <= prev.Version {
			return fmt.Errorf("snapshot %d has version %d after %d", i, cur.Version, prev.Version)
		}
	}
	return nil
}

type replayHeader struct {
	GameID     string
	SavedAt    time.Time
	Version    int
	StateCount int
	// FinalChecksum lets a reader detect a truncated or tampered file.
	FinalChecksum string
}

func replayPath(directory, gameID string) string {
	return filepath.Join(directory, gameID+".replay")
}

// SaveToFile writes the replay to <directory>/<game id>.replay as gzip-compressed gob.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(replayPath(directory, r.GameID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	encoder := gob.NewEncoder(zw)

	header := replayHeader{
		GameID:     r.GameID,
		SavedAt:    time.Now(),
		Version:    replayFormatVersion,
		StateCount: len(r.States),
	}
	if n := len(r.States); n > 0 {
		header.FinalChecksum = r.States[n-1].Checksum()
	}
	if err := encoder.Encode(&header); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	for i, state := range r.States {
		if err := encoder.Encode(state); err != nil {
			return fmt.Errorf("failed to encode state %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, gameID string) (*Replay, error) {
	file, err := os.Open(replayPath(directory, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	decoder := gob.NewDecoder(zr)

	var header replayHeader
	if err := decoder.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	if header.Version != replayFormatVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", header.Version)
	}

	replay := NewReplay(header.GameID)
	for i := 0; i < header.StateCount; i++ {
		var state GameSession
		if err := decoder.Decode(&state); err != nil {
			return nil, fmt.Errorf("failed to decode state %d: %w", i, err)
		}
		replay.States = append(replay.States, &state)
	}

	if n := len(replay.States); n > 0 && replay.States[n-1].Checksum() != header.FinalChecksum {
		return nil, fmt.Errorf("replay %s failed checksum verification", gameID)
	}
	return replay, nil
}

// ReplayRecorder keeps in-memory replays for live sessions and writes them
// to disk once a session finishes.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	saveDir string
	// maxStates caps snapshots per session; 0 means unlimited.
	maxStates int
}

// NewReplayRecorder creates a recorder writing to saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string, maxStates int) *ReplayRecorder {
	return &ReplayRecorder{
		logger:    logger,
		replays:   make(map[string]*Replay),
		saveDir:   saveDir,
		maxStates: maxStates,
	}
}

// RecordState stores a copy of the session.
func (rr *ReplayRecorder) RecordState(session *GameSession) {
	rr.mu.Lock()
	replay, ok := rr.replays[session.ID]
	if !ok {
		replay = NewReplay(session.ID)
		rr.replays[session.ID] = replay
	}
	rr.mu.Unlock()

	if rr.maxStates > 0 && replay.Size() >= rr.maxStates {
		if rr.logger != nil {
			rr.logger.Debug("replay snapshot limit reached",
				zap.String("game_id", session.ID),
				zap.Int("max_states", rr.maxStates),
			)
		}
		return
	}
	replay.RecordState(session.Clone())
}

// GetReplay returns the live replay for a session.
func (rr *ReplayRecorder) GetReplay(gameID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, ok := rr.replays[gameID]
	return replay, ok
}

// SaveReplay writes a replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(gameID string) error {
	rr.mu.Lock()
	replay, ok := rr.replays[gameID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for game %s", gameID)
	}
	delete(rr.replays, gameID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}

	if rr.logger != nil {
		rr.logger.Info("saved replay to disk",
			zap.String("game_id", gameID),
			zap.Int("state_count", replay.Size()),
			zap.String("directory", rr.saveDir),
		)
	}
	return nil
}

// LoadReplay reads a saved replay from disk.
func (rr *ReplayRecorder) LoadReplay(gameID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, gameID)
}

// ClearReplay drops a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.replays, gameID)
}

// Replay returns the recorded steps of a session as seen by playerID, live
// or loaded from disk once the session has finished. Only participants may
// read a replay.
func (e *Engine) Replay(sessionID, playerID string) ([]ReplayFrame, error) {
	if e.recorder == nil {
		return nil, ErrReplayUnavailable
	}

	inRegistry := false
	if entry, err := e.registry.Get(sessionID); err == nil {
		inRegistry = true
		allowed := false
		entry.Read(func(s *GameSession) {
			allowed = s.IsParticipant(playerID)
		})
		if !allowed {
			return nil, ErrNotParticipant
		}
	}

	replay, ok := e.recorder.GetReplay(sessionID)
	if !ok {
		var err error
		replay, err = e.recorder.LoadReplay(sessionID)
		switch {
		case errors.Is(err, fs.ErrNotExist) && inRegistry:
			return nil, ErrReplayUnavailable
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		case err != nil:
			return nil, err
		}
	}
	if err := replay.Verify(); err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	n := replay.Size()
	if n == 0 {
		return nil, ErrReplayUnavailable
	}
	if !inRegistry && !replay.StateAt(n-1).IsParticipant(playerID) {
		return nil, ErrNotParticipant
	}

	frames := make([]ReplayFrame, 0, n)
	for i := 0; i < n; i++ {
		state := replay.StateAt(i)
		frames = append(frames, ReplayFrame{
			Version: state.Version,
			Game:    state.View(),
			State:   state.StateFor(playerID),
		})
	}
	return frames, nil
}
