package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// ErrVersionMismatch indicates a stored checkpoint was written by an
// incompatible format version.
var ErrVersionMismatch = errors.New("checkpoint version mismatch")

// Checkpoint is the persisted snapshot of a conversation after a stage.
type Checkpoint struct {
	Version        int       `json:"version"`
	ConversationID string    `json:"conversation_id"`
	StageID        string    `json:"stage_id"`
	Sequence       int       `json:"sequence"`
	Turn           int       `json:"turn"`
	Timestamp      time.Time `json:"timestamp"`

	State json.RawMessage `json:"state"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON and rejects unknown versions.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Version != Version {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, c.Version, Version)
	}
	return &c, nil
}

// New creates a checkpoint. State must already be JSON-serialized.
// Sequence is the number of stages completed in the turn.
func New(conversationID, stageID string, turn, sequence int, state []byte) *Checkpoint {
	return &Checkpoint{
		Version:        Version,
		ConversationID: conversationID,
		StageID:        stageID,
		Sequence:       sequence,
		Turn:           turn,
		Timestamp:      time.Now().UTC(),
		State:          state,
	}
}
