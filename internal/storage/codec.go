package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"shapemap/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// NewCheckpoint stamps a checkpoint with the current record versions.
func NewCheckpoint(runID string, t float64, functions []model.FunctionRecord) model.Checkpoint {
	return model.Checkpoint{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		RunID:           runID,
		Time:            t,
		Functions:       functions,
	}
}

func EncodeCheckpoint(c model.Checkpoint) ([]byte, error) {
	if c.RunID == "" {
		return nil, errors.New("checkpoint run id is required")
	}
	if err := checkVersion(c.VersionedRecord); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

func DecodeCheckpoint(data []byte) (model.Checkpoint, error) {
	var checkpoint model.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return model.Checkpoint{}, err
	}
	if err := checkVersion(checkpoint.VersionedRecord); err != nil {
		return model.Checkpoint{}, err
	}
	return checkpoint, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return fmt.Errorf("%w: schema %d codec %d", ErrVersionMismatch, v.SchemaVersion, v.CodecVersion)
	}
	return nil
}
