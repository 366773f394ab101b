package model

import (
	"encoding/json"
	"fmt"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// ObjectLabel names one of the compact objects of a multi-object domain.
type ObjectLabel int

const (
	ObjectNone ObjectLabel = iota
	ObjectA
	ObjectB
)

// String returns the label used when composing map names. ObjectNone is empty.
func (o ObjectLabel) String() string {
	switch o {
	case ObjectA:
		return "A"
	case ObjectB:
		return "B"
	default:
		return ""
	}
}

func ParseObjectLabel(s string) (ObjectLabel, error) {
	switch s {
	case "A":
		return ObjectA, nil
	case "B":
		return ObjectB, nil
	case "", "None":
		return ObjectNone, nil
	default:
		return ObjectNone, fmt.Errorf("unknown object label: %q", s)
	}
}

// FunctionRecord is a single serialized function of time.
type FunctionRecord struct {
	Name    string          `json:"name"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Checkpoint holds every function of time installed for one run.
type Checkpoint struct {
	VersionedRecord
	RunID     string           `json:"run_id"`
	Time      float64          `json:"time"`
	Functions []FunctionRecord `json:"functions"`
}
