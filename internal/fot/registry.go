package fot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"shapemap/internal/model"
)

var (
	ErrInvalidFunction = errors.New("invalid function of time")
	ErrInvalidUpdate   = errors.New("invalid function of time update")
	ErrKindExists      = errors.New("function of time kind already registered")
	ErrKindNotFound    = errors.New("function of time kind not found")
)

// DecodeFunc rebuilds a function of time from its serialized payload.
type DecodeFunc func(payload []byte) (FunctionOfTime, error)

var kindRegistry = struct {
	mu sync.RWMutex
	m  map[string]DecodeFunc
}{
	m: make(map[string]DecodeFunc),
}

func init() {
	initializeBuiltInKinds()
}

func initializeBuiltInKinds() {
	MustRegisterKind(KindPiecewisePolynomial, decodePiecewisePolynomial)
	MustRegisterKind(KindSettleToConstant, decodeSettleToConstant)
}

func RegisterKind(name string, decode DecodeFunc) error {
	if name == "" {
		return errors.New("function of time kind name is required")
	}
	if decode == nil {
		return errors.New("function of time decoder is required")
	}

	kindRegistry.mu.Lock()
	defer kindRegistry.mu.Unlock()

	if _, exists := kindRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrKindExists, name)
	}
	kindRegistry.m[name] = decode
	return nil
}

func MustRegisterKind(name string, decode DecodeFunc) {
	if err := RegisterKind(name, decode); err != nil {
		panic(err)
	}
}

func ListKinds() []string {
	kindRegistry.mu.RLock()
	defer kindRegistry.mu.RUnlock()

	names := make([]string, 0, len(kindRegistry.m))
	for name := range kindRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Encode serializes f under name. Every float is written in shortest
// round-trip form so Decode restores it bit for bit.
func Encode(name string, f FunctionOfTime) (model.FunctionRecord, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return model.FunctionRecord{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return model.FunctionRecord{Name: name, Kind: f.Kind(), Payload: payload}, nil
}

func Decode(record model.FunctionRecord) (FunctionOfTime, error) {
	kindRegistry.mu.RLock()
	decode, ok := kindRegistry.m[record.Kind]
	kindRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKindNotFound, record.Kind)
	}
	f, err := decode(record.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", record.Name, err)
	}
	return f, nil
}

// boundFloat is a float64 whose JSON form also admits infinite values.
type boundFloat float64

func (b boundFloat) MarshalJSON() ([]byte, error) {
	v := float64(b)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

func (b *boundFloat) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*b = boundFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = boundFloat(v)
	return nil
}

func resetKindRegistryForTests() {
	kindRegistry.mu.Lock()
	kindRegistry.m = make(map[string]DecodeFunc)
	kindRegistry.mu.Unlock()
	initializeBuiltInKinds()
}
