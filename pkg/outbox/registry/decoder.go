package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// ErrNoDecoder means no decoder exists for the event type and version.
var ErrNoDecoder = errors.New("no decoder registered")

// Decoder turns an envelope payload into a typed event.
type Decoder func(payload json.RawMessage) (any, error)

// Typed decodes into a fresh *T.
func Typed[T any]() Decoder {
	return func(payload json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(payload, out); err != nil {
			return nil, fmt.Errorf("decode %T: %w", out, err)
		}
		return out, nil
	}
}

type decoderKey struct {
	event   enums.OutboxEventType
	version int
}

// DecoderRegistry maps (event type, payload version) to a decoder.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[decoderKey]Decoder
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]Decoder)}
}

// Register panics on a duplicate registration; wiring happens at startup.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := decoderKey{event: eventType, version: version}
	if _, dup := r.decoders[key]; dup {
		panic(fmt.Sprintf("decoder already registered for %s@v%d", eventType, version))
	}
	r.decoders[key] = decoder
}

// Has reports whether Decode can handle the pair.
func (r *DecoderRegistry) Has(eventType enums.OutboxEventType, version int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[decoderKey{event: eventType, version: version}]
	return ok
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decoder, ok := r.decoders[decoderKey{event: eventType, version: version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s@v%d: %w", eventType, version, ErrNoDecoder)
	}
	return decoder(payload)
}
