package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/five82/lotwatch/internal/syncstore"
)

// ErrUnknownPatchKind is returned for payloads whose kind is neither delta nor create.
var ErrUnknownPatchKind = errors.New("unknown patch kind")

// PatchPayload is the wire form of an optimistic patch.
type PatchPayload struct {
	Kind           syncstore.PatchKind `json:"kind"`
	IdempotencyKey string              `json:"idempotencyKey"`
	EntityID       string              `json:"entityId"`
	FieldDeltas    map[string]int64    `json:"fieldDeltas,omitempty"`
	Fields         map[string]string   `json:"fields,omitempty"`
}

// RevalidatePayload is the wire form of a revalidation request. An empty
// message body means an ambient (non-forced) request.
type RevalidatePayload struct {
	Force bool `json:"force"`
}

// EncodePatch marshals p into its JSON wire form.
func EncodePatch(p syncstore.Patch) ([]byte, error) {
	var payload PatchPayload
	switch p := p.(type) {
	case syncstore.DeltaPatch:
		payload = PatchPayload{Kind: syncstore.PatchDelta, IdempotencyKey: p.Key, EntityID: p.EntityID, FieldDeltas: p.Deltas}
	case syncstore.CreatePatch:
		payload = PatchPayload{Kind: syncstore.PatchCreate, IdempotencyKey: p.Key, EntityID: p.EntityID, Fields: p.Fields}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownPatchKind, p)
	}
	return json.Marshal(payload)
}

// DecodePatch parses a JSON patch payload.
func DecodePatch(data []byte) (syncstore.Patch, error) {
	var payload PatchPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	if strings.TrimSpace(payload.EntityID) == "" {
		return nil, fmt.Errorf("decode patch: entityId is required")
	}
	switch syncstore.PatchKind(strings.ToLower(string(payload.Kind))) {
	case syncstore.PatchDelta:
		if len(payload.FieldDeltas) == 0 {
			return nil, fmt.Errorf("decode patch: delta %s has no fieldDeltas", payload.IdempotencyKey)
		}
		return syncstore.DeltaPatch{Key: payload.IdempotencyKey, EntityID: payload.EntityID, Deltas: payload.FieldDeltas}, nil
	case syncstore.PatchCreate:
		return syncstore.CreatePatch{Key: payload.IdempotencyKey, EntityID: payload.EntityID, Fields: payload.Fields}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownPatchKind, payload.Kind)
	}
}

// DecodeRevalidate parses a revalidation request.
func DecodeRevalidate(data []byte) (RevalidatePayload, error) {
	var payload RevalidatePayload
	if len(strings.TrimSpace(string(data))) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return RevalidatePayload{}, fmt.Errorf("decode revalidate: %w", err)
	}
	return payload, nil
}
