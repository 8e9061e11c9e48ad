// Package jsonpatch applies and derives RFC 6902 patches over JSON
// documents held as maps.
package jsonpatch

import (
	"encoding/json"
	"fmt"

	patchlib "github.com/evanphx/json-patch/v5"
	"github.com/wI2L/jsondiff"

	"github.com/optiflow-io/optiflow/internal/shared"
)

// Engine is a stateless patch engine.
type Engine struct{}

// Apply runs the raw RFC 6902 patch against doc and returns the patched
// document. A malformed or inapplicable patch maps to ErrInvalidPatch.
func (Engine) Apply(doc map[string]any, patch json.RawMessage) (map[string]any, error) {
	decoded, err := patchlib.DecodePatch(patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidPatch, err)
	}
	before, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	after, err := decoded.Apply(before)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidPatch, err)
	}
	var out map[string]any
	if err := json.Unmarshal(after, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidPatch, err)
	}
	return out, nil
}

// Diff returns the RFC 6902 patch that transforms before into after.
func (Engine) Diff(before, after map[string]any) (json.RawMessage, error) {
	patch, err := jsondiff.Compare(before, after)
	if err != nil {
		return nil, err
	}
	if patch == nil {
		return json.RawMessage(`[]`), nil
	}
	return json.Marshal(patch)
}
