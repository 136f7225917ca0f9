package contract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/papercast-ai/papercast/internal/types"
)

// Codec decodes reasoner output into typed contracts. A codec is immutable
// after construction and safe for concurrent use.
type Codec struct {
	schemas map[ResponseType]*jsonschema.Schema
}

// NewCodec compiles the contract schemas.
func NewCodec() (*Codec, error) {
	schemas := make(map[ResponseType]*jsonschema.Schema, 3)
	for _, rt := range []ResponseType{ResponseOutline, ResponseSegment, ResponseFactCheck} {
		compiler := jsonschema.NewCompiler()
		name := string(rt) + ".json"
		if err := compiler.AddResource(name, bytes.NewReader([]byte(SchemaFor(rt)))); err != nil {
			return nil, fmt.Errorf("failed to load %s schema: %w", rt, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", rt, err)
		}
		schemas[rt] = schema
	}
	schemas[ResponseRewrite] = schemas[ResponseSegment]
	return &Codec{schemas: schemas}, nil
}

// extract parses raw model output into normalized JSON, applying the
// deterministic repair pipeline when a direct parse fails.
func (c *Codec) extract(rt ResponseType, raw string) (json.RawMessage, error) {
	candidates := []string{strings.TrimSpace(raw)}
	if repaired := Repair(raw); repaired != candidates[0] {
		candidates = append(candidates, repaired)
	}

	schema := c.schemas[rt]
	var lastErr error
	for _, candidate := range candidates {
		if candidate == "" {
			lastErr = fmt.Errorf("empty response")
			continue
		}
		var doc any
		if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
			lastErr = err
			continue
		}
		if err := schema.Validate(doc); err != nil {
			lastErr = err
			continue
		}
		normalized, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize contract JSON: %w", err)
		}
		return normalized, nil
	}
	return nil, fmt.Errorf("%w: %s response invalid: %v", types.ErrMalformedContract, rt, lastErr)
}

// DecodeOutline parses and validates an outline response.
func (c *Codec) DecodeOutline(raw string) (*Outline, error) {
	normalized, err := c.extract(ResponseOutline, raw)
	if err != nil {
		return nil, err
	}
	var out Outline
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, fmt.Errorf("%w: outline decode: %v", types.ErrMalformedContract, err)
	}
	if n := len(out.Segments); n < types.MinOutlineSegments || n > types.MaxOutlineSegments {
		return nil, fmt.Errorf("%w: outline has %d segments, want %d-%d",
			types.ErrMalformedContract, n, types.MinOutlineSegments, types.MaxOutlineSegments)
	}
	for i, seg := range out.Segments {
		if seg.DurationTargetS <= 0 {
			return nil, fmt.Errorf("%w: segment %d duration_target_s must be positive", types.ErrMalformedContract, i)
		}
		if len(seg.KeyPoints) == 0 || len(seg.KeyPoints) > 8 {
			return nil, fmt.Errorf("%w: segment %d has %d key points, want 1-8", types.ErrMalformedContract, i, len(seg.KeyPoints))
		}
		for _, kp := range seg.KeyPoints {
			if strings.TrimSpace(kp) == "" {
				return nil, fmt.Errorf("%w: segment %d has an empty key point", types.ErrMalformedContract, i)
			}
		}
	}
	return &out, nil
}

// DecodeSegment parses and validates a segment (or rewrite) response.
// Speakers must come from the declared host set.
func (c *Codec) DecodeSegment(rt ResponseType, raw string, hosts []types.Speaker) (*Segment, error) {
	if rt != ResponseSegment && rt != ResponseRewrite {
		return nil, fmt.Errorf("decode segment called with response type %s", rt)
	}
	normalized, err := c.extract(rt, raw)
	if err != nil {
		return nil, err
	}
	var seg Segment
	if err := json.Unmarshal(normalized, &seg); err != nil {
		return nil, fmt.Errorf("%w: %s decode: %v", types.ErrMalformedContract, rt, err)
	}
	if len(seg.Script) == 0 {
		return nil, fmt.Errorf("%w: %s script is empty", types.ErrMalformedContract, rt)
	}
	allowed := make(map[types.Speaker]bool, len(hosts))
	for _, h := range hosts {
		allowed[h] = true
	}
	for i, turn := range seg.Script {
		if !allowed[types.Speaker(turn.Speaker)] {
			return nil, fmt.Errorf("%w: script line %d has undeclared speaker %q", types.ErrMalformedContract, i, turn.Speaker)
		}
		if strings.TrimSpace(turn.Text) == "" {
			return nil, fmt.Errorf("%w: script line %d is empty", types.ErrMalformedContract, i)
		}
	}
	return &seg, nil
}

// DecodeFactCheck parses and validates a factcheck response.
func (c *Codec) DecodeFactCheck(raw string) (*FactCheck, error) {
	normalized, err := c.extract(ResponseFactCheck, raw)
	if err != nil {
		return nil, err
	}
	var fc FactCheck
	if err := json.Unmarshal(normalized, &fc); err != nil {
		return nil, fmt.Errorf("%w: factcheck decode: %v", types.ErrMalformedContract, err)
	}
	if fc.Accuracy < 0 || fc.Accuracy > 1 {
		return nil, fmt.Errorf("%w: factcheck accuracy %v out of [0,1]", types.ErrMalformedContract, fc.Accuracy)
	}
	return &fc, nil
}
