package contract

// JSON Schema documents for each response type. These are sent to backends
// that support structured output and used locally to validate every response
// before it is unmarshalled into a typed contract.

const outlineSchema = `{
  "type": "object",
  "required": ["title", "segments"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "segments": {
      "type": "array",
      "minItems": 3,
      "maxItems": 12,
      "items": {
        "type": "object",
        "required": ["type", "title", "duration_target_s", "key_points"],
        "properties": {
          "type": {"type": "string"},
          "title": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "duration_target_s": {"type": "number", "exclusiveMinimum": 0},
          "key_points": {
            "type": "array",
            "minItems": 1,
            "maxItems": 8,
            "items": {"type": "string", "minLength": 1}
          },
          "conversation_starters": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const segmentSchema = `{
  "type": "object",
  "required": ["script"],
  "properties": {
    "script": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["speaker", "text"],
        "properties": {
          "speaker": {"type": "string"},
          "text": {"type": "string", "minLength": 1},
          "emotion": {"type": "string"}
        }
      }
    }
  }
}`

const factcheckSchema = `{
  "type": "object",
  "required": ["accuracy", "needs_rewrite", "feedback"],
  "properties": {
    "accuracy": {"type": "number", "minimum": 0, "maximum": 1},
    "needs_rewrite": {"type": "boolean"},
    "feedback": {"type": "string"},
    "per_line": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["line_index", "is_verified"],
        "properties": {
          "line_index": {"type": "integer", "minimum": 0},
          "is_verified": {"type": "boolean"},
          "citations": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["chunk_id"],
              "properties": {
                "chunk_id": {"type": "string"},
                "span": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`

// SchemaFor returns the JSON Schema document for a response type. Rewrite
// shares the segment shape; repair has no schema of its own.
func SchemaFor(rt ResponseType) string {
	switch rt {
	case ResponseOutline:
		return outlineSchema
	case ResponseSegment, ResponseRewrite:
		return segmentSchema
	case ResponseFactCheck:
		return factcheckSchema
	}
	return ""
}
