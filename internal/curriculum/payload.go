package curriculum

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPayload is returned when a hierarchy payload fails schema validation.
var ErrInvalidPayload = errors.New("invalid hierarchy payload")

// Format identifies the encoding of a payload.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "id": {"type": "string", "minLength": 1},
    "text": {"type": ["string", "null"]},
    "tags": {"type": ["array", "null"], "items": {"type": "string"}},
    "objective": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"$ref": "#/definitions/id"},
        "code": {"$ref": "#/definitions/text"},
        "statement": {"$ref": "#/definitions/text"},
        "bloomsLevel": {"$ref": "#/definitions/text"},
        "difficulty": {"$ref": "#/definitions/text"},
        "commandWords": {"$ref": "#/definitions/tags"},
        "keywords": {"$ref": "#/definitions/tags"}
      }
    },
    "subtopic": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"$ref": "#/definitions/id"},
        "name": {"$ref": "#/definitions/text"},
        "description": {"$ref": "#/definitions/text"},
        "practicalWork": {"$ref": "#/definitions/tags"},
        "mathematicalSkills": {"$ref": "#/definitions/tags"},
        "objectives": {"type": ["array", "null"], "items": {"$ref": "#/definitions/objective"}}
      }
    },
    "topic": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": {"$ref": "#/definitions/id"},
        "name": {"$ref": "#/definitions/text"},
        "description": {"$ref": "#/definitions/text"},
        "specificationCode": {"$ref": "#/definitions/text"},
        "subtopics": {"type": ["array", "null"], "items": {"$ref": "#/definitions/subtopic"}}
      }
    }
  },
  "type": "object",
  "required": ["topics"],
  "properties": {
    "sourceId": {"$ref": "#/definitions/text"},
    "name": {"$ref": "#/definitions/text"},
    "topics": {"type": "array", "items": {"$ref": "#/definitions/topic"}}
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))
})

// ParsePayload decodes and validates one hierarchy payload. Structural
// problems (missing ids, wrong nesting) fail here; duration fields are
// lenient and coerce to 0.
func ParsePayload(data []byte, format Format) (Source, error) {
	doc, err := toJSON(data, format)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return Source{}, fmt.Errorf("compiling payload schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Source{}, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(msgs, "; "))
	}

	var src Source
	if err := json.Unmarshal(doc, &src); err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	src.setBackReferences()
	return src, nil
}

func toJSON(data []byte, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		if !json.Valid(data) {
			return nil, fmt.Errorf("malformed JSON")
		}
		return data, nil
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// setBackReferences tags every topic with its source and normalizes enums.
func (s *Source) setBackReferences() {
	for ti := range s.Topics {
		t := &s.Topics[ti]
		t.SourceID = s.ID
		for si := range t.Subtopics {
			sub := &t.Subtopics[si]
			for oi := range sub.Objectives {
				o := &sub.Objectives[oi]
				o.Difficulty = Difficulty(strings.ToLower(strings.TrimSpace(string(o.Difficulty))))
				o.BloomsLevel = BloomsLevel(strings.ToLower(strings.TrimSpace(string(o.BloomsLevel))))
			}
		}
	}
}

// WithID returns a copy of the source re-tagged with id.
func (s Source) WithID(id string) Source {
	s.ID = id
	topics := make([]Topic, len(s.Topics))
	copy(topics, s.Topics)
	s.Topics = topics
	for i := range s.Topics {
		s.Topics[i].SourceID = id
	}
	return s
}
