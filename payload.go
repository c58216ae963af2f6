package domkit

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultParent is the selector used for create entries without a parent.
const DefaultParent = "body"

// DecodeHeadPayload decodes {"data": [{"children": [...]}]} and returns the
// children of the first entry. Later entries are ignored.
func DecodeHeadPayload(data []byte) ([]Child, error) {
	var payload struct {
		Data []struct {
			Children json.RawMessage `json:"children"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, Errorf(EINVALID, "head payload: %v", err)
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}
	return decodeChildren(payload.Data[0].Children)
}

// CreateEntry is one top-level build of a create payload.
type CreateEntry struct {
	Parent string
	Child  Child
}

// DecodeCreatePayload decodes {"data": [{"parent": "body", "element": ...}]}.
// Each entry is classified on its own so one malformed entry does not
// reject the rest.
func DecodeCreatePayload(data []byte) ([]CreateEntry, error) {
	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, Errorf(EINVALID, "create payload: %v", err)
	}

	entries := make([]CreateEntry, 0, len(payload.Data))
	for _, raw := range payload.Data {
		entry := CreateEntry{Parent: DefaultParent, Child: DecodeChild(raw)}
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
			var p struct {
				Parent json.RawMessage `json:"parent"`
			}
			if err := json.Unmarshal(trimmed, &p); err == nil && len(p.Parent) > 0 && !bytes.Equal(p.Parent, []byte("null")) {
				var parent string
				if err := json.Unmarshal(p.Parent, &parent); err != nil {
					entry.Child = InvalidChild{Raw: string(trimmed), Reason: fmt.Sprintf("parent must be a string, got %s", p.Parent)}
				} else if parent != "" {
					entry.Parent = parent
				}
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// DecodeReadPayload decodes {"data": {"args": [...], "filter": [...]}}.
func DecodeReadPayload(data []byte) (*ExtractionRequest, error) {
	var payload struct {
		Data *ExtractionRequest `json:"data"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, Errorf(EINVALID, "read payload: %v", err)
	}
	if err := payload.Data.Validate(); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// ResultPayload is delivered to the host after a read.
type ResultPayload struct {
	Data ExtractionResult `json:"data"`
}

// Status summarizes a create operation. Built counts top-level entries
// that were attached; Failed counts entries that were not.
type Status struct {
	Built  int `json:"built"`
	Failed int `json:"failed"`
}

// StatusPayload is delivered to the host after a create.
type StatusPayload struct {
	Data Status `json:"data"`
}
