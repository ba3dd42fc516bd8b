// Package transfer decodes imported catalog documents and encodes datasets
// for download. Decoding is all-or-nothing: any failure yields an
// *ImportError carrying the message shown to the user.
package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"catalogexplorer/pkg/domain"
)

// ImportError rejects an imported document. Message is user-facing.
type ImportError struct {
	Message string
	Err     error
}

func (e *ImportError) Error() string { return e.Message }

func (e *ImportError) Unwrap() error { return e.Err }

// IsImportError reports whether err rejects an import.
func IsImportError(err error) bool {
	var ie *ImportError
	return errors.As(err, &ie)
}

func parseFailure(err error) *ImportError {
	return &ImportError{Message: "Failed to parse JSON: " + err.Error(), Err: err}
}

func shapeFailure(noun string, cause error) *ImportError {
	return &ImportError{Message: "Invalid format: expected an array of " + noun, Err: cause}
}

func checkSyntax(data []byte) error {
	var probe any
	if err := json.Unmarshal(data, &probe); err != nil {
		return parseFailure(err)
	}
	return nil
}

func decodeArray(data []byte, noun string) ([]json.RawMessage, error) {
	if err := checkSyntax(data); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, shapeFailure(noun, nil)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, shapeFailure(noun, err)
	}
	return items, nil
}

// DecodeTable decodes an array of flat records.
func DecodeTable(data []byte) ([]domain.Record, error) {
	items, err := decodeArray(data, domain.KindTable.Noun())
	if err != nil {
		return nil, err
	}
	out := make([]domain.Record, len(items))
	for i, raw := range items {
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, shapeFailure(domain.KindTable.Noun(), fmt.Errorf("element %d: %w", i, err))
		}
	}
	return out, nil
}

// DecodeModules decodes an array of module definitions.
func DecodeModules(data []byte) ([]domain.Module, error) {
	items, err := decodeArray(data, domain.KindModules.Noun())
	if err != nil {
		return nil, err
	}
	out := make([]domain.Module, len(items))
	for i, raw := range items {
		if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '{' {
			return nil, shapeFailure(domain.KindModules.Noun(), fmt.Errorf("element %d is not an object", i))
		}
		if err := json.Unmarshal(raw, &out[i]); err != nil {
			return nil, shapeFailure(domain.KindModules.Noun(), fmt.Errorf("element %d: %w", i, err))
		}
		for j := range out[i].Config {
			if len(out[i].Config[j].Values) == 0 {
				out[i].Config[j].Values = nil
			}
		}
	}
	return out, nil
}

// DecodeCompat decodes a compatibility document. Both a bare object and an
// array whose first element is the document are accepted, the latter being
// what the published endpoint serves.
func DecodeCompat(data []byte) (domain.CompatRoot, error) {
	if err := checkSyntax(data); err != nil {
		return domain.CompatRoot{}, err
	}
	trimmed := bytes.TrimSpace(data)
	invalid := func(cause error) error {
		return &ImportError{Message: "Invalid format: expected a compatibility document", Err: cause}
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var docs []json.RawMessage
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return domain.CompatRoot{}, invalid(err)
		}
		if len(docs) == 0 {
			return domain.CompatRoot{}, invalid(errors.New("empty array"))
		}
		trimmed = bytes.TrimSpace(docs[0])
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.CompatRoot{}, invalid(nil)
	}
	var root domain.CompatRoot
	if err := json.Unmarshal(trimmed, &root); err != nil {
		return domain.CompatRoot{}, invalid(err)
	}
	return root, nil
}
