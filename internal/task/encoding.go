package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// TypeField is the discriminator key of every task encoding
const TypeField = "type"

// Encode returns the canonical archive encoding of a persistable task.
// It returns ErrNotPersistable for tasks without the capability and for
// transient tasks whose serializer returned nil.
func Encode(t *Task) (string, error) {
	data, err := t.Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize task: %w", err)
	}
	if data == nil {
		return "", ErrNotPersistable
	}
	return EncodeData(data)
}

// EncodeData writes the type discriminator followed by the snapshot fields.
//
// The output is canonical: encoding/json emits struct fields in declaration
// order and map keys sorted, so equal snapshots always produce equal strings.
// Archive removal relies on that.
func EncodeData(data Data) (string, error) {
	tag := data.TaskType()
	if tag == "" {
		return "", fmt.Errorf("%w: empty type tag", ErrInvalidData)
	}

	fields, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s data: %w", tag, err)
	}
	fields = bytes.TrimSpace(fields)
	if len(fields) < 2 || fields[0] != '{' {
		return "", fmt.Errorf("%w: %s must encode as a JSON object", ErrInvalidData, tag)
	}

	tagJSON, err := json.Marshal(tag)
	if err != nil {
		return "", fmt.Errorf("failed to marshal type tag: %w", err)
	}

	var b strings.Builder
	b.Grow(len(fields) + len(tagJSON) + 10)
	b.WriteString(`{"` + TypeField + `":`)
	b.Write(tagJSON)
	rest := fields[1:]
	if !bytes.Equal(rest, []byte("}")) {
		b.WriteByte(',')
	}
	b.Write(rest)
	return b.String(), nil
}

func isNilData(data Data) bool {
	if data == nil {
		return true
	}
	v := reflect.ValueOf(data)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
