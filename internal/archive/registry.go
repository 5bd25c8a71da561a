package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/taskcore/internal/task"
	"github.com/tidwall/gjson"
)

// DecodeFunc reconstructs a runnable task from the fields of an encoding,
// the type field excluded.
type DecodeFunc func(ctx context.Context, fields []byte) (*task.Task, error)

// Registry maps type tags to decoders. The decoders close over the
// collaborators a task needs to run, so a Registry is built once those exist.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]DecodeFunc
	validate *validator.Validate
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[string]DecodeFunc),
		validate: validator.New(),
	}
}

// Register adds a decoder for the snapshot type D under its type tag.
// Decoding is strict: unknown fields are rejected and D's validate tags are enforced.
// build turns the decoded snapshot into a runnable task.
func Register[D task.Data](r *Registry, build func(ctx context.Context, data D) (*task.Task, error)) error {
	var zero D
	tag := zero.TaskType()
	return r.RegisterFunc(tag, func(ctx context.Context, fields []byte) (*task.Task, error) {
		var data D
		decoder := json.NewDecoder(bytes.NewReader(fields))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEncoding, tag, err)
		}
		if err := r.validate.Struct(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEncoding, tag, err)
		}
		return build(ctx, data)
	})
}

// RegisterFunc adds a raw decoder for tag
func (r *Registry) RegisterFunc(tag string, decode DecodeFunc) error {
	if tag == "" {
		return fmt.Errorf("%w: empty type tag", task.ErrInvalidData)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decoders[tag]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, tag)
	}
	r.decoders[tag] = decode
	return nil
}

// Tags returns the registered type tags in sorted order
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.decoders))
	for tag := range r.decoders {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Decode reconstructs the task stored as encoding
func (r *Registry) Decode(ctx context.Context, encoding string) (*task.Task, error) {
	tag, err := TypeTag(encoding)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	decode, ok := r.decoders[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, tag)
	}

	fields, err := stripTypeField(encoding)
	if err != nil {
		return nil, err
	}
	t, err := decode(ctx, fields)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: decoder for %s returned no task", ErrMalformedEncoding, tag)
	}
	return t, nil
}

// TypeTag returns the "type" field of an encoding without decoding the rest
func TypeTag(encoding string) (string, error) {
	if !gjson.Valid(encoding) {
		return "", fmt.Errorf("%w: invalid JSON", ErrMalformedEncoding)
	}
	root := gjson.Parse(encoding)
	if !root.IsObject() {
		return "", fmt.Errorf("%w: not an object", ErrMalformedEncoding)
	}
	tag := root.Get(task.TypeField)
	if tag.Type != gjson.String || tag.String() == "" {
		return "", fmt.Errorf("%w: missing type field", ErrMalformedEncoding)
	}
	return tag.String(), nil
}

func stripTypeField(encoding string) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(encoding), &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEncoding, err)
	}
	delete(fields, task.TypeField)
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEncoding, err)
	}
	return out, nil
}
