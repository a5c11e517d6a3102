package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/courier/internal/value"
)

// marshalValue stores v as canonical JSON TEXT so identical values are
// byte-identical in the journal.
func marshalValue(v value.Value) (string, error) {
	if v == nil {
		v = value.Null{}
	}
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

func marshalArgs(args value.Object) (string, error) {
	if args == nil {
		args = value.Object{}
	}
	return marshalValue(args)
}

func unmarshalValue(data string) (value.Value, error) {
	if data == "" {
		return value.Null{}, nil
	}
	v, err := value.Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

func unmarshalArgs(data string) (value.Object, error) {
	obj, err := value.ParseObject([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return obj, nil
}

func marshalActions(actions []ActionRecord) (string, error) {
	if len(actions) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("marshal actions: %w", err)
	}
	return string(data), nil
}

func unmarshalActions(data string) ([]ActionRecord, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var actions []ActionRecord
	if err := json.Unmarshal([]byte(data), &actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	return actions, nil
}
