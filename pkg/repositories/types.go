package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ErrNotFound struct {
	Collection string
	ID         string
}

func (e *ErrNotFound) Error() string {
	if e.Collection == "" {
		return "not found"
	}
	return fmt.Sprintf("%s/%s not found", e.Collection, e.ID)
}

func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}

func notFound(collection, id string) error {
	return &ErrNotFound{Collection: collection, ID: id}
}

// mergeFields applies a top-level merge of fields onto a JSON object.
func mergeFields(data []byte, fields map[string]interface{}) ([]byte, error) {
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %v", err)
	}
	for k, v := range fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode field %s: %v", k, err)
		}
		doc[k] = b
	}
	return json.Marshal(doc)
}
