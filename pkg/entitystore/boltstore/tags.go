package boltstore

import (
	"encoding/json"

	"github.com/protonmail/drive-node-core/pkg/entitystore"
)

func encodeTags(tags entitystore.Tags) ([]byte, error) {
	if len(tags) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(tags)
}

func decodeTags(raw []byte) (entitystore.Tags, error) {
	tags := entitystore.Tags{}
	if len(raw) == 0 {
		return tags, nil
	}
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
