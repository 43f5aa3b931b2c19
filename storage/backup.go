package storage

import (
	"encoding/base64"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/luma/respd/protocol"
)

// Backups are JSON documents of the form
//
//   {"entries":[{"key":"<base64>","value":"<base64>"},...]}
//
// Keys and values are base64 encoded as they are not necessarily text.

type entry struct {
	key   protocol.BinaryString
	value protocol.BinaryString
}

func encodeBackup(entries []entry) ([]byte, error) {
	doc, err := sjson.SetBytes([]byte("{}"), "entries", []interface{}{})
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		doc, err = sjson.SetBytes(doc, "entries.-1", map[string]string{
			"key":   base64.StdEncoding.EncodeToString(e.key),
			"value": base64.StdEncoding.EncodeToString(e.value),
		})

		if err != nil {
			return nil, fmt.Errorf("backup of key %s: %w", e.key, err)
		}
	}

	return doc, nil
}

func decodeBackup(doc []byte) ([]entry, error) {
	if !gjson.ValidBytes(doc) {
		return nil, fmt.Errorf("restore: invalid JSON document")
	}

	list := gjson.GetBytes(doc, "entries")
	if list.Exists() && !list.IsArray() {
		return nil, fmt.Errorf("restore: entries must be an array")
	}

	var (
		entries []entry
		err     error
	)

	list.ForEach(func(_, item gjson.Result) bool {
		var e entry

		e.key, err = decodeField(item, "key")
		if err != nil {
			err = fmt.Errorf("restore: entry %d: %w", len(entries), err)
			return false
		}

		e.value, err = decodeField(item, "value")
		if err != nil {
			err = fmt.Errorf("restore: entry %d: %w", len(entries), err)
			return false
		}

		entries = append(entries, e)
		return true
	})

	if err != nil {
		return nil, err
	}

	return entries, nil
}

func decodeField(item gjson.Result, name string) (protocol.BinaryString, error) {
	field := item.Get(name)
	if field.Type != gjson.String {
		return nil, fmt.Errorf("%s must be a base64 string", name)
	}

	raw, err := base64.StdEncoding.DecodeString(field.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return protocol.BinaryString(raw), nil
}
