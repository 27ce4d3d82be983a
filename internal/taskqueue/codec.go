package taskqueue

import (
	"bytes"
	"encoding/gob"
)

// EncodeCommand gob-encodes a Command.
func EncodeCommand(c Command) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCommand gob-decodes a Command.
func DecodeCommand(data []byte) (*Command, error) {
	var c Command
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
