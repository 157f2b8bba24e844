package ledger

import (
	"encoding/json"
	"errors"

	"refinery/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeCandidate(c model.Candidate) ([]byte, error) {
	return json.Marshal(c)
}

func DecodeCandidate(data []byte) (model.Candidate, error) {
	var candidate model.Candidate
	if err := json.Unmarshal(data, &candidate); err != nil {
		return model.Candidate{}, err
	}
	if err := checkVersion(candidate.VersionedRecord); err != nil {
		return model.Candidate{}, err
	}
	return candidate, nil
}

// Stamp fills in the current schema and codec versions before a record is
// persisted.
func Stamp(c model.Candidate) model.Candidate {
	c.SchemaVersion = CurrentSchemaVersion
	c.CodecVersion = CurrentCodecVersion
	return c
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
