package domain

import (
	"fmt"

	"github.com/bytedance/sonic"

	activity "tabtrail/internal/modules/activity/domain"
	apperrors "tabtrail/internal/platform/errors"
)

// ConfigStd sorts map keys, so equal records serialize to equal bytes.
var api = sonic.ConfigStd

// BuildRecord trims and compacts st without serializing it.
func BuildRecord(st *activity.State, limits Limits) *Record {
	trimmedState, trimmed := TrimStateForStorage(st, limits)
	return CompactStateForStorage(trimmedState, trimmed)
}

func Encode(st *activity.State, limits Limits) ([]byte, error) {
	return MarshalRecord(BuildRecord(st, limits))
}

func MarshalRecord(rec *Record) ([]byte, error) {
	data, err := api.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// EncodeWithinQuota halves the limits until the record fits in quota bytes.
// It returns the limits that were finally applied.
func EncodeWithinQuota(st *activity.State, limits Limits, quota int) ([]byte, Limits, error) {
	const maxRounds = 8
	for round := 0; ; round++ {
		data, err := Encode(st, limits)
		if err != nil {
			return nil, limits, err
		}
		if quota <= 0 || len(data) <= quota {
			return data, limits, nil
		}
		if round == maxRounds {
			return nil, limits, fmt.Errorf("%d bytes over %d: %w", len(data), quota, apperrors.ErrQuotaUnsatisfiable)
		}
		limits = limits.Tighten()
	}
}

type versionProbe struct {
	SchemaVersion int `json:"schemaVersion"`
	Version       int `json:"version"`
}

// DetectVersion reads only the version fields of a stored blob.
func DetectVersion(data []byte) (int, error) {
	var probe versionProbe
	if err := api.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrDecode, err)
	}
	if probe.SchemaVersion == 0 && probe.Version == 1 {
		return 1, nil
	}
	return probe.SchemaVersion, nil
}

// Decode reads any supported schema version into the current model. The
// stored tracking cursor comes back without a running span: time that
// elapsed while nothing was tracking is never credited.
func Decode(data []byte) (*activity.State, error) {
	st, err := decode(data)
	if err != nil {
		return nil, err
	}
	st.Tracking.ActiveSince = 0
	return st, nil
}

func decode(data []byte) (*activity.State, error) {
	version, err := DetectVersion(data)
	if err != nil {
		return nil, err
	}
	switch version {
	case 1:
		return migrateV1(data)
	case 2:
		return migrateV2(data)
	case 3:
		return migrateV3(data)
	case CurrentSchemaVersion:
		rec, err := UnmarshalRecord(data)
		if err != nil {
			return nil, err
		}
		return ExpandRecord(rec), nil
	default:
		return nil, fmt.Errorf("version %d: %w", version, apperrors.ErrUnsupportedSchema)
	}
}

func UnmarshalRecord(data []byte) (*Record, error) {
	var rec Record
	if err := api.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDecode, err)
	}
	if rec.SchemaVersion != CurrentSchemaVersion {
		return nil, fmt.Errorf("version %d: %w", rec.SchemaVersion, apperrors.ErrUnsupportedSchema)
	}
	return &rec, nil
}
