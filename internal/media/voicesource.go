// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tetraops/callstream/pkg/connectors"
)

// Call type discriminators of the playback commands.
const (
	CallTypeGroup      = "G"
	CallTypeIndividual = "I"
)

// ErrRecordingNotFound reports that no stored recording exists for the
// requested database row.
var ErrRecordingNotFound = errors.New("media: recording not found")

// VoiceSource reads stored voice recordings for playback.
type VoiceSource interface {
	VoiceData(ctx context.Context, callType string, dbID int64) ([]byte, error)
}

type voiceSource struct {
	connector connectors.PostgresConnector
}

// NewVoiceSource reads recordings from the persister's voice tables.
func NewVoiceSource(connector connectors.PostgresConnector) VoiceSource {
	return &voiceSource{connector: connector}
}

func (s *voiceSource) VoiceData(ctx context.Context, callType string, dbID int64) ([]byte, error) {
	var table string
	switch callType {
	case CallTypeGroup:
		table = "d_callstream_voicegroupcall"
	case CallTypeIndividual:
		table = "d_callstream_voiceindicall"
	default:
		return nil, fmt.Errorf("media: unknown call type %q", callType)
	}

	var blob []byte
	row := s.connector.DB(ctx).Raw(
		fmt.Sprintf("SELECT voice_data FROM %s WHERE db_id = ?", table), dbID).Row()
	if err := row.Scan(&blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordingNotFound
		}
		return nil, fmt.Errorf("media: reading recording %d: %w", dbID, err)
	}
	return blob, nil
}
