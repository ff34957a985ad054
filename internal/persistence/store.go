// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package persistence

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/tetraops/callstream/pkg/commons"
	"github.com/tetraops/callstream/pkg/connectors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrCallNotFound reports that a voice recording arrived for a call id
// with no matching call row.
var ErrCallNotFound = errors.New("persistence: call not found")

// Store is the database side of the persister.
type Store interface {
	Migrate() error

	UpsertKeepAlive(ctx context.Context, status *LogServerStatus) error

	CreateIndiCall(ctx context.Context, call *IndiCall) error
	CreateIndiStatusChange(ctx context.Context, change *IndiCallStatusChange) error
	CreateIndiPtt(ctx context.Context, ptt *IndiCallPtt) error
	CloseIndiCall(ctx context.Context, callID uint32, end time.Time, seqNo uint16, cause uint8) error

	CreateGroupCall(ctx context.Context, call *GroupCall) error
	CreateGroupStatusChange(ctx context.Context, change *GroupCallStatusChange) error
	CreateGroupPtt(ctx context.Context, ptt *GroupCallPtt) error
	CloseGroupCall(ctx context.Context, callID uint32, end time.Time, seqNo uint16, cause uint8) error

	CreateTextSDS(ctx context.Context, sds *SDSData) error
	CreateStatusSDS(ctx context.Context, sds *SDSStatus) error

	// SaveVoiceRecording attaches the rendered recording to the most
	// recent call row with the given call id. Duplex and simplex calls
	// land in the individual voice table, group calls in the group one.
	SaveVoiceRecording(ctx context.Context, kind CallKind, callID uint32, blob []byte, duration time.Duration) error
}

type store struct {
	conn   connectors.PostgresConnector
	logger commons.Logger
}

// NewStore wraps the shared connector.
func NewStore(conn connectors.PostgresConnector, logger commons.Logger) Store {
	return &store{conn: conn, logger: logger}
}

// Migrate applies the embedded schema migrations.
func (s *store) Migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("persistence: migration source: %w", err)
	}
	sqlDB, err := s.conn.DB(context.Background()).DB()
	if err != nil {
		return fmt.Errorf("persistence: sql handle: %w", err)
	}
	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("persistence: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("persistence: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("persistence: migrate up: %w", err)
	}
	s.logger.Info("database schema up to date")
	return nil
}

func (s *store) UpsertKeepAlive(ctx context.Context, status *LogServerStatus) error {
	db := s.conn.DB(ctx)

	var existing LogServerStatus
	err := db.Where("log_server_no = ?", status.LogServerNo).First(&existing).Error
	switch {
	case err == nil:
		return db.Model(&LogServerStatus{}).
			Where("log_server_no = ?", status.LogServerNo).
			Updates(map[string]interface{}{
				"last_heartbeat":   status.LastHeartbeat,
				"timeout":          status.Timeout,
				"sw_ver":           status.SwVer,
				"sw_ver_string":    status.SwVerString,
				"log_server_descr": status.LogServerDescr,
			}).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return db.Create(status).Error
	default:
		return err
	}
}

func (s *store) CreateIndiCall(ctx context.Context, call *IndiCall) error {
	return s.conn.DB(ctx).Create(call).Error
}

func (s *store) CreateIndiStatusChange(ctx context.Context, change *IndiCallStatusChange) error {
	return s.conn.DB(ctx).Create(change).Error
}

func (s *store) CreateIndiPtt(ctx context.Context, ptt *IndiCallPtt) error {
	return s.conn.DB(ctx).Create(ptt).Error
}

func (s *store) CloseIndiCall(ctx context.Context, callID uint32, end time.Time, seqNo uint16, cause uint8) error {
	return s.conn.DB(ctx).Model(&IndiCall{}).
		Where("call_id = ?", callID).
		Updates(map[string]interface{}{
			"call_end":         end,
			"seq_no_end":       seqNo,
			"disconnect_cause": cause,
		}).Error
}

func (s *store) CreateGroupCall(ctx context.Context, call *GroupCall) error {
	return s.conn.DB(ctx).Create(call).Error
}

func (s *store) CreateGroupStatusChange(ctx context.Context, change *GroupCallStatusChange) error {
	return s.conn.DB(ctx).Create(change).Error
}

func (s *store) CreateGroupPtt(ctx context.Context, ptt *GroupCallPtt) error {
	return s.conn.DB(ctx).Create(ptt).Error
}

func (s *store) CloseGroupCall(ctx context.Context, callID uint32, end time.Time, seqNo uint16, cause uint8) error {
	return s.conn.DB(ctx).Model(&GroupCall{}).
		Where("call_id = ?", callID).
		Updates(map[string]interface{}{
			"call_end":         end,
			"seq_no_end":       seqNo,
			"disconnect_cause": cause,
		}).Error
}

func (s *store) CreateTextSDS(ctx context.Context, sds *SDSData) error {
	return s.conn.DB(ctx).Create(sds).Error
}

func (s *store) CreateStatusSDS(ctx context.Context, sds *SDSStatus) error {
	return s.conn.DB(ctx).Create(sds).Error
}

func (s *store) SaveVoiceRecording(ctx context.Context, kind CallKind, callID uint32, blob []byte, duration time.Duration) error {
	callTable, voiceTable := "d_callstream_indicall", "d_callstream_voiceindicall"
	if kind == KindGroup {
		callTable, voiceTable = "d_callstream_groupcall", "d_callstream_voicegroupcall"
	}

	db := s.conn.DB(ctx)

	var head struct {
		DBID      int64      `gorm:"column:db_id"`
		CallBegin time.Time  `gorm:"column:call_begin"`
		CallEnd   *time.Time `gorm:"column:call_end"`
	}
	err := db.Table(callTable).
		Select("db_id", "call_begin", "call_end").
		Where("call_id = ?", callID).
		Order("call_begin DESC").
		Limit(1).
		Take(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: call id %d in %s", ErrCallNotFound, callID, callTable)
	}
	if err != nil {
		return err
	}

	return db.Exec(
		fmt.Sprintf("INSERT INTO %s (db_id, call_begin, call_end, voice_data_len, voice_data, duration) "+
			"VALUES (?, ?, ?, ?, ?, ?::interval)", voiceTable),
		head.DBID, head.CallBegin, head.CallEnd, len(blob), blob, FormatDuration(duration),
	).Error
}

// FormatDuration renders a play time as the H:M:S.mmm interval literal
// the voice tables have always stored.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	ms := int(d/time.Millisecond) % 1000
	return fmt.Sprintf("%d:%d:%d.%d", total/3600, (total%3600)/60, total%60, ms)
}
