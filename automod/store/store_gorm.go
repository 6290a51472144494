package store

import (
	"context"
	"errors"
	"time"

	"github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod/action"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ViolationRow struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"index:idx_violation_user_guild;not null"`
	GuildID   string    `gorm:"index:idx_violation_user_guild;not null"`
	Timestamp time.Time `gorm:"index;not null"`
	Kind      string
	Severity  int
	Action    string
}

func (ViolationRow) TableName() string { return "automod_violations" }

type ViolationStateRow struct {
	UserID        string `gorm:"primaryKey"`
	GuildID       string `gorm:"primaryKey"`
	WarningCount  int
	WindowStart   time.Time
	WindowCount   int
	TotalCount    int
	LastViolation time.Time
	LastAction    string
	UpdatedAt     time.Time `gorm:"autoUpdateTime:false"`
}

func (ViolationStateRow) TableName() string { return "automod_violation_states" }

type ScheduledActionRow struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null"`
	GuildID   string    `gorm:"not null"`
	Action    string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Fired     bool      `gorm:"index;not null;default:false"`
	Reason    string
	CreatedAt time.Time
}

func (ScheduledActionRow) TableName() string { return "automod_scheduled_actions" }

// GormStore persists to a SQL database (sqlite or postgres).
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore migrates the schema and returns a store on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&ViolationRow{}, &ViolationStateRow{}, &ScheduledActionRow{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func parseAction(s string) action.Action {
	a, err := action.Parse(s)
	if err != nil {
		return action.None
	}
	return a
}

func (s *GormStore) SaveViolation(ctx context.Context, rec *ViolationRecord) error {
	row := ViolationRow{
		ID:        rec.ID,
		UserID:    rec.UserID,
		GuildID:   rec.GuildID,
		Timestamp: rec.Timestamp.UTC(),
		Kind:      rec.Kind,
		Severity:  rec.Severity,
		Action:    rec.Action.String(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormStore) ListViolations(ctx context.Context, userID, guildID string, limit int) ([]ViolationRecord, error) {
	var rows []ViolationRow
	q := s.db.WithContext(ctx).Where("user_id = ? AND guild_id = ?", userID, guildID).Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ViolationRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, ViolationRecord{
			ID:        row.ID,
			UserID:    row.UserID,
			GuildID:   row.GuildID,
			Timestamp: row.Timestamp,
			Kind:      row.Kind,
			Severity:  row.Severity,
			Action:    parseAction(row.Action),
		})
	}
	return out, nil
}

func (s *GormStore) LoadViolationState(ctx context.Context, userID, guildID string) (*ViolationState, error) {
	var row ViolationStateRow
	err := s.db.WithContext(ctx).Where("user_id = ? AND guild_id = ?", userID, guildID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ViolationState{
		UserID:        row.UserID,
		GuildID:       row.GuildID,
		WarningCount:  row.WarningCount,
		WindowStart:   row.WindowStart,
		WindowCount:   row.WindowCount,
		TotalCount:    row.TotalCount,
		LastViolation: row.LastViolation,
		LastAction:    parseAction(row.LastAction),
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func (s *GormStore) SaveViolationState(ctx context.Context, st *ViolationState) error {
	row := ViolationStateRow{
		UserID:        st.UserID,
		GuildID:       st.GuildID,
		WarningCount:  st.WarningCount,
		WindowStart:   st.WindowStart.UTC(),
		WindowCount:   st.WindowCount,
		TotalCount:    st.TotalCount,
		LastViolation: st.LastViolation.UTC(),
		LastAction:    st.LastAction.String(),
		UpdatedAt:     st.UpdatedAt.UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "guild_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func scheduledFromRow(row ScheduledActionRow) ScheduledAction {
	return ScheduledAction{
		ID:        row.ID,
		UserID:    row.UserID,
		GuildID:   row.GuildID,
		Action:    parseAction(row.Action),
		ExpiresAt: row.ExpiresAt,
		Fired:     row.Fired,
		CreatedAt: row.CreatedAt,
		Reason:    row.Reason,
	}
}

func (s *GormStore) SaveScheduledAction(ctx context.Context, sa *ScheduledAction) error {
	row := ScheduledActionRow{
		ID:        sa.ID,
		UserID:    sa.UserID,
		GuildID:   sa.GuildID,
		Action:    sa.Action.String(),
		ExpiresAt: sa.ExpiresAt.UTC(),
		Fired:     sa.Fired,
		Reason:    sa.Reason,
		CreatedAt: sa.CreatedAt.UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *GormStore) GetScheduledAction(ctx context.Context, id string) (*ScheduledAction, error) {
	var row ScheduledActionRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sa := scheduledFromRow(row)
	return &sa, nil
}

func (s *GormStore) LoadPendingScheduledActions(ctx context.Context) ([]ScheduledAction, error) {
	var rows []ScheduledActionRow
	if err := s.db.WithContext(ctx).Where("fired = ?", false).Order("expires_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ScheduledAction, 0, len(rows))
	for _, row := range rows {
		out = append(out, scheduledFromRow(row))
	}
	return out, nil
}

func (s *GormStore) MarkFired(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&ScheduledActionRow{}).Where("id = ? AND fired = ?", id, false).Update("fired", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) DeleteScheduledAction(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Where("id = ?", id).Delete(&ScheduledActionRow{}).Error
}

func (s *GormStore) CancelScheduledAction(ctx context.Context, id string) (bool, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND fired = ?", id, false).Delete(&ScheduledActionRow{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) Close() error {
	sqldb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}
