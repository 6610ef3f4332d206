package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ganttservice/internal/model"
)

// HolidayRepository 假日与工作日设定，纯透传存取，核心不解读其内容
type HolidayRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewHolidayRepository(db *pgxpool.Pool, logger *zap.Logger) *HolidayRepository {
	return &HolidayRepository{db: db, logger: logger}
}

// Find returns nil when the project has no settings row.
func (r *HolidayRepository) Find(ctx context.Context, projectID int) (*model.HolidaySettings, error) {
	query := `
        SELECT project_id, holidays, workdays_per_week, workday_weekdays, special_workdays, updated_at
        FROM gantt_holidays
        WHERE project_id = $1
    `
	var s model.HolidaySettings
	var holidaysJSON, weekdaysJSON, specialJSON []byte
	err := r.db.QueryRow(ctx, query, projectID).Scan(
		&s.ProjectID,
		&holidaysJSON,
		&s.WorkdaysPerWeek,
		&weekdaysJSON,
		&specialJSON,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find holiday settings",
			zap.Error(err),
			zap.Int("project_id", projectID),
		)
		return nil, err
	}
	if err := json.Unmarshal(holidaysJSON, &s.Holidays); err != nil {
		return nil, fmt.Errorf("failed to unmarshal holidays: %w", err)
	}
	if err := json.Unmarshal(weekdaysJSON, &s.WorkdayWeekdays); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workday weekdays: %w", err)
	}
	if err := json.Unmarshal(specialJSON, &s.SpecialWorkdays); err != nil {
		return nil, fmt.Errorf("failed to unmarshal special workdays: %w", err)
	}
	return &s, nil
}

func (r *HolidayRepository) Upsert(ctx context.Context, s *model.HolidaySettings) error {
	holidaysJSON, err := json.Marshal(s.Holidays)
	if err != nil {
		return err
	}
	weekdaysJSON, err := json.Marshal(s.WorkdayWeekdays)
	if err != nil {
		return err
	}
	specialJSON, err := json.Marshal(s.SpecialWorkdays)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO gantt_holidays (project_id, holidays, workdays_per_week, workday_weekdays, special_workdays, updated_at)
        VALUES ($1, $2, $3, $4, $5, now())
        ON CONFLICT (project_id)
        DO UPDATE SET holidays = $2, workdays_per_week = $3, workday_weekdays = $4, special_workdays = $5, updated_at = now()
    `
	_, err = r.db.Exec(ctx, query, s.ProjectID, holidaysJSON, s.WorkdaysPerWeek, weekdaysJSON, specialJSON)
	if err != nil {
		r.logger.Error("Failed to upsert holiday settings",
			zap.Error(err),
			zap.Int("project_id", s.ProjectID),
		)
		return err
	}
	r.logger.Info("Holiday settings updated", zap.Int("project_id", s.ProjectID))
	return nil
}

func (r *HolidayRepository) Delete(ctx context.Context, projectID int) error {
	_, err := r.db.Exec(ctx, `DELETE FROM gantt_holidays WHERE project_id = $1`, projectID)
	if err != nil {
		r.logger.Error("Failed to delete holiday settings",
			zap.Error(err),
			zap.Int("project_id", projectID),
		)
	}
	return err
}
