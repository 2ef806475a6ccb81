package notebook

import (
	"fmt"

	"github.com/starford/zennote/internal/apperr"
	"github.com/starford/zennote/internal/models"
)

// maxHistory bounds ImportExportHistory.
const maxHistory = 50

// SettingsPatch carries the fields UpdateSettings merges.
type SettingsPatch struct {
	Theme               *models.ThemeMode `json:"theme,omitempty"`
	BackupPath          *string           `json:"backupPath,omitempty"`
	ImportExportHistory *[]string         `json:"importExportHistory,omitempty"`
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() models.AppSettings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings.Clone()
}

// SetTheme changes the theme.
func (e *Engine) SetTheme(theme models.ThemeMode) error {
	return e.UpdateSettings(SettingsPatch{Theme: &theme})
}

// UpdateSettings merges p into the settings and schedules a write.
func (e *Engine) UpdateSettings(p SettingsPatch) error {
	if p.Theme != nil && !p.Theme.Valid() {
		return fmt.Errorf("theme %q: %w", *p.Theme, apperr.ErrValidation)
	}
	e.mutateSettings(func(s *models.AppSettings) {
		if p.Theme != nil {
			s.Theme = *p.Theme
		}
		if p.BackupPath != nil {
			s.BackupPath = *p.BackupPath
		}
		if p.ImportExportHistory != nil {
			s.ImportExportHistory = append([]string{}, (*p.ImportExportHistory)...)
		}
	})
	return nil
}

// RecordHistory appends an import/export history entry, keeping the most recent ones.
func (e *Engine) RecordHistory(entry string) {
	e.mutateSettings(func(s *models.AppSettings) {
		h := append(s.ImportExportHistory, entry)
		if len(h) > maxHistory {
			h = h[len(h)-maxHistory:]
		}
		s.ImportExportHistory = append([]string{}, h...)
	})
}

func (e *Engine) mutateSettings(fn func(*models.AppSettings)) {
	e.mu.Lock()
	next := e.settings.Clone()
	fn(&next)
	e.settings = next
	e.persist.ScheduleSettings(e.encodeSettings)
	e.mu.Unlock()

	e.emit(Event{Kind: SettingsUpdated})
}
