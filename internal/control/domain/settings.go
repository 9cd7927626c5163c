package domain

// AppSettings is the process-wide settings singleton. It is created with
// defaults when the store initializes and only ever changes through partial
// merges; it is never deleted.
type AppSettings struct {
	ID               int64 `json:"id"`
	FilteringEnabled bool  `json:"filteringEnabled"`
	LoggingEnabled   bool  `json:"loggingEnabled"`
	AlertsEnabled    bool  `json:"alertsEnabled"`
}

// DefaultAppSettings returns the settings every fresh store starts with:
// filtering, logging and alerts all on.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		ID:               1,
		FilteringEnabled: true,
		LoggingEnabled:   true,
		AlertsEnabled:    true,
	}
}

// AppSettingsPatch is a partial settings update. Nil fields are left
// untouched by Merge.
type AppSettingsPatch struct {
	FilteringEnabled *bool `json:"filteringEnabled"`
	LoggingEnabled   *bool `json:"loggingEnabled"`
	AlertsEnabled    *bool `json:"alertsEnabled"`
}

// Merge applies the patch to a copy of s and returns it.
func (s AppSettings) Merge(p AppSettingsPatch) AppSettings {
	if p.FilteringEnabled != nil {
		s.FilteringEnabled = *p.FilteringEnabled
	}
	if p.LoggingEnabled != nil {
		s.LoggingEnabled = *p.LoggingEnabled
	}
	if p.AlertsEnabled != nil {
		s.AlertsEnabled = *p.AlertsEnabled
	}
	return s
}
