package catalog

import (
	"context"

	"agentbuilders.dev/internal/database"
)

// Theme preferences a subject may save.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

// SettingsUpdate carries the fields of a settings write. Nil fields keep
// the stored value.
type SettingsUpdate struct {
	Theme                *string
	FavoriteFrameworkIDs *[]int64
}

func defaultSettings(subject string) *database.UserSettings {
	return &database.UserSettings{
		Subject:              subject,
		Theme:                ThemeSystem,
		FavoriteFrameworkIDs: []int64{},
	}
}

// GetSettings returns a subject's saved settings, or the defaults when the
// subject has never written any. Reads never create a row.
func (s *Service) GetSettings(ctx context.Context, subject string) (*database.UserSettings, error) {
	if subject == "" {
		return nil, &ValidationError{Field: "subject", Reason: "must not be empty"}
	}
	us, err := s.store.GetUserSettings(ctx, subject)
	if err != nil {
		return nil, err
	}
	if us == nil {
		return defaultSettings(subject), nil
	}
	return us, nil
}

// UpdateSettings creates the settings row on first write and patches it in
// place afterwards. Omitted fields keep their previous values.
func (s *Service) UpdateSettings(ctx context.Context, subject string, update SettingsUpdate) (*database.UserSettings, error) {
	if subject == "" {
		return nil, &ValidationError{Field: "subject", Reason: "must not be empty"}
	}
	if update.Theme != nil {
		switch *update.Theme {
		case ThemeSystem, ThemeLight, ThemeDark:
		default:
			return nil, &ValidationError{Field: "theme", Reason: "must be system, light or dark"}
		}
	}
	current, err := s.GetSettings(ctx, subject)
	if err != nil {
		return nil, err
	}
	theme := current.Theme
	if update.Theme != nil {
		theme = *update.Theme
	}
	favorites := current.FavoriteFrameworkIDs
	if update.FavoriteFrameworkIDs != nil {
		favorites = dedupeIDs(*update.FavoriteFrameworkIDs)
	}
	return s.store.UpsertUserSettings(ctx, subject, theme, favorites)
}

// dedupeIDs keeps first occurrences, preserving order. Favorites have set
// semantics even though they travel as a list.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
