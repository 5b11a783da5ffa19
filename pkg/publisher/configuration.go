package publisher

import (
	"github.com/hotlabel/publishers/pkg/store"
)

// ConfigurationUpdate is a sparse configuration change. A nil section is
// left untouched; a non-nil section has only the listed options replaced.
type ConfigurationUpdate struct {
	Appearance      map[string]any `json:"appearance,omitempty"`
	Behavior        map[string]any `json:"behavior,omitempty"`
	TaskPreferences map[string]any `json:"task_preferences,omitempty"`
	Rewards         map[string]any `json:"rewards,omitempty"`
}

// sections returns the mentioned sections keyed by name.
func (u ConfigurationUpdate) sections() map[string]map[string]any {
	out := make(map[string]map[string]any, len(store.Sections))

	for name, options := range map[string]map[string]any{
		store.SectionAppearance:      u.Appearance,
		store.SectionBehavior:        u.Behavior,
		store.SectionTaskPreferences: u.TaskPreferences,
		store.SectionRewards:         u.Rewards,
	} {
		if options != nil {
			out[name] = options
		}
	}

	return out
}

// Empty reports whether the update mentions no section.
func (u ConfigurationUpdate) Empty() bool {
	return len(u.sections()) == 0
}

// DefaultConfiguration returns the configuration seeded at registration.
func DefaultConfiguration(preferredTaskTypes []string) store.Configuration {
	taskTypes := make([]any, 0, len(preferredTaskTypes))
	for _, t := range preferredTaskTypes {
		taskTypes = append(taskTypes, t)
	}

	return store.Configuration{
		store.SectionAppearance: {
			"theme":         "light",
			"primary_color": "#3366FF",
			"border_radius": "4px",
			"font_family":   "Roboto, Arial, sans-serif",
		},
		store.SectionBehavior: {
			"task_display_frequency":  300,
			"max_tasks_per_session":   5,
			"show_task_after_seconds": 30,
			"display_on_page_types":   []any{"article", "video"},
		},
		store.SectionTaskPreferences: {
			"preferred_task_types": taskTypes,
			"max_complexity_level": 3,
			"preferred_languages":  []any{"en"},
		},
		store.SectionRewards: {
			"content_access_duration_seconds": 3600,
			"show_completion_feedback":        true,
		},
	}
}

// MergeConfiguration applies update to current and returns the result.
//
// Merging is one level deep: for every section the update mentions, the
// given option keys overwrite the stored values and all other options are
// kept. Option values are replaced wholesale even when they are objects.
// Sections the update does not mention are carried over unchanged. current
// is not modified.
func MergeConfiguration(current store.Configuration, update ConfigurationUpdate) store.Configuration {
	merged := current.Clone()
	if merged == nil {
		merged = make(store.Configuration, len(store.Sections))
	}

	for section, options := range update.sections() {
		target, ok := merged[section]
		if !ok || target == nil {
			target = make(map[string]any, len(options))
			merged[section] = target
		}

		for key, value := range options {
			target[key] = value
		}
	}

	return merged
}

// mergeWith adapts MergeConfiguration to a store.ConfigurationMutator.
func mergeWith(update ConfigurationUpdate) store.ConfigurationMutator {
	return func(current store.Configuration) (store.Configuration, error) {
		return MergeConfiguration(current, update), nil
	}
}
