// Package settings holds the process-wide display preferences.
package settings

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pharmadesk/pharmadesk/internal/platform/cache"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"

	LanguageBengali = "bn"
	LanguageEnglish = "en"
)

var (
	themes    = map[string]bool{ThemeLight: true, ThemeDark: true}
	languages = map[string]bool{LanguageBengali: true, LanguageEnglish: true}
)

// Preferences is the UI theme and language shared by every client.
type Preferences struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

// Update is the body of PUT /settings. Blank fields keep their value.
type Update struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
}

var storeKey = cache.Key("settings", "preferences")

// Service guards the current Preferences. When a store is configured every
// change is written through to it before it becomes visible.
type Service struct {
	mu    sync.RWMutex
	prefs Preferences
	store cache.Store
}

// NewService starts from defaults. store may be nil.
func NewService(defaults Preferences, store cache.Store) *Service {
	if defaults.Theme == "" {
		defaults.Theme = ThemeLight
	}
	if defaults.Language == "" {
		defaults.Language = LanguageBengali
	}
	return &Service{prefs: defaults, store: store}
}

// Load replaces the defaults with the stored preferences, if any. Stored
// values that are no longer valid are ignored.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	var stored Preferences
	ok, err := cache.GetJSON(ctx, s.store, storeKey, &stored)
	if err != nil {
		return fmt.Errorf("settings: load: %w", err)
	}
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if themes[stored.Theme] {
		s.prefs.Theme = stored.Theme
	}
	if languages[stored.Language] {
		s.prefs.Language = stored.Language
	}
	log.Info().Str("theme", s.prefs.Theme).Str("language", s.prefs.Language).Msg("preferences loaded")
	return nil
}

func (s *Service) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *Service) Set(ctx context.Context, in Update) (Preferences, error) {
	theme := strings.ToLower(strings.TrimSpace(in.Theme))
	language := strings.ToLower(strings.TrimSpace(in.Language))

	errs := validation.Errors{}
	errs.OneOf("theme", theme, themes)
	errs.OneOf("language", language, languages)
	if err := errs.Err(); err != nil {
		return Preferences{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.prefs
	if theme != "" {
		next.Theme = theme
	}
	if language != "" {
		next.Language = language
	}
	return s.commit(ctx, next)
}

// ToggleTheme flips between light and dark.
func (s *Service) ToggleTheme(ctx context.Context) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.prefs
	next.Theme = ThemeDark
	if s.prefs.Theme == ThemeDark {
		next.Theme = ThemeLight
	}
	return s.commit(ctx, next)
}

// commit persists next and makes it current. Callers hold mu.
func (s *Service) commit(ctx context.Context, next Preferences) (Preferences, error) {
	if s.store != nil {
		if err := cache.SetJSON(ctx, s.store, storeKey, next, 0); err != nil {
			return s.prefs, fmt.Errorf("settings: save: %w", err)
		}
	}
	s.prefs = next
	return next, nil
}
