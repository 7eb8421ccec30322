package settings

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pharmadesk/pharmadesk/internal/platform/cache"
	"github.com/pharmadesk/pharmadesk/internal/platform/validation"
)

type failingStore struct{ cache.Store }

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}

func TestService_Defaults(t *testing.T) {
	s := NewService(Preferences{}, nil)
	if got := s.Get(); got.Theme != ThemeLight || got.Language != LanguageBengali {
		t.Errorf("unexpected defaults %+v", got)
	}
}

func TestService_SetPartial(t *testing.T) {
	s := NewService(Preferences{Theme: ThemeDark, Language: LanguageBengali}, nil)
	got, err := s.Set(context.Background(), Update{Language: " EN "})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got.Theme != ThemeDark || got.Language != LanguageEnglish {
		t.Errorf("unexpected preferences %+v", got)
	}
}

func TestService_SetValidation(t *testing.T) {
	s := NewService(Preferences{}, nil)
	_, err := s.Set(context.Background(), Update{Theme: "blue", Language: "fr"})
	ve, ok := validation.As(err)
	if !ok || !ve.Has("theme") || !ve.Has("language") {
		t.Fatalf("expected theme and language errors, got %v", err)
	}
	if s.Get().Theme != ThemeLight {
		t.Error("rejected update must not change preferences")
	}
}

func TestService_ToggleTheme(t *testing.T) {
	s := NewService(Preferences{}, nil)
	ctx := context.Background()
	if got, _ := s.ToggleTheme(ctx); got.Theme != ThemeDark {
		t.Errorf("expected dark, got %s", got.Theme)
	}
	if got, _ := s.ToggleTheme(ctx); got.Theme != ThemeLight {
		t.Errorf("expected light, got %s", got.Theme)
	}
}

func TestService_PersistAndLoad(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()

	first := NewService(Preferences{}, store)
	if _, err := first.Set(ctx, Update{Theme: ThemeDark, Language: LanguageEnglish}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	second := NewService(Preferences{Theme: ThemeLight, Language: LanguageBengali}, store)
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := second.Get(); got.Theme != ThemeDark || got.Language != LanguageEnglish {
		t.Errorf("expected stored preferences, got %+v", got)
	}

	empty := NewService(Preferences{Theme: ThemeDark}, cache.NewMemory())
	if err := empty.Load(ctx); err != nil || empty.Get().Theme != ThemeDark {
		t.Errorf("a miss should keep defaults, got %+v, %v", empty.Get(), err)
	}
}

func TestService_Load_IgnoresInvalidValues(t *testing.T) {
	store := cache.NewMemory()
	ctx := context.Background()
	if err := cache.SetJSON(ctx, store, storeKey, Preferences{Theme: "neon", Language: LanguageEnglish}, 0); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	s := NewService(Preferences{}, store)
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Get(); got.Theme != ThemeLight || got.Language != LanguageEnglish {
		t.Errorf("unexpected preferences %+v", got)
	}
}

func TestService_StoreFailureKeepsState(t *testing.T) {
	s := NewService(Preferences{}, failingStore{cache.NewMemory()})
	if _, err := s.ToggleTheme(context.Background()); err == nil {
		t.Fatal("expected store error")
	}
	if s.Get().Theme != ThemeLight {
		t.Error("failed save must not change preferences")
	}
}

func TestService_ConcurrentToggle(t *testing.T) {
	s := NewService(Preferences{}, cache.NewMemory())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ToggleTheme(context.Background())
		}()
	}
	wg.Wait()
	if s.Get().Theme != ThemeLight {
		t.Errorf("an even number of toggles should end on light, got %s", s.Get().Theme)
	}
}

func TestHandler(t *testing.T) {
	h, e := NewHandler(NewService(Preferences{}, nil)), echo.New()

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"theme":"dark"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.Update(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"theme":"dark"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := h.ToggleTheme(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)); err != nil {
		t.Fatalf("ToggleTheme: %v", err)
	}
	rec = httptest.NewRecorder()
	if err := h.Get(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"theme":"light"`) || !strings.Contains(rec.Body.String(), `"language":"bn"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"language":"de"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	err := h.Update(e.NewContext(req, httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %v", err)
	}
}
