// Package storage persists the client's preferences and registry accounts.
//
// The whole state lives as one JSON document under ConfigKey in a KV
// backend. Readers get immutable snapshots; every mutation builds a new
// snapshot, persists it and only then publishes it.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/HubViewer/internal/models"
)

const (
	// ConfigKey holds the serialized Config.
	ConfigKey = "DTVConfig"

	legacyThemeKey    = "DTVTheme"
	legacyLanguageKey = "DTVLanguage"
)

// Theme is the UI color scheme.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// Language is the UI language.
type Language string

const (
	LanguageES Language = "es"
	LanguageEN Language = "en"
)

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguageES || l == LanguageEN
}

var (
	ErrInvalidTheme    = errors.New("invalid theme, must be light, dark or system")
	ErrInvalidLanguage = errors.New("invalid language, must be es or en")
	ErrAccountNotFound = errors.New("account not found")
	ErrEmptyAccount    = errors.New("account organization and data are required")
)

// Config is a snapshot of the client state. Snapshots returned by the Store
// are copies; changing them has no effect on the Store.
type Config struct {
	Theme    Theme            `json:"theme"`
	Language Language         `json:"language"`
	Accounts []models.Account `json:"accounts"`
	// Columns maps a table name to the visibility of its columns. Columns
	// not listed are visible.
	Columns map[string]map[string]bool `json:"columns,omitempty"`
}

// ActiveAccount returns the active account, if any.
func (c Config) ActiveAccount() (models.Account, bool) {
	for _, a := range c.Accounts {
		if a.IsActive {
			return a, true
		}
	}
	return models.Account{}, false
}

// ColumnVisible reports whether column of table is shown.
func (c Config) ColumnVisible(table, column string) bool {
	visible, ok := c.Columns[table][column]
	return !ok || visible
}

func (c Config) clone() Config {
	out := c
	out.Accounts = make([]models.Account, len(c.Accounts))
	copy(out.Accounts, c.Accounts)
	if c.Columns != nil {
		out.Columns = make(map[string]map[string]bool, len(c.Columns))
		for table, cols := range c.Columns {
			m := make(map[string]bool, len(cols))
			for k, v := range cols {
				m[k] = v
			}
			out.Columns[table] = m
		}
	}
	return out
}

// normalize restores the single-active-account invariant.
func (c *Config) normalize() {
	if c.Accounts == nil {
		c.Accounts = []models.Account{}
	}
	active := -1
	for i := range c.Accounts {
		if c.Accounts[i].IsActive && active < 0 {
			active = i
			continue
		}
		c.Accounts[i].IsActive = false
	}
	if active < 0 && len(c.Accounts) > 0 {
		c.Accounts[0].IsActive = true
	}
}

// Store owns the persisted Config.
type Store struct {
	kv     KV
	log    *zap.Logger
	getenv func(string) string

	mu  sync.Mutex
	cfg Config
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used to report recoverable load problems.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithEnv replaces os.Getenv when computing default settings.
func WithEnv(getenv func(string) string) Option {
	return func(s *Store) { s.getenv = getenv }
}

// Open loads the state from kv, migrating legacy keys when no Config has
// been stored yet.
func Open(ctx context.Context, kv KV, opts ...Option) (*Store, error) {
	s := &Store{kv: kv, log: zap.NewNop(), getenv: os.Getenv}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return s, nil
}

// DefaultConfig returns the settings used before anything was stored.
func (s *Store) DefaultConfig() Config {
	return Config{
		Theme:    ThemeSystem,
		Language: languageFromLocale(s.getenv("LANG")),
		Accounts: []models.Account{},
	}
}

// languageFromLocale maps a locale such as "en_US.UTF-8" to a Language.
func languageFromLocale(locale string) Language {
	if i := strings.IndexAny(locale, "_-.@"); i >= 0 {
		locale = locale[:i]
	}
	if lang := Language(strings.ToLower(locale)); lang.Valid() {
		return lang
	}
	return LanguageES
}

func (s *Store) load(ctx context.Context) (Config, error) {
	raw, ok, err := s.kv.Get(ctx, ConfigKey)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if ok {
		cfg := s.DefaultConfig()
		err := json.Unmarshal([]byte(raw), &cfg)
		if err == nil {
			if !cfg.Theme.Valid() {
				cfg.Theme = ThemeSystem
			}
			if !cfg.Language.Valid() {
				cfg.Language = s.DefaultConfig().Language
			}
			cfg.normalize()
			return cfg, nil
		}
		s.log.Warn("stored config is unreadable, starting over", zap.Error(err))
	}
	return s.migrate(ctx)
}

// migrate builds the first Config from the keys older clients wrote.
// Legacy keys are removed only when their value was usable.
func (s *Store) migrate(ctx context.Context) (Config, error) {
	cfg := s.DefaultConfig()

	if v, ok, err := s.kv.Get(ctx, legacyThemeKey); err != nil {
		return Config{}, fmt.Errorf("read legacy theme: %w", err)
	} else if ok && Theme(v).Valid() {
		cfg.Theme = Theme(v)
		if err := s.kv.Delete(ctx, legacyThemeKey); err != nil {
			return Config{}, fmt.Errorf("remove legacy theme: %w", err)
		}
	}

	if v, ok, err := s.kv.Get(ctx, legacyLanguageKey); err != nil {
		return Config{}, fmt.Errorf("read legacy language: %w", err)
	} else if ok && Language(v).Valid() {
		cfg.Language = Language(v)
		if err := s.kv.Delete(ctx, legacyLanguageKey); err != nil {
			return Config{}, fmt.Errorf("remove legacy language: %w", err)
		}
	}

	if err := s.save(ctx, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (s *Store) save(ctx context.Context, cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := s.kv.Set(ctx, ConfigKey, string(data)); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Config returns the current snapshot.
func (s *Store) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.clone()
}

// update applies fn to a copy of the current Config and publishes it once
// persisted. The Store is unchanged when fn or the write fails.
func (s *Store) update(ctx context.Context, fn func(*Config) error) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	if err := fn(&next); err != nil {
		return s.cfg.clone(), err
	}
	if err := s.save(ctx, next); err != nil {
		return s.cfg.clone(), err
	}
	s.cfg = next
	return next.clone(), nil
}

// SetTheme stores the UI theme.
func (s *Store) SetTheme(ctx context.Context, theme Theme) (Config, error) {
	return s.update(ctx, func(c *Config) error {
		if !theme.Valid() {
			return ErrInvalidTheme
		}
		c.Theme = theme
		return nil
	})
}

// SetLanguage stores the UI language.
func (s *Store) SetLanguage(ctx context.Context, lang Language) (Config, error) {
	return s.update(ctx, func(c *Config) error {
		if !lang.Valid() {
			return ErrInvalidLanguage
		}
		c.Language = lang
		return nil
	})
}

// AddAccount stores a new account and makes it the active one. An account
// for the same organization is replaced in place.
func (s *Store) AddAccount(ctx context.Context, organization, data string) (Config, models.Account, error) {
	organization = strings.TrimSpace(organization)
	account := models.Account{
		ID:           uuid.NewString(),
		Organization: organization,
		Data:         data,
		IsActive:     true,
	}

	cfg, err := s.update(ctx, func(c *Config) error {
		if organization == "" || data == "" {
			return ErrEmptyAccount
		}
		replaced := false
		for i := range c.Accounts {
			c.Accounts[i].IsActive = false
			if c.Accounts[i].Organization == organization && !replaced {
				c.Accounts[i] = account
				replaced = true
			}
		}
		if !replaced {
			c.Accounts = append(c.Accounts, account)
		} else {
			c.Accounts = dedupeOrganization(c.Accounts, account.ID, organization)
		}
		return nil
	})
	if err != nil {
		return cfg, models.Account{}, err
	}
	return cfg, account, nil
}

// dedupeOrganization drops every account of organization except keep.
func dedupeOrganization(accounts []models.Account, keep, organization string) []models.Account {
	out := accounts[:0]
	for _, a := range accounts {
		if a.Organization == organization && a.ID != keep {
			continue
		}
		out = append(out, a)
	}
	return out
}

// SetActiveAccount marks the account with id as the only active one.
func (s *Store) SetActiveAccount(ctx context.Context, id string) (Config, error) {
	return s.update(ctx, func(c *Config) error {
		found := false
		for i := range c.Accounts {
			c.Accounts[i].IsActive = c.Accounts[i].ID == id
			found = found || c.Accounts[i].IsActive
		}
		if !found {
			return ErrAccountNotFound
		}
		return nil
	})
}

// RemoveAccount deletes the account with id. When it was active, the first
// remaining account becomes active.
func (s *Store) RemoveAccount(ctx context.Context, id string) (Config, error) {
	return s.update(ctx, func(c *Config) error {
		idx := -1
		for i, a := range c.Accounts {
			if a.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrAccountNotFound
		}
		wasActive := c.Accounts[idx].IsActive
		c.Accounts = append(c.Accounts[:idx], c.Accounts[idx+1:]...)
		if wasActive && len(c.Accounts) > 0 {
			c.Accounts[0].IsActive = true
		}
		return nil
	})
}

// SetColumnVisible shows or hides a column of a listing table.
func (s *Store) SetColumnVisible(ctx context.Context, table, column string, visible bool) (Config, error) {
	return s.update(ctx, func(c *Config) error {
		if c.Columns == nil {
			c.Columns = map[string]map[string]bool{}
		}
		if c.Columns[table] == nil {
			c.Columns[table] = map[string]bool{}
		}
		c.Columns[table][column] = visible
		return nil
	})
}

// Reset replaces the state with the defaults, forgetting every account.
func (s *Store) Reset(ctx context.Context) (Config, error) {
	return s.update(ctx, func(c *Config) error {
		*c = s.DefaultConfig()
		return nil
	})
}
