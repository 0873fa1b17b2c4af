package templating

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"text/template"

	"github.com/BurntSushi/toml"
	"github.com/yegors/airship-atc/pkg/logger"
)

// ErrUnknownPhrase is returned when no template is registered for a key
var ErrUnknownPhrase = errors.New("unknown phrase")

// DefaultPhrases are the built-in pilot lines. Templates receive the
// utterance data map.
var DefaultPhrases = map[string]string{
	"pilot-takeoff":        "{{.site}} departure, lifting off for {{.destination}}.",
	"pilot-landed":         "Docked at {{.site}}, lines secured.",
	"pilot-announce-next":  "Now boarding at {{.site}} for {{.destination}}, departing {{.direction}}{{with .heading}} on heading {{heading .}}{{end}}.",
	"pilot-hold-announced": "Holding short of {{.site}}, dock is occupied.",
	"pilot-hold-continue":  "Still holding for {{.site}}.",
}

// Engine renders pilot phrases. Defaults can be replaced or extended by a
// TOML file of key = "template" pairs.
type Engine struct {
	path          string
	templateCache map[string]*template.Template
	cacheMutex    sync.RWMutex
	logger        *logger.Logger
}

// NewEngine creates an engine from the defaults and the optional override
// file at path
func NewEngine(path string, log *logger.Logger) (*Engine, error) {
	e := &Engine{
		path:   path,
		logger: log.Named("template-engine"),
	}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Render renders the phrase for key with data
func (e *Engine) Render(key string, data map[string]string) (string, error) {
	e.cacheMutex.RLock()
	tmpl, ok := e.templateCache[key]
	e.cacheMutex.RUnlock()
	if !ok {
		return "", fmt.Errorf("%q: %w", key, ErrUnknownPhrase)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute phrase %q: %w", key, err)
	}
	return buf.String(), nil
}

// Reload rebuilds the cache from the defaults and the override file
func (e *Engine) Reload() error {
	phrases := make(map[string]string, len(DefaultPhrases))
	for k, v := range DefaultPhrases {
		phrases[k] = v
	}

	if e.path != "" {
		overrides, err := loadPhrasebook(e.path)
		if err != nil {
			return err
		}
		for k, v := range overrides {
			phrases[k] = v
		}
		e.logger.Info("Phrasebook loaded",
			logger.String("path", e.path),
			logger.Int("overrides", len(overrides)))
	}

	cache := make(map[string]*template.Template, len(phrases))
	for key, text := range phrases {
		tmpl, err := template.New(key).Funcs(funcMap).Parse(text)
		if err != nil {
			return fmt.Errorf("failed to parse phrase %q: %w", key, err)
		}
		cache[key] = tmpl
	}

	e.cacheMutex.Lock()
	e.templateCache = cache
	e.cacheMutex.Unlock()
	return nil
}

// Keys returns the registered phrase keys in order
func (e *Engine) Keys() []string {
	e.cacheMutex.RLock()
	defer e.cacheMutex.RUnlock()

	keys := make([]string, 0, len(e.templateCache))
	for k := range e.templateCache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func loadPhrasebook(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read phrasebook '%s': %w", path, err)
	}
	var phrases map[string]string
	if _, err := toml.Decode(string(content), &phrases); err != nil {
		return nil, fmt.Errorf("failed to parse phrasebook '%s': %w", path, err)
	}
	return phrases, nil
}
