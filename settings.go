package arena

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPageSize is the default base size of arena pages (4 KiB).
	DefaultPageSize = 4 << 10
	// DefaultAlignment is the default alignment of AllocBytes, large enough
	// for any built-in Go type.
	DefaultAlignment = 16
)

// ErrorBehavior selects what an arena does when an allocation fails.
type ErrorBehavior uint8

const (
	// Panic reports the failure through the fatal handler.
	Panic ErrorBehavior = iota
	// ReturnError hands the failure back to the caller.
	ReturnError
)

func (b ErrorBehavior) String() string {
	switch b {
	case Panic:
		return "panic"
	case ReturnError:
		return "return_error"
	default:
		return fmt.Sprintf("ErrorBehavior(%d)", uint8(b))
	}
}

// ParseErrorBehavior parses the names produced by ErrorBehavior.String.
// "return_null" is accepted as an alias of "return_error".
func ParseErrorBehavior(s string) (ErrorBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "panic":
		return Panic, nil
	case "return_error", "return_null":
		return ReturnError, nil
	default:
		return Panic, fmt.Errorf("arena: unknown error behavior %q", s)
	}
}

func (b ErrorBehavior) MarshalYAML() (any, error) {
	return b.String(), nil
}

func (b *ErrorBehavior) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseErrorBehavior(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ByteSize is a size in bytes that reads and writes human units ("4KiB", "1 MB").
type ByteSize uint64

func (s ByteSize) String() string {
	return humanize.IBytes(uint64(s))
}

func (s ByteSize) MarshalYAML() (any, error) {
	return s.String(), nil
}

func (s *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var n uint64
		if err := value.Decode(&n); err != nil {
			return err
		}
		*s = ByteSize(n)
		return nil
	}
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	n, err := humanize.ParseBytes(str)
	if err != nil {
		return fmt.Errorf("arena: invalid byte size %q: %w", str, err)
	}
	*s = ByteSize(n)
	return nil
}

// Settings configures an arena.
type Settings struct {
	// PageSize is the base size of new pages. Larger requests get larger pages.
	PageSize ByteSize `yaml:"page_size"`
	// MaxPages caps the number of pages. nil means no limit.
	MaxPages *int `yaml:"max_pages,omitempty"`
	// ZeroInitialize zeroes page memory before it is handed out, including
	// memory reclaimed by Reset.
	ZeroInitialize bool `yaml:"zero_initialize"`
	// ErrorBehavior selects between failing loudly and returning errors.
	ErrorBehavior ErrorBehavior `yaml:"error_behavior"`
	// Alignment is used by AllocBytes and AllocRef.
	Alignment int `yaml:"alignment,omitempty"`
	// Preallocate creates the first page at construction.
	Preallocate bool `yaml:"preallocate,omitempty"`
}

// DefaultSettings returns 4 KiB pages, no page limit, zeroed memory and
// fail-loudly error handling.
func DefaultSettings() Settings {
	return Settings{
		PageSize:       DefaultPageSize,
		ZeroInitialize: true,
		ErrorBehavior:  Panic,
		Alignment:      DefaultAlignment,
	}
}

// ParseSettings decodes YAML on top of DefaultSettings.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("arena: parse settings: %w", err)
	}
	if s.Alignment == 0 {
		s.Alignment = DefaultAlignment
	}
	return s, nil
}

// LoadSettings reads a YAML settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return ParseSettings(data)
}

// Option configures an Arena.
type Option func(*Arena)

// WithSettings replaces all settings at once.
func WithSettings(s Settings) Option {
	return func(a *Arena) {
		a.settings = s
	}
}

// WithMaxPages caps the number of pages the arena may hold.
func WithMaxPages(n int) Option {
	return func(a *Arena) {
		a.settings.MaxPages = &n
	}
}

// WithZeroInitialize toggles zeroing of page memory.
func WithZeroInitialize(zero bool) Option {
	return func(a *Arena) {
		a.settings.ZeroInitialize = zero
	}
}

// WithErrorBehavior selects the allocation failure policy.
func WithErrorBehavior(b ErrorBehavior) Option {
	return func(a *Arena) {
		a.settings.ErrorBehavior = b
	}
}

// WithAlignment sets the default alignment of AllocBytes.
func WithAlignment(align int) Option {
	return func(a *Arena) {
		a.settings.Alignment = align
	}
}

// WithPreallocate creates the first page at construction.
func WithPreallocate() Option {
	return func(a *Arena) {
		a.settings.Preallocate = true
	}
}

// WithSystemAllocator sets where page memory comes from.
func WithSystemAllocator(sys SystemAllocator) Option {
	return func(a *Arena) {
		a.sys = sys
	}
}

// WithInstrumentation installs poisoning hooks.
func WithInstrumentation(inst Instrumentation) Option {
	return func(a *Arena) {
		a.inst = inst
	}
}

// WithLogger sets the logger of a single arena.
func WithLogger(l *log.Logger) Option {
	return func(a *Arena) {
		a.log = l
	}
}

// WithFatalHandler sets the fatal handler of a single arena.
func WithFatalHandler(h FatalHandler) Option {
	return func(a *Arena) {
		a.fatal = h
	}
}
