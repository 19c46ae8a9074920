package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"

	"github.com/starford/clarirag/internal/chunker"
	"github.com/starford/clarirag/internal/embedding"
	"github.com/starford/clarirag/internal/generation"
	"github.com/starford/clarirag/internal/ingest"
	"github.com/starford/clarirag/internal/retrieval"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Corpus     CorpusConfig      `yaml:"corpus"`
	Index      IndexConfig       `yaml:"index"`
	Chunking   ChunkingConfig    `yaml:"chunking"`
	Embedding  EmbeddingConfig   `yaml:"embedding"`
	Generation GenerationConfig  `yaml:"generation"`
	Retrieval  RetrievalConfig   `yaml:"retrieval"`
	Reindex    ReindexConfig     `yaml:"reindex"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates every section and reports the first failure.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"app", &c.App},
		{"corpus", &c.Corpus},
		{"index", &c.Index},
		{"chunking", &c.Chunking},
		{"embedding", &c.Embedding},
		{"generation", &c.Generation},
		{"retrieval", &c.Retrieval},
		{"reindex", &c.Reindex},
		{"auth", &c.Auth},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CorpusConfig locates the two corpora and the files taken from them.
type CorpusConfig struct {
	DocsPath     string   `yaml:"docs_path"`
	CodePath     string   `yaml:"code_path"`
	DocExts      []string `yaml:"doc_exts"`
	SourceExt    string   `yaml:"source_ext"`
	ManifestName string   `yaml:"manifest_name"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DocsPath, validation.Required),
		validation.Field(&c.CodePath, validation.Required),
		validation.Field(&c.DocExts, validation.Required),
		validation.Field(&c.SourceExt, validation.Required),
		validation.Field(&c.ManifestName, validation.Required),
	)
}

// IndexConfig holds the vector store location.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ChunkingConfig holds the chunk size limits, in characters.
type ChunkingConfig struct {
	MinChars        int `yaml:"min_chars"`
	MaxSection      int `yaml:"max_section"`
	MaxSubsection   int `yaml:"max_subsection"`
	ParagraphTarget int `yaml:"paragraph_target"`
}

// Validate validates the chunking configuration.
func (c *ChunkingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinChars, validation.Min(0)),
		validation.Field(&c.MaxSection, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxSubsection, validation.Required, validation.Min(1)),
		validation.Field(&c.ParagraphTarget, validation.Required, validation.Min(1)),
	)
}

// Chunker builds a chunker from the limits.
func (c *ChunkingConfig) Chunker() *chunker.Chunker {
	return chunker.New(
		chunker.WithMinChars(c.MinChars),
		chunker.WithMaxSection(c.MaxSection),
		chunker.WithMaxSubsection(c.MaxSubsection),
		chunker.WithParagraphTarget(c.ParagraphTarget),
	)
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Dimensions        int     `yaml:"dimensions"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(embedding.ProviderHash, embedding.ProviderOpenAI, embedding.ProviderOllama)),
		validation.Field(&c.Dimensions, validation.Min(0)),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
	)
}

// ProviderConfig converts the section into a provider config.
func (c *EmbeddingConfig) ProviderConfig() embedding.Config {
	return embedding.Config{
		Provider:          c.Provider,
		Model:             c.Model,
		Dimensions:        c.Dimensions,
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey,
		RequestsPerSecond: c.RequestsPerSecond,
	}
}

// GenerationConfig selects the language model. An empty provider disables
// answer generation; retrieval and prompt assembly keep working.
type GenerationConfig struct {
	Provider      string `yaml:"provider"`
	Model         string `yaml:"model"`
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	MaxTokens     int    `yaml:"max_tokens"`
	SystemMessage string `yaml:"system_message"`
}

// Validate validates the generation configuration.
func (c *GenerationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(
			generation.ProviderGemini, generation.ProviderAnthropic,
			generation.ProviderOpenAI, generation.ProviderOllama)),
		validation.Field(&c.MaxTokens, validation.Min(0)),
	)
}

// Enabled reports whether a generator should be built.
func (c *GenerationConfig) Enabled() bool {
	return c.Provider != ""
}

// ProviderConfig converts the section into a provider config.
func (c *GenerationConfig) ProviderConfig() generation.Config {
	return generation.Config{
		Provider:  c.Provider,
		Model:     c.Model,
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		MaxTokens: c.MaxTokens,
	}
}

// RetrievalConfig holds the default result counts.
type RetrievalConfig struct {
	CodeK int `yaml:"code_k"`
	DocsK int `yaml:"docs_k"`
}

// Validate validates the retrieval configuration.
func (c *RetrievalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CodeK, validation.Required, validation.Min(retrieval.MinK), validation.Max(retrieval.MaxK)),
		validation.Field(&c.DocsK, validation.Required, validation.Min(retrieval.MinK), validation.Max(retrieval.MaxK)),
	)
}

// ReindexConfig controls the automatic reindex triggers. An empty schedule
// disables the cron trigger.
type ReindexConfig struct {
	Schedule string        `yaml:"schedule"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the reindex configuration.
func (c *ReindexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Schedule, validation.By(func(any) error {
			if c.Schedule == "" {
				return nil
			}
			if _, err := cron.ParseStandard(c.Schedule); err != nil {
				return errors.New("must be a standard cron expression")
			}
			return nil
		})),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Corpus: CorpusConfig{
			DocsPath:     "./data/clarity-docs",
			CodePath:     "./data/clarity-code",
			DocExts:      slices.Clone(ingest.DefaultDocExts),
			SourceExt:    ingest.DefaultSourceExt,
			ManifestName: ingest.DefaultManifestName,
		},
		Index: IndexConfig{
			Path: "./data/index",
		},
		Chunking: ChunkingConfig{
			MinChars:        chunker.DefaultMinChars,
			MaxSection:      chunker.DefaultMaxSection,
			MaxSubsection:   chunker.DefaultMaxSubsection,
			ParagraphTarget: chunker.DefaultParagraphTarget,
		},
		Embedding: EmbeddingConfig{
			Provider: embedding.ProviderHash,
		},
		Retrieval: RetrievalConfig{
			CodeK: retrieval.DefaultCodeK,
			DocsK: retrieval.DefaultDocsK,
		},
		Reindex: ReindexConfig{
			Debounce: ingest.DefaultDebounce,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
