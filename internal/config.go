package internal

import (
	"fmt"
	"log/slog"
	"path"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/storybundle/internal/bundle"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Content ContentConfig     `yaml:"content"`
	Layout  LayoutConfig      `yaml:"layout"`
	Bundle  BundleConfig      `yaml:"bundle"`
	IIIF    IIIFConfig        `yaml:"iiif"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Content, &c.Layout, &c.Bundle, &c.IIIF, &c.SQLite, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
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

// ContentConfig locates the content tree and the public site.
type ContentConfig struct {
	Root string `yaml:"root"`
	// BaseURL prefixes every derived IIIF URL.
	BaseURL string `yaml:"base_url"`
	// Languages restricts and orders the languages built; empty builds every
	// language directory of a version.
	Languages []string `yaml:"languages"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Languages, validation.Each(validation.Required)),
	)
}

// LayoutConfig names the tables and directories of the content tree. Paths
// are relative to the content root, or to the language directory for the
// per-language entries.
type LayoutConfig struct {
	DemosDir      string `yaml:"demos_dir"`
	IIIFDir       string `yaml:"iiif_dir"`
	RegistryTable string `yaml:"registry_table"` // inside IIIFDir
	ObjectsDir    string `yaml:"objects_dir"`    // inside IIIFDir

	ProjectTable  string `yaml:"project_table"`
	ObjectTable   string `yaml:"object_table"`
	GlossaryTable string `yaml:"glossary_table"`
	GlossaryDir   string `yaml:"glossary_dir"`
	StoriesDir    string `yaml:"stories_dir"`
	BundleFile    string `yaml:"bundle_file"`
}

// Validate validates the layout configuration. GlossaryTable may be empty to
// read glossary documents only.
func (c *LayoutConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DemosDir, validation.Required),
		validation.Field(&c.IIIFDir, validation.Required),
		validation.Field(&c.RegistryTable, validation.Required),
		validation.Field(&c.ObjectsDir, validation.Required),
		validation.Field(&c.ProjectTable, validation.Required),
		validation.Field(&c.ObjectTable, validation.Required),
		validation.Field(&c.GlossaryDir, validation.Required),
		validation.Field(&c.StoriesDir, validation.Required),
		validation.Field(&c.BundleFile, validation.Required),
	)
}

// BundleLayout returns the per-language layout used by the assembler.
func (c *LayoutConfig) BundleLayout() bundle.Layout {
	return bundle.Layout{
		ProjectTable:  c.ProjectTable,
		ObjectTable:   c.ObjectTable,
		GlossaryTable: c.GlossaryTable,
		GlossaryDir:   c.GlossaryDir,
		StoriesDir:    c.StoriesDir,
		BundleFile:    c.BundleFile,
	}
}

// RegistryPath is the registry table relative to the content root.
func (c *LayoutConfig) RegistryPath() string { return path.Join(c.IIIFDir, c.RegistryTable) }

// ObjectsPath is the tile output directory relative to the content root.
func (c *LayoutConfig) ObjectsPath() string { return path.Join(c.IIIFDir, c.ObjectsDir) }

// BundleConfig holds the provenance written to every bundle's _meta.
type BundleConfig struct {
	Format      string `yaml:"format"`
	Generator   string `yaml:"generator"`
	Source      string `yaml:"source"`
	Description string `yaml:"description"`
	License     string `yaml:"license"`
	// Parallel assembles languages concurrently; output is identical.
	Parallel bool `yaml:"parallel"`
}

// Validate validates the bundle configuration.
func (c *BundleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.Required),
		validation.Field(&c.Generator, validation.Required),
		validation.Field(&c.Source, is.URL),
	)
}

// IIIFConfig holds tile generation and manifest validation settings.
type IIIFConfig struct {
	TileSize int    `yaml:"tile_size"`
	VipsPath string `yaml:"vips_path"`
	// SchemaPath replaces the embedded Presentation 3 schema when set.
	SchemaPath     string `yaml:"schema_path"`
	SkipValidation bool   `yaml:"skip_validation"`
	Force          bool   `yaml:"force"`
}

// Validate validates the IIIF configuration.
func (c *IIIFConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TileSize, validation.Required, validation.Min(64), validation.Max(4096)),
		validation.Field(&c.VipsPath, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the serve API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled".
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	l := bundle.DefaultLayout()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Root:      ".",
			BaseURL:   "http://localhost:8080",
			Languages: []string{"en", "es"},
		},
		Layout: LayoutConfig{
			DemosDir:      "demos",
			IIIFDir:       "iiif",
			RegistryTable: "objects.csv",
			ObjectsDir:    "objects",
			ProjectTable:  l.ProjectTable,
			ObjectTable:   l.ObjectTable,
			GlossaryTable: l.GlossaryTable,
			GlossaryDir:   l.GlossaryDir,
			StoriesDir:    l.StoriesDir,
			BundleFile:    l.BundleFile,
		},
		Bundle: BundleConfig{
			Format:    "0.1",
			Generator: "storybundle",
		},
		IIIF: IIIFConfig{
			TileSize: 512,
			VipsPath: "vips",
		},
		SQLite: SQLiteConfig{
			Path: "./storybundle.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
