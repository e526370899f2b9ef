// Package config loads the YAML configuration of a graphsource deployment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	normalize "github.com/hanpama/graphsource/internal/normalize"
	querygen "github.com/hanpama/graphsource/internal/querygen"
)

// TokenEnv overrides the configured API token when set.
const TokenEnv = "GRAPHSOURCE_TOKEN"

// MemoryStore selects the in-memory record store.
const MemoryStore = "memory"

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("config: invalid")

// Config is the file format.
type Config struct {
	APIURL          string            `yaml:"apiURL"`
	CollectionTypes []string          `yaml:"collectionTypes"`
	SingleTypes     []string          `yaml:"singleTypes"`
	Locale          []string          `yaml:"locale"`
	Preview         bool              `yaml:"preview"`
	Headers         map[string]string `yaml:"headers"`
	Token           string            `yaml:"token"`

	// Cache enables incremental runs; nil means enabled.
	Cache        *bool        `yaml:"cache"`
	Download     Download     `yaml:"download"`
	InlineImages InlineImages `yaml:"inlineImages"`

	Store     string `yaml:"store"`
	CacheFile string `yaml:"cacheFile"`
	AssetsDir string `yaml:"assetsDir"`
	Owner     string `yaml:"owner"`
}

type InlineImages struct {
	TypesToParse map[string][]string `yaml:"typesToParse"`
}

// Download is either a boolean or a list of file extensions.
type Download struct {
	normalize.DownloadPolicy
}

func (d *Download) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			d.DownloadPolicy = normalize.DownloadAll()
			return nil
		}
		var on bool
		if err := n.Decode(&on); err != nil {
			return fmt.Errorf("download: %w", err)
		}
		if on {
			d.DownloadPolicy = normalize.DownloadAll()
		} else {
			d.DownloadPolicy = normalize.DownloadNone()
		}
		return nil
	case yaml.SequenceNode:
		var exts []string
		if err := n.Decode(&exts); err != nil {
			return fmt.Errorf("download: %w", err)
		}
		for i, e := range exts {
			exts[i] = strings.TrimPrefix(strings.ToLower(e), ".")
		}
		d.DownloadPolicy = normalize.DownloadExtensions(exts...)
		return nil
	}
	return fmt.Errorf("download: expected a boolean or a list of extensions at line %d", n.Line)
}

// Load reads, normalizes and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a configuration document. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) normalize() {
	if tok := os.Getenv(TokenEnv); tok != "" {
		c.Token = tok
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.CollectionTypes = formatNames(append([]string{querygen.UploadFileType}, c.CollectionTypes...))
	c.SingleTypes = formatNames(c.SingleTypes)
	if c.Owner == "" {
		c.Owner = "graphsource"
	}
	if c.Store == "" {
		c.Store = MemoryStore
	}
}

// Validate reports every problem with c, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, errors.New("apiURL is required"))
	} else if u, err := url.Parse(c.APIURL); err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("apiURL %q must be an absolute http(s) URL", c.APIURL))
	}
	for name := range c.InlineImages.TypesToParse {
		if !slices.Contains(c.CollectionTypes, name) && !slices.Contains(c.SingleTypes, name) {
			errs = append(errs, fmt.Errorf("inlineImages.typesToParse: %q is not a configured type", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// CacheEnabled reports whether incremental runs are enabled.
func (c *Config) CacheEnabled() bool { return c.Cache == nil || *c.Cache }

var (
	caseBoundaryRe = regexp.MustCompile(`([a-z])([A-Z])`)
	wordRe         = regexp.MustCompile(`\w+`)
	nonWordRe      = regexp.MustCompile(`\W+`)
)

// FormatName turns a configured type name into its schema type name: the first
// lower-to-upper boundary splits words, every word is title-cased, and non-word
// characters are removed. "blog-post" and "blogPost" both become "BlogPost".
func FormatName(name string) string {
	if name == "" {
		return ""
	}
	caser := cases.Title(language.Und)
	if loc := caseBoundaryRe.FindStringSubmatchIndex(name); loc != nil {
		name = name[:loc[3]] + " " + name[loc[4]:]
	}
	name = wordRe.ReplaceAllStringFunc(name, caser.String)
	return nonWordRe.ReplaceAllString(name, "")
}

func formatNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if f := FormatName(n); f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
