package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/khayami66/study-support-bot/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Replies holds every fixed text the bot sends.
type Replies struct {
	NoMatch       string `yaml:"no_match"`
	Unavailable   string `yaml:"unavailable"`
	NotConfigured string `yaml:"not_configured"`
	RecordFailed  string `yaml:"record_failed"`
	InternalError string `yaml:"internal_error"`
	// Total contains a {total} placeholder.
	Total         string `yaml:"total"`
	HistoryHeader string `yaml:"history_header"`
	HistoryEmpty  string `yaml:"history_empty"`
}

// Catalog is the static content loaded at startup: point rules, milestone messages and replies.
type Catalog struct {
	Rules      []model.PointRule `yaml:"rules"`
	Milestones map[int][]string  `yaml:"milestones"`
	Replies    Replies           `yaml:"replies"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := parseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// LoadCatalog reads the catalog at path on top of the built-in one.
// Sections missing from the file keep their defaults; an empty path returns the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	override, err := parseCatalog(data)
	if err != nil {
		return nil, err
	}
	if override.Rules != nil {
		c.Rules = override.Rules
	}
	if override.Milestones != nil {
		c.Milestones = override.Milestones
	}
	mergeReplies(&c.Replies, override.Replies)
	return c, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, r := range c.Rules {
		if r.Keyword == "" || r.Points <= 0 {
			return nil, fmt.Errorf("parse catalog: rule %d: keyword and positive points are required", i)
		}
	}
	return &c, nil
}

func mergeReplies(dst *Replies, src Replies) {
	set := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	set(&dst.NoMatch, src.NoMatch)
	set(&dst.Unavailable, src.Unavailable)
	set(&dst.NotConfigured, src.NotConfigured)
	set(&dst.RecordFailed, src.RecordFailed)
	set(&dst.InternalError, src.InternalError)
	set(&dst.Total, src.Total)
	set(&dst.HistoryHeader, src.HistoryHeader)
	set(&dst.HistoryEmpty, src.HistoryEmpty)
}
