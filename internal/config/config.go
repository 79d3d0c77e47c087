// Package config loads the pipeline configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves a field unset.
const (
	DefaultMaxResults = 10
	DefaultPapersDir  = "papers"
	DefaultCachePath  = "papers/summaries.db"
	DefaultChatModel  = "qwen-long"
	DefaultChatURL    = "https://dashscope.aliyuncs.com/compatible-mode/v1"
)

// Topic is one keyword grouping under which papers are collected and
// reported separately. Topic order follows the config document and
// determines section order in rendered output.
type Topic struct {
	Name    string
	Filters []string
}

// Query builds the search query for a topic: multi-word filters are
// quoted, filters are joined with OR.
func (t Topic) Query() string {
	parts := make([]string, 0, len(t.Filters))
	for _, f := range t.Filters {
		if len(strings.Fields(f)) > 1 {
			parts = append(parts, `"`+f+`"`)
		} else {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " OR ")
}

// Output pairs one persisted JSON store with its rendered markdown file.
type Output struct {
	Enabled  bool
	JSONPath string
	MDPath   string
}

// Config is the full pipeline configuration.
type Config struct {
	UserName   string // GitHub user for badge links
	RepoName   string // GitHub repo for badge links
	MaxResults int
	ShowBadge  bool
	Topics     []Topic

	Readme  Output
	Gitpage Output
	Wechat  Output

	PapersDir string // where downloaded PDFs land
	CachePath string // SQLite summary cache
	ChatModel string
	ChatURL   string
}

// rawConfig mirrors the YAML document. Keywords is kept as a node so
// topic order survives decoding.
type rawConfig struct {
	UserName       string    `yaml:"user_name"`
	RepoName       string    `yaml:"repo_name"`
	MaxResults     int       `yaml:"max_results"`
	ShowBadge      bool      `yaml:"show_badge"`
	Keywords       yaml.Node `yaml:"keywords"`
	PublishReadme  bool      `yaml:"publish_readme"`
	PublishGitpage bool      `yaml:"publish_gitpage"`
	PublishWechat  bool      `yaml:"publish_wechat"`
	JSONReadme     string    `yaml:"json_readme_path"`
	MDReadme       string    `yaml:"md_readme_path"`
	JSONGitpage    string    `yaml:"json_gitpage_path"`
	MDGitpage      string    `yaml:"md_gitpage_path"`
	JSONWechat     string    `yaml:"json_wechat_path"`
	MDWechat       string    `yaml:"md_wechat_path"`
	PapersDir      string    `yaml:"papers_dir"`
	CachePath      string    `yaml:"summary_cache_path"`
	ChatModel      string    `yaml:"summary_model"`
	ChatURL        string    `yaml:"summary_base_url"`
}

type topicFilters struct {
	Filters []string `yaml:"filters"`
}

// Load reads and validates the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	topics, err := decodeTopics(&raw.Keywords)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("%s must define at least one keywords entry", path)
	}

	cfg := &Config{
		UserName:   raw.UserName,
		RepoName:   raw.RepoName,
		MaxResults: raw.MaxResults,
		ShowBadge:  raw.ShowBadge,
		Topics:     topics,
		Readme:     Output{Enabled: raw.PublishReadme, JSONPath: raw.JSONReadme, MDPath: raw.MDReadme},
		Gitpage:    Output{Enabled: raw.PublishGitpage, JSONPath: raw.JSONGitpage, MDPath: raw.MDGitpage},
		Wechat:     Output{Enabled: raw.PublishWechat, JSONPath: raw.JSONWechat, MDPath: raw.MDWechat},
		PapersDir:  raw.PapersDir,
		CachePath:  raw.CachePath,
		ChatModel:  raw.ChatModel,
		ChatURL:    raw.ChatURL,
	}

	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.PapersDir == "" {
		cfg.PapersDir = DefaultPapersDir
	}
	if cfg.CachePath == "" {
		cfg.CachePath = DefaultCachePath
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.ChatURL == "" {
		cfg.ChatURL = DefaultChatURL
	}

	for _, out := range []struct {
		name string
		o    Output
	}{
		{"readme", cfg.Readme},
		{"gitpage", cfg.Gitpage},
		{"wechat", cfg.Wechat},
	} {
		if out.o.Enabled && (out.o.JSONPath == "" || out.o.MDPath == "") {
			return nil, fmt.Errorf("%s: publish_%s is enabled but its json/md paths are not set", path, out.name)
		}
	}

	return cfg, nil
}

// decodeTopics walks the keywords mapping node, preserving document order.
func decodeTopics(node *yaml.Node) ([]Topic, error) {
	if node.Kind == 0 || node.IsZero() {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("keywords must be a mapping of topic to filters")
	}

	var topics []Topic
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]

		var tf topicFilters
		if err := valNode.Decode(&tf); err != nil {
			return nil, fmt.Errorf("keywords entry %q: %w", keyNode.Value, err)
		}
		if len(tf.Filters) == 0 {
			return nil, fmt.Errorf("keywords entry %q has no filters", keyNode.Value)
		}
		topics = append(topics, Topic{Name: keyNode.Value, Filters: tf.Filters})
	}
	return topics, nil
}
