package discover

import (
	"embed"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/david/fundscout/internal/ai"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// State tracks where an agent is in its run.
type State string

const (
	StateIdle           State = "idle"
	StateBrowserStarted State = "browser_started"
	StateSearching      State = "searching"
	StateExtracting     State = "extracting"
	StateBrowserStopped State = "browser_stopped"
	StateCompleted      State = "completed"
	StateFatalError     State = "fatal_error"
)

// Strategy names how a source is harvested.
const (
	StrategyBrowser      = "browser"        // vision agent over a rendered page
	StrategyGrantsGovAPI = "api_grants_gov" // documented API, zero model cost
)

// SourceConfig defines a single discovery source.
type SourceConfig struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	Domain          string   `yaml:"domain"` // dedup key half: (domain, source_id)
	Strategy        string   `yaml:"strategy"`
	SeedURL         string   `yaml:"seed_url,omitempty"`
	Keywords        []string `yaml:"keywords,omitempty"` // defaults when no profile drives the run
	KeywordDelaySec int      `yaml:"keyword_delay_sec,omitempty"`
	MaxRetries      int      `yaml:"max_retries,omitempty"`
	Active          bool     `yaml:"active"`
}

// Registry holds the configuration for all discovery sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadRegistry reads the embedded sources.yaml, falling back to the given
// path for local development. Environment references like ${API_KEY} are
// expanded.
func LoadRegistry(path string) (*Registry, error) {
	data, err := sourcesYAML.ReadFile("config/sources.yaml")
	if err != nil {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// Get returns the source with the given id, or nil.
func (r *Registry) Get(id string) *SourceConfig {
	for i := range r.Sources {
		if r.Sources[i].ID == id {
			return &r.Sources[i]
		}
	}
	return nil
}

// RunSummary is the structured result every discovery/scoring run returns,
// even under partial failure. It is never replaced by a bare error.
type RunSummary struct {
	Source       string          `json:"source"`
	State        State           `json:"state"`
	Found        int             `json:"found"`
	Filtered     int             `json:"filtered"`
	Scored       int             `json:"scored"`
	Saved        int             `json:"saved"`
	Errored      int             `json:"errored"`
	FailedPasses []string        `json:"failed_passes,omitempty"` // keywords whose pass was skipped
	Cost         ai.CostSnapshot `json:"cost"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  time.Time       `json:"completed_at"`
}
