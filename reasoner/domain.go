package reasoner

import (
	"io"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/agenticsdlc/agenticsdlc/core"
)

// Domain scopes delivery work to an area such as frontend, backend or devops.
// Keywords drive detection from free-form task text; Priority breaks ties when
// several domains score equally.
type Domain struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Priority    int      `json:"priority" yaml:"priority"`
}

// MatchScore scores how strongly text matches the domain's keywords. An exact
// token match counts 2, a substring match counts 1.
func (d *Domain) MatchScore(text string) float64 {
	if len(d.Keywords) == 0 {
		return 0
	}

	lower := strings.ToLower(text)
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(lower) {
		tokens[tok] = struct{}{}
	}

	score := 0.0
	for _, kw := range d.Keywords {
		kwLower := strings.ToLower(kw)
		if _, ok := tokens[kwLower]; ok {
			score += 2
		} else if strings.Contains(lower, kwLower) {
			score++
		}
	}
	return score
}

// DomainDetectionResult is the outcome of classifying a task into a domain.
// Domain is nil when no keywords matched.
type DomainDetectionResult struct {
	Domain       *Domain   `json:"domain"`
	Confidence   float64   `json:"confidence"`
	Reasoning    string    `json:"reasoning"`
	Alternatives []*Domain `json:"alternatives,omitempty"`
}

// DomainRegistry indexes domains by name and detects the best matches for a
// task text. A new registry carries built-in defaults covering the common
// delivery areas; Register adds to or replaces them. Safe for concurrent use.
type DomainRegistry struct {
	mu      sync.RWMutex
	domains map[string]*Domain
}

// NewDomainRegistry constructs a registry pre-loaded with the default domains.
func NewDomainRegistry() *DomainRegistry {
	r := &DomainRegistry{domains: make(map[string]*Domain)}
	for _, d := range defaultDomains() {
		r.domains[d.Name] = d
	}
	return r
}

// Register adds d to the registry, replacing any domain with the same name.
func (r *DomainRegistry) Register(d *Domain) error {
	if d == nil {
		return core.NewValidationError("domain must be non-nil")
	}
	if d.Name == "" {
		return core.NewValidationError("domain name must be non-empty").
			WithContext("field", "name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domains[d.Name] = d
	return nil
}

// Unregister removes a domain by name, reporting whether it was present.
func (r *DomainRegistry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.domains[name]; !ok {
		return false
	}
	delete(r.domains, name)
	return true
}

// Get returns a domain by exact name.
func (r *DomainRegistry) Get(name string) (*Domain, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.domains[name]
	return d, ok
}

// Names returns all registered domain names sorted alphabetically.
func (r *DomainRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.domains))
	for name := range r.domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered domains.
func (r *DomainRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.domains)
}

// Detect returns up to topK domains matching the text, best first. Domains
// scoring zero are excluded; a higher Priority wins ties via a small bonus.
func (r *DomainRegistry) Detect(text string, topK int) []*Domain {
	if text == "" || topK <= 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		domain *Domain
		score  float64
	}
	var candidates []scored
	for _, d := range r.domains {
		score := d.MatchScore(text)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, scored{domain: d, score: score + float64(d.Priority)*0.1})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].domain.Name < candidates[b].domain.Name
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	out := make([]*Domain, topK)
	for i := range out {
		out[i] = candidates[i].domain
	}
	return out
}

// domainFile is the YAML document shape accepted by LoadYAML.
type domainFile struct {
	Domains []*Domain `yaml:"domains"`
}

// LoadYAML registers domains from a YAML document of the form:
//
//	domains:
//	  - name: embedded
//	    keywords: [firmware, rtos, microcontroller]
//	    priority: 3
//
// It returns the number of domains registered.
func (r *DomainRegistry) LoadYAML(src io.Reader) (int, error) {
	var file domainFile
	if err := yaml.NewDecoder(src).Decode(&file); err != nil {
		return 0, core.NewValidationError("failed to parse domain configuration").Wrap(err)
	}

	count := 0
	for _, d := range file.Domains {
		if err := r.Register(d); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func defaultDomains() []*Domain {
	return []*Domain{
		{
			Name:        "frontend",
			Description: "Frontend web development",
			Keywords: []string{
				"react", "vue", "angular", "svelte", "css", "html", "ui", "ux",
				"webapp", "frontend", "component", "page", "layout", "responsive",
				"typescript", "javascript", "dom", "browser",
			},
			Priority: 5,
		},
		{
			Name:        "backend",
			Description: "Backend server development",
			Keywords: []string{
				"api", "rest", "graphql", "server", "backend", "endpoint",
				"database", "sql", "orm", "migration", "auth", "microservice",
				"grpc", "websocket",
			},
			Priority: 5,
		},
		{
			Name:        "devops",
			Description: "DevOps and infrastructure",
			Keywords: []string{
				"devops", "ci", "cd", "docker", "kubernetes", "terraform",
				"cloud", "deploy", "pipeline", "infrastructure", "monitoring",
				"nginx", "helm",
			},
			Priority: 4,
		},
		{
			Name:        "mobile",
			Description: "Mobile app development",
			Keywords: []string{
				"mobile", "ios", "android", "flutter", "swift", "kotlin",
				"xcode", "gradle",
			},
			Priority: 4,
		},
		{
			Name:        "data",
			Description: "Data engineering and analytics",
			Keywords: []string{
				"data", "etl", "analytics", "warehouse", "spark", "airflow",
				"pandas", "jupyter", "bigquery",
			},
			Priority: 3,
		},
		{
			Name:        "testing",
			Description: "Testing and quality assurance",
			Keywords: []string{
				"test", "testing", "e2e", "coverage", "qa", "quality",
				"assertion", "mock", "fixture",
			},
			Priority: 4,
		},
		{
			Name:        "documentation",
			Description: "Documentation and technical writing",
			Keywords: []string{
				"document", "docs", "readme", "guide", "tutorial", "changelog",
				"wiki", "markdown",
			},
			Priority: 2,
		},
	}
}
