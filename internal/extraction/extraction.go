// Package extraction implements spec.md §4.15: the Extraction Manager, a
// registry of named extraction strategies with fallback ordering. Replaces
// the teacher's single hard-coded LLM call in internal/services/extract.go
// and internal/extract/extract.go with the registry-of-strategies shape
// spec.md §9's dynamic-dispatch design note calls for.
package extraction

import "context"

// Tag names a registered extraction strategy.
type Tag string

const (
	TagLLM              Tag = "LLM"
	TagCosineSimilarity Tag = "CosineSimilarity"
	TagRuleBased        Tag = "RuleBased"
	TagCustom           Tag = "Custom"
)

// Strategy is one extraction implementation.
type Strategy interface {
	Tag() Tag
	IsAvailable() bool
	Extract(ctx context.Context, extractionCtx Context) (Result, error)
}

// Context is the input to one strategy call (mirrors model.ExtractionContext).
type Context struct {
	HTML            string
	Markdown        string
	Text            string
	URL             string
	TaskDescription string
	EntityTypes     []string
}

// Entity is one structured item a strategy produced.
type Entity map[string]any

// Result is one strategy call's output.
type Result struct {
	Entities        []Entity
	Success         bool
	Confidence      *float64
	StrategyTag     Tag
	ExecutionTimeMs int64
	Error           string
	Metadata        map[string]any
}

const errAllFailed = "All extraction strategies failed"

// Manager is the registry of strategies plus the default-strategy
// promotion/demotion state machine spec.md §4.15 describes: adding the
// first strategy makes it default; removing the default promotes the next
// registered; removing the last clears the default.
type Manager struct {
	order    []Tag
	byTag    map[Tag]Strategy
	defaultT Tag
}

func NewManager() *Manager {
	return &Manager{byTag: make(map[Tag]Strategy)}
}

// Register adds s to the registry. If this is the first strategy
// registered, it becomes the default.
func (m *Manager) Register(s Strategy) {
	tag := s.Tag()
	if _, exists := m.byTag[tag]; !exists {
		m.order = append(m.order, tag)
	}
	m.byTag[tag] = s
	if m.defaultT == "" {
		m.defaultT = tag
	}
}

// Unregister removes tag. If it was the default, the next registered
// strategy (in registration order) is promoted; if it was the last
// strategy, the default is cleared.
func (m *Manager) Unregister(tag Tag) {
	if _, exists := m.byTag[tag]; !exists {
		return
	}
	delete(m.byTag, tag)
	for i, t := range m.order {
		if t == tag {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	if m.defaultT != tag {
		return
	}
	if len(m.order) == 0 {
		m.defaultT = ""
		return
	}
	m.defaultT = m.order[0]
}

// Default returns the current default strategy tag, or "" if none is
// registered.
func (m *Manager) Default() Tag {
	return m.defaultT
}

// Extract uses tag (or the default when tag is "") and returns that
// strategy's result directly, including its own success=false outcomes.
func (m *Manager) Extract(ctx context.Context, extractionCtx Context, tag Tag) (Result, error) {
	if tag == "" {
		tag = m.defaultT
	}
	strategy, ok := m.byTag[tag]
	if !ok {
		return Result{Success: false, Error: "extraction strategy not registered: " + string(tag)}, nil
	}
	if !strategy.IsAvailable() {
		return Result{Success: false, StrategyTag: tag, Error: "extraction strategy unavailable: " + string(tag)}, nil
	}
	return strategy.Extract(ctx, extractionCtx)
}

// ExtractWithFallback tries preferred tags in order, then any remaining
// registered strategies, returning the first success=true result. If none
// succeed, it returns a synthetic failure result.
func (m *Manager) ExtractWithFallback(ctx context.Context, extractionCtx Context, preferred []Tag) Result {
	tried := make(map[Tag]struct{})

	tryTag := func(tag Tag) (Result, bool) {
		if _, done := tried[tag]; done {
			return Result{}, false
		}
		tried[tag] = struct{}{}

		strategy, ok := m.byTag[tag]
		if !ok || !strategy.IsAvailable() {
			return Result{}, false
		}
		result, err := strategy.Extract(ctx, extractionCtx)
		if err != nil {
			return Result{Success: false, StrategyTag: tag, Error: err.Error()}, true
		}
		return result, true
	}

	for _, tag := range preferred {
		if result, attempted := tryTag(tag); attempted && result.Success {
			return result
		}
	}
	for _, tag := range m.order {
		if result, attempted := tryTag(tag); attempted && result.Success {
			return result
		}
	}

	return Result{Success: false, Error: errAllFailed}
}
