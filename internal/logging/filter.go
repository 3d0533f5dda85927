package logging

import (
	"context"
	"log/slog"
	"sync"
)

const componentKey = "component"

// levels is shared by a ComponentFilterHandler and every handler derived
// from it through WithAttrs/WithGroup, so SetLevel affects loggers that were
// already scoped.
type levels struct {
	mu       sync.RWMutex
	byName   map[string]slog.Level
	fallback slog.Level
}

func (l *levels) get(component string) slog.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if lvl, ok := l.byName[component]; ok {
		return lvl
	}
	return l.fallback
}

// ComponentFilterHandler filters records by a per-component minimum level.
// The component is read from the "component" attribute, either attached with
// logger.With or passed on the record itself. Records without a component
// use the default level.
type ComponentFilterHandler struct {
	next      slog.Handler
	levels    *levels
	component string
}

// NewComponentFilterHandler wraps next. next may be nil only when the
// handler is used for level bookkeeping.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	return &ComponentFilterHandler{
		next: next,
		levels: &levels{
			byName:   make(map[string]slog.Level),
			fallback: defaultLevel,
		},
	}
}

// SetLevel overrides the minimum level for one component.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	h.levels.mu.Lock()
	defer h.levels.mu.Unlock()
	h.levels.byName[component] = level
}

// ClearLevel removes a component override.
func (h *ComponentFilterHandler) ClearLevel(component string) {
	h.levels.mu.Lock()
	defer h.levels.mu.Unlock()
	delete(h.levels.byName, component)
}

// Level returns the effective minimum level for a component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	return h.levels.get(component)
}

// DefaultLevel returns the level used for components without an override.
func (h *ComponentFilterHandler) DefaultLevel() slog.Level {
	h.levels.mu.RLock()
	defer h.levels.mu.RUnlock()
	return h.levels.fallback
}

// SetDefaultLevel changes the level of components without an override.
func (h *ComponentFilterHandler) SetDefaultLevel(level slog.Level) {
	h.levels.mu.Lock()
	defer h.levels.mu.Unlock()
	h.levels.fallback = level
}

// Enabled cannot see record attributes, so it admits anything that some
// component could accept. Handle makes the final decision.
func (h *ComponentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h.component != "" {
		return level >= h.levels.get(h.component)
	}
	h.levels.mu.RLock()
	lowest := h.levels.fallback
	for _, lvl := range h.levels.byName {
		lowest = min(lowest, lvl)
	}
	h.levels.mu.RUnlock()
	return level >= lowest
}

func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	if component == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == componentKey {
				component = a.Value.String()
				return false
			}
			return true
		})
	}
	if r.Level < h.levels.get(component) {
		return nil
	}
	if h.next == nil {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == componentKey {
			component = a.Value.String()
		}
	}
	var next slog.Handler
	if h.next != nil {
		next = h.next.WithAttrs(attrs)
	}
	return &ComponentFilterHandler{next: next, levels: h.levels, component: component}
}

func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	var next slog.Handler
	if h.next != nil {
		next = h.next.WithGroup(name)
	}
	return &ComponentFilterHandler{next: next, levels: h.levels, component: h.component}
}
