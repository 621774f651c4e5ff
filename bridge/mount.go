package bridge

import (
	"html/template"
	"strings"
	"sync"
)

var _ MountTarget = (*HTMLMount)(nil)

// HTMLMount collects rendered fragments for inclusion in a page.
type HTMLMount struct {
	fragments []template.HTML
	lock      sync.RWMutex
}

func NewHTMLMount() *HTMLMount {
	return &HTMLMount{}
}

func (m *HTMLMount) Clear() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.fragments = nil
}

func (m *HTMLMount) Append(fragment template.HTML) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.fragments = append(m.fragments, fragment)
}

// Len returns the number of rendered fragments.
func (m *HTMLMount) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.fragments)
}

// HTML joins the fragments for template output.
func (m *HTMLMount) HTML() template.HTML {
	m.lock.RLock()
	defer m.lock.RUnlock()
	var sb strings.Builder
	for _, f := range m.fragments {
		sb.WriteString(string(f))
	}
	return template.HTML(sb.String())
}
