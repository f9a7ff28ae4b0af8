package schemas

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed phases/*.schema.json
var phaseFS embed.FS

var (
	cache   = make(map[string]*Schema)
	cacheMu sync.RWMutex
)

const phaseSuffix = ".schema.json"

// Load returns the compiled output schema for the named task.
func Load(task string) (*Schema, error) {
	cacheMu.RLock()
	if s, ok := cache[task]; ok {
		cacheMu.RUnlock()
		return s, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()

	if s, ok := cache[task]; ok {
		return s, nil
	}

	name := path.Join("phases", task+phaseSuffix)
	raw, err := phaseFS.ReadFile(name)
	if err != nil {
		return nil, &SchemaLoadError{Path: name, Message: fmt.Sprintf("no schema for task %q", task), Cause: err}
	}
	s, err := Compile(task, raw)
	if err != nil {
		return nil, err
	}
	cache[task] = s
	return s, nil
}

// MustLoad is Load for package-level pipeline definitions.
func MustLoad(task string) *Schema {
	s, err := Load(task)
	if err != nil {
		panic(err)
	}
	return s
}

// Names lists the tasks that have an embedded schema.
func Names() []string {
	entries, err := fs.ReadDir(phaseFS, "phases")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), phaseSuffix) {
			names = append(names, strings.TrimSuffix(e.Name(), phaseSuffix))
		}
	}
	sort.Strings(names)
	return names
}
