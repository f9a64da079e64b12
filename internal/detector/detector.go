package detector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bassemshaker/phpsrv/internal/manifest"
	"github.com/bassemshaker/phpsrv/internal/types"
)

// Classify returns the framework category of the project at dir.
// It only fails when the root itself cannot be listed.
func Classify(dir string) (types.Framework, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return types.FrameworkUnknown, fmt.Errorf("reading project root %s: %w", dir, err)
	}

	// Missing or malformed manifests carry no signal; m stays nil
	m, _ := manifest.Read(dir)

	p := &probe{root: dir, manifest: m}
	for _, rs := range rules {
		if rs.match(p) {
			return rs.Framework, nil
		}
	}

	if hasPHPFile(dir, entries) {
		return types.FrameworkPlain, nil
	}
	return types.FrameworkUnknown, nil
}

// Explain returns the predicates that matched for fw at dir, in rule order
func Explain(dir string, fw types.Framework) []string {
	m, _ := manifest.Read(dir)
	p := &probe{root: dir, manifest: m}

	var matched []string
	for _, rs := range rules {
		if rs.Framework != fw {
			continue
		}
		for _, pred := range rs.Predicates {
			if pred.match(p) {
				matched = append(matched, pred.String())
			}
		}
	}
	return matched
}

// Result is the outcome of classifying one directory
type Result struct {
	Dir       string
	Framework types.Framework
	Err       error
}

// ClassifyAll classifies multiple directories in parallel.
// Results are returned in the order of dirs.
func ClassifyAll(dirs []string) []Result {
	results := make([]Result, len(dirs))
	var wg sync.WaitGroup

	for i, dir := range dirs {
		wg.Add(1)
		go func(i int, d string) {
			defer wg.Done()
			fw, err := Classify(d)
			results[i] = Result{Dir: d, Framework: fw, Err: err}
		}(i, dir)
	}

	wg.Wait()
	return results
}

// hasPHPFile reports whether a regular .php file, or a symlink to one, sits
// directly in dir
func hasPHPFile(dir string, entries []os.DirEntry) bool {
	for _, e := range entries {
		if !strings.EqualFold(filepath.Ext(e.Name()), ".php") {
			continue
		}
		switch mode := e.Type(); {
		case mode.IsRegular():
			return true
		case mode&os.ModeSymlink != 0:
			info, err := os.Stat(filepath.Join(dir, e.Name()))
			if err == nil && info.Mode().IsRegular() {
				return true
			}
		}
	}
	return false
}
