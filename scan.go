package instancemap

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jward/instancemap/internal/refparse"
)

// Dependency is one require call found while scanning the tree.
type Dependency struct {
	// From is the virtual path of the requiring module.
	From string `json:"from"`
	// To is the resolved module identity, empty when unresolved.
	To         string `json:"to,omitempty"`
	Optional   bool   `json:"optional,omitempty"`
	Expression string `json:"expression"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
}

// Resolved reports whether the require resolved to a module.
func (d Dependency) Resolved() bool {
	return d.To != ""
}

// scanItem is one module handed to a scan worker.
type scanItem struct {
	virtualPath string
	realPath    string
}

// ScanDependencies loads every Luau module in the current tree, extracts
// its require calls and resolves them. Modules are parsed by a worker pool,
// one parser per worker; results are sorted by module and position.
//
// A module whose source cannot be loaded contributes no dependencies.
func (e *Engine) ScanDependencies(ctx context.Context) ([]Dependency, error) {
	ix := e.index()
	resolver := e.resolver(ix)
	loader := e.loader(ix)

	var items []scanItem
	for _, vp := range ix.VirtualPaths() {
		realPath, ok := ix.ResolveToRealPath(vp)
		if !ok || !refparse.IsSourceFile(realPath) {
			continue
		}
		items = append(items, scanItem{virtualPath: vp, realPath: realPath})
	}
	if len(items) == 0 {
		return nil, nil
	}

	numWorkers := min(e.workers, len(items))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan scanItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item scanItem
		deps []Dependency
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Tree-sitter parsers are not goroutine-safe.
			parser := refparse.NewParser()
			defer parser.Close()
			for item := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- result{item: item, err: err}
					continue
				}
				src, ok := loader.Load(item.virtualPath)
				if !ok {
					resultCh <- result{item: item}
					continue
				}
				reqs, err := parser.Requires(ctx, []byte(src.Text))
				if err != nil {
					resultCh <- result{item: item, err: err}
					continue
				}
				deps := make([]Dependency, 0, len(reqs))
				for _, r := range reqs {
					d := Dependency{
						From:       item.virtualPath,
						Expression: r.Text,
						Line:       r.Line,
						Column:     r.Column,
					}
					if to, ok := resolver.ResolveChain(item.virtualPath, r.Expr); ok {
						d.To = to.Name
						d.Optional = to.Optional
					}
					deps = append(deps, d)
				}
				resultCh <- result{item: item, deps: deps}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var all []Dependency
	var errs []error
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", res.item.realPath, res.err))
			continue
		}
		all = append(all, res.deps...)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("instancemap: dependency scan had %d error(s): %w", len(errs), errs[0])
	}

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return all, nil
}
