// Package mcp_kusto_test checks the shape of the tree as a whole.
//
// Every package under pkg/ must be reachable from the server binary, and
// every interface with a no-op implementation (catalog.NoopStore for
// cache.backend none) must also have a real one. The audit migrations are
// checked next to their embedded FS in pkg/database/migrate.
package mcp_kusto_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/txn2/mcp-kusto"

// sourceFiles parses the non-test Go files under each dir, keyed by the
// import path of the package they belong to.
func sourceFiles(t *testing.T, root string, dirs ...string) map[string][]*ast.File {
	t.Helper()
	fset := token.NewFileSet()
	out := map[string][]*ast.File{}
	for _, dir := range dirs {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			f, err := parser.ParseFile(fset, path, nil, parser.SkipObjectResolution)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, filepath.Dir(path))
			if err != nil {
				return err
			}
			pkg := modulePath + "/" + filepath.ToSlash(rel)
			out[pkg] = append(out[pkg], f)
			return nil
		})
		require.NoError(t, err, "parsing %s", dir)
	}
	return out
}

// testOnly reports whether pkg holds fakes for other packages' tests,
// like pkg/kusto/kustotest. Nothing in the binary imports those.
func testOnly(pkg string) bool {
	return strings.HasSuffix(pkg, "test")
}

func TestPackagesAreWired(t *testing.T) {
	root, err := filepath.Abs(".")
	require.NoError(t, err)

	libs := sourceFiles(t, root, "pkg")
	require.NotEmpty(t, libs)

	imported := map[string]bool{}
	for _, files := range sourceFiles(t, root, "pkg", "cmd", "internal") {
		for _, f := range files {
			for _, spec := range f.Imports {
				path, err := strconv.Unquote(spec.Path.Value)
				require.NoError(t, err)
				imported[path] = true
			}
		}
	}

	for pkg := range libs {
		if testOnly(pkg) {
			continue
		}
		assert.True(t, imported[pkg],
			"%s is not imported by any non-test code; wire it into the server or remove it", pkg)
	}
}

// assertion is one `var _ Iface = impl` line.
type assertion struct {
	iface string
	impl  string
}

// complianceAssertions finds `var _ I = (*T)(nil)` and `var _ I = T{}`.
// Interface names lose their package qualifier so catalog.Store and Store
// group together.
func complianceAssertions(f *ast.File) []assertion {
	var out []assertion
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok || vs.Type == nil || len(vs.Names) != 1 || vs.Names[0].Name != "_" || len(vs.Values) != 1 {
				continue
			}
			impl := implName(vs.Values[0])
			if impl == "" {
				continue
			}
			out = append(out, assertion{iface: typeName(vs.Type), impl: impl})
		}
	}
	return out
}

func implName(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.CompositeLit:
		return typeName(v.Type)
	case *ast.CallExpr:
		if paren, ok := v.Fun.(*ast.ParenExpr); ok {
			if star, ok := paren.X.(*ast.StarExpr); ok {
				return typeName(star.X)
			}
		}
	}
	return ""
}

func typeName(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.Ident:
		return v.Name
	case *ast.SelectorExpr:
		return v.Sel.Name
	}
	return ""
}

func TestNoopsHaveRealImplementations(t *testing.T) {
	root, err := filepath.Abs(".")
	require.NoError(t, err)

	impls := map[string][]string{}
	for _, files := range sourceFiles(t, root, "pkg") {
		for _, f := range files {
			for _, a := range complianceAssertions(f) {
				impls[a.iface] = append(impls[a.iface], a.impl)
			}
		}
	}
	require.Contains(t, impls, "Store", "catalog stores assert their interface")

	for iface, names := range impls {
		var noop, backed int
		for _, n := range names {
			if strings.Contains(strings.ToLower(n), "noop") {
				noop++
			} else {
				backed++
			}
		}
		if noop > 0 {
			assert.Positive(t, backed,
				"%s is implemented only by %v; a no-op must stand in for a real backend, not replace it", iface, names)
		}
	}
}
