package architecture_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHexagonalLayerImports(t *testing.T) {
	t.Parallel()
	fset := token.NewFileSet()
	root := filepath.Join("..", "modules")
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		slash := filepath.ToSlash(path)
		module := moduleName(slash)
		layer := detectLayer(slash)
		if module == "" || layer == "" {
			return nil
		}
		node, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			return parseErr
		}
		for _, imp := range node.Imports {
			importPath := strings.Trim(imp.Path.Value, `"`) + "/"
			if !strings.Contains(importPath, "tabtrail/internal/modules/") {
				continue
			}
			if violatesLayerRule(module, layer, importPath) {
				t.Fatalf("forbidden import in %s (%s): %s", slash, layer, importPath)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk modules: %v", err)
	}
}

func moduleName(path string) string {
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "modules" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func detectLayer(path string) string {
	for _, layer := range []string{"adapter/in", "adapter/out", "usecase", "service", "domain", "port/in", "port/out", "dto"} {
		if strings.Contains(path, "/"+layer+"/") {
			return layer
		}
	}
	return ""
}

func isPortIn(path string) bool {
	return strings.Contains(path, "/port/in/") || strings.HasSuffix(path, "/port/in")
}

func isDTO(path string) bool {
	return strings.Contains(path, "/dto/") || strings.HasSuffix(path, "/dto")
}

func violatesLayerRule(module, layer, importPath string) bool {
	sameModule := strings.Contains(importPath, "/internal/modules/"+module+"/")
	if !sameModule {
		if strings.Contains(importPath, "/service/") || strings.Contains(importPath, "/adapter/") || strings.Contains(importPath, "/usecase/") {
			return true
		}
		if isPortIn(importPath) || isDTO(importPath) {
			return false
		}
	}

	switch layer {
	case "adapter/in":
		return !isPortIn(importPath) && !isDTO(importPath)
	case "usecase":
		return strings.Contains(importPath, "/adapter/")
	case "service":
		return strings.Contains(importPath, "/adapter/") || strings.Contains(importPath, "/usecase/")
	case "domain":
		return strings.Contains(importPath, "/adapter/") || strings.Contains(importPath, "/usecase/") || strings.Contains(importPath, "/service/")
	default:
		return false
	}
}

// domainForbidden lists I/O packages that only adapters and wiring may use.
var domainForbidden = []string{
	"os",
	"os/exec",
	"net/http",
	"database/sql",
	"modernc.org/sqlite",
	"github.com/redis/go-redis/v9",
	"github.com/gorilla/websocket",
	"github.com/hashicorp/go-plugin",
	"google.golang.org/grpc",
	"github.com/rs/zerolog",
}

func walkImports(t *testing.T, root string, visit func(path string, imports []string)) {
	t.Helper()
	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		node, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			return parseErr
		}
		imports := make([]string, 0, len(node.Imports))
		for _, imp := range node.Imports {
			imports = append(imports, strings.Trim(imp.Path.Value, `"`))
		}
		visit(filepath.ToSlash(path), imports)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
}

func TestDomainPackagesStayFreeOfIO(t *testing.T) {
	t.Parallel()
	walkImports(t, filepath.Join("..", "modules"), func(path string, imports []string) {
		if detectLayer(path) != "domain" {
			return
		}
		for _, imp := range imports {
			for _, forbidden := range domainForbidden {
				if imp == forbidden || strings.HasPrefix(imp, forbidden+"/") {
					t.Errorf("domain file %s imports %s", path, imp)
				}
			}
		}
	})
}

func TestScoringDependsOnlyOnActivityModel(t *testing.T) {
	t.Parallel()
	walkImports(t, filepath.Join("..", "modules", "scoring"), func(path string, imports []string) {
		for _, imp := range imports {
			if strings.HasPrefix(imp, "tabtrail/") && imp != "tabtrail/internal/modules/activity/domain" {
				t.Errorf("scoring file %s imports %s", path, imp)
			}
			if strings.Contains(imp, ".") && !strings.HasPrefix(imp, "tabtrail/") {
				t.Errorf("scoring file %s imports third-party %s", path, imp)
			}
		}
	})
}

func TestPlatformNeverImportsModules(t *testing.T) {
	t.Parallel()
	walkImports(t, filepath.Join("..", "platform"), func(path string, imports []string) {
		for _, imp := range imports {
			if strings.HasPrefix(imp, "tabtrail/") && !strings.HasPrefix(imp, "tabtrail/internal/platform/") {
				t.Errorf("platform file %s imports %s", path, imp)
			}
		}
	})
}
