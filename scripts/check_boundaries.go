package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "campus"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists what a layer of a bounded module may import. Paths in
// allowedLocal are relative to the module's own directory.
type layerRule struct {
	allowedLocal    []string
	allowedInternal []string
	allowedVendors  []string
}

var layerRules = map[string]layerRule{
	"domain": {
		allowedLocal: []string{"domain"},
	},
	"application": {
		allowedLocal:    []string{"application", "domain", "ports"},
		allowedInternal: []string{modulePath + "/internal/shared"},
		allowedVendors:  []string{"github.com/google/uuid"},
	},
	"ports": {
		allowedLocal:    []string{"domain", "ports"},
		allowedInternal: []string{modulePath + "/internal/shared"},
	},
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Import < b.Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		rel, relErr := filepath.Rel(filepath.Dir(root), path)
		if relErr != nil {
			return nil
		}
		normalized := filepath.ToSlash(rel)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}

		moduleDir := modulePath + "/" + strings.Join(parts[:3], "/")
		fset := token.NewFileSet()
		file, parseErr := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if parseErr != nil {
			violations = append(violations, violation{File: normalized, Line: 1, Rule: "file must parse"})
			return nil
		}
		for _, imp := range file.Imports {
			importPath := strings.Trim(imp.Path.Value, "\"")
			line := fset.Position(imp.Pos()).Line
			for _, rule := range checkImport(parts[3], moduleDir, importPath) {
				violations = append(violations, violation{
					File:   normalized,
					Line:   line,
					Import: importPath,
					Rule:   rule,
				})
			}
		}
		return nil
	})
	return violations
}

// checkImport returns the rules importPath breaks when imported from layer
// of the module rooted at moduleDir.
func checkImport(layer string, moduleDir string, importPath string) []string {
	var broken []string
	if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, moduleDir) {
		broken = append(broken, "cross-module imports are forbidden")
	}

	rule, ok := layerRules[layer]
	if !ok || isStdlib(importPath) {
		return broken
	}
	if strings.Contains(importPath, "/adapters/") || strings.HasSuffix(importPath, "/adapters") {
		broken = append(broken, layer+" must not import adapters")
	}

	allowed := make([]string, 0, len(rule.allowedLocal)+len(rule.allowedInternal)+len(rule.allowedVendors))
	for _, local := range rule.allowedLocal {
		allowed = append(allowed, moduleDir+"/"+local)
	}
	allowed = append(allowed, rule.allowedInternal...)
	allowed = append(allowed, rule.allowedVendors...)
	if !isAllowed(importPath, allowed) {
		if hasPrefix(importPath, modulePath+"/internal") {
			broken = append(broken, layer+" must not import runtime infrastructure")
		} else {
			broken = append(broken, layer+" import is outside explicit allowlist")
		}
	}
	return broken
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowedPrefixes []string) bool {
	for _, p := range allowedPrefixes {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
