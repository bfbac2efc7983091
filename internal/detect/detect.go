// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package detect classifies a project before migration: its dialect,
// its project type and the bootstrap files of service projects.
// Classification runs tree-sitter queries over the Go sources so it
// works on files go/parser rejects.
package detect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/petar-djukic/go-porter/internal/project"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// Features are the facts the classifier decides on.
type Features struct {
	Main         bool // Some file declares package main with func main
	HTTPHandlers bool // Functions taking http.ResponseWriter
	WebFramework bool // Imports a router or web framework
	Templates    bool // Imports html/template
	MVCFramework bool // Imports a controller-based framework
	RPC          bool // Imports net/rpc or gRPC
	Listener     bool // Calls net.Listen or an equivalent
}

// Bootstrap locates the files a service's startup is spread over.
type Bootstrap struct {
	EntryPoint string // File declaring func main
	Startup    string // File setting up the listener
	ListenAddr string // Literal address passed to the listener, if any
}

// Detection is the outcome of classifying one project.
type Detection struct {
	Dir         string
	ProjectType types.ProjectType
	Dialect     types.Dialect
	ModulePath  string
	GoVersion   string   // go directive; empty for GOPATH projects
	Requires    []string // Required module paths
	Imports     []string // Distinct import paths of every file, sorted
	Features    Features
	Bootstrap   Bootstrap
	Config      *ServiceConfig // Parsed service.yaml, nil when absent
	Files       int            // Go files inspected
	Skipped     []string       // Files that could not be read
}

// Detector classifies projects.
type Detector struct {
	Configs *ConfigCache // Defaults to a private cache
	Logger  *slog.Logger
}

var (
	webFrameworks = []string{
		"github.com/gin-gonic/gin",
		"github.com/gorilla/mux",
		"github.com/go-chi/chi",
		"github.com/labstack/echo",
		"github.com/julienschmidt/httprouter",
	}
	mvcFrameworks = []string{
		"github.com/astaxie/beego",
		"github.com/beego/beego",
		"github.com/revel/revel",
		"github.com/gobuffalo/buffalo",
	}
	rpcPackages = []string{
		"net/rpc",
		"google.golang.org/grpc",
	}
	listenCalls = []string{
		"net.Listen",
		"net.ListenTCP",
		"http.ListenAndServe",
		"http.ListenAndServeTLS",
		"rpc.Accept",
	}
)

const goQuery = `
(package_clause (package_identifier) @package)
(function_declaration name: (identifier) @func)
(import_spec path: (interpreted_string_literal) @import)
(parameter_declaration type: (qualified_type) @param)
(call_expression function: (selector_expression) @call arguments: (argument_list) @args)
`

// Detect classifies the project rooted at dir.
func (d *Detector) Detect(ctx context.Context, dir string) (Detection, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Detection{}, fmt.Errorf("resolving %s: %w", dir, err)
	}
	det := Detection{Dir: abs, Dialect: types.DialectGo}

	mod, err := project.Load(abs)
	switch {
	case errors.Is(err, project.ErrNoModFile):
		det.Dialect = types.DialectGopath
	case err != nil:
		return det, err
	default:
		det.ModulePath = mod.Path()
		det.GoVersion = mod.GoVersion()
		det.Requires = mod.Requires()
	}

	q, err := sitter.NewQuery([]byte(goQuery), golang.GetLanguage())
	if err != nil {
		return det, fmt.Errorf("compiling detection query: %w", err)
	}
	defer q.Close()

	imports := make(map[string]bool)
	err = filepath.WalkDir(abs, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if e.IsDir() {
			switch e.Name() {
			case ".git", "vendor", "testdata", "node_modules":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(e.Name(), ".go") || strings.HasSuffix(e.Name(), "_test.go") {
			return nil
		}
		rel, _ := filepath.Rel(abs, path)
		rel = filepath.ToSlash(rel)
		content, err := os.ReadFile(path)
		if err != nil {
			det.Skipped = append(det.Skipped, rel)
			return nil
		}
		root, err := sitter.ParseCtx(ctx, content, golang.GetLanguage())
		if err != nil || root == nil {
			det.Skipped = append(det.Skipped, rel)
			return nil
		}
		det.Files++
		inspect(q, root, content, rel, &det, imports)
		return nil
	})
	if err != nil {
		return det, err
	}
	for imp := range imports {
		det.Imports = append(det.Imports, imp)
	}
	slices.Sort(det.Imports)

	configs := d.Configs
	if configs == nil {
		configs = NewConfigCache(nil)
	}
	det.Config, err = configs.Get(abs)
	if err != nil {
		logger.Warn("service config unreadable", "project", abs, "error", err)
	}

	det.ProjectType = classify(det)
	logger.Debug("project classified", "project", abs, "type", det.ProjectType, "dialect", det.Dialect, "files", det.Files)
	return det, nil
}

// inspect records the captures of one file.
func inspect(q *sitter.Query, root *sitter.Node, content []byte, rel string, det *Detection, imports map[string]bool) {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	var pkg string
	hasMain := false
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var call, args string
		for _, c := range m.Captures {
			text := c.Node.Content(content)
			switch q.CaptureNameForId(c.Index) {
			case "package":
				pkg = text
			case "func":
				if text == "main" {
					hasMain = true
				}
			case "import":
				path := strings.Trim(text, `"`)
				imports[path] = true
				markImport(path, &det.Features)
			case "param":
				if text == "http.ResponseWriter" {
					det.Features.HTTPHandlers = true
				}
			case "call":
				call = text
			case "args":
				args = text
			}
		}
		if call != "" && slices.Contains(listenCalls, call) {
			det.Features.Listener = true
			if det.Bootstrap.Startup == "" {
				det.Bootstrap.Startup = rel
				det.Bootstrap.ListenAddr = listenAddr(args)
			}
		}
	}
	if pkg == "main" && hasMain {
		det.Features.Main = true
		if det.Bootstrap.EntryPoint == "" {
			det.Bootstrap.EntryPoint = rel
		}
	}
}

func markImport(path string, f *Features) {
	has := func(list []string) bool {
		return slices.ContainsFunc(list, func(p string) bool {
			return path == p || strings.HasPrefix(path, p+"/")
		})
	}
	switch {
	case path == "html/template":
		f.Templates = true
	case has(rpcPackages):
		f.RPC = true
	case has(mvcFrameworks):
		f.MVCFramework = true
	case has(webFrameworks):
		f.WebFramework = true
	}
}

// listenAddr extracts the last string literal of an argument list such
// as ("tcp", ":1234").
func listenAddr(args string) string {
	parts := strings.Split(strings.Trim(args, "()"), ",")
	for i := len(parts) - 1; i >= 0; i-- {
		p := strings.TrimSpace(parts[i])
		if len(p) >= 2 && p[0] == '"' && p[len(p)-1] == '"' {
			return p[1 : len(p)-1]
		}
	}
	return ""
}

// classify maps features to a project type. Service markers win over
// web markers, which win over a plain main package.
func classify(det Detection) types.ProjectType {
	f := det.Features
	var t types.ProjectType
	switch {
	case f.RPC && f.Listener && det.Config != nil:
		t = types.ProjectTypeRPCServiceConfig
	case f.RPC && f.Listener:
		t = types.ProjectTypeRPCService
	case f.MVCFramework:
		t = types.ProjectTypeMVC
	case f.Templates && (f.HTTPHandlers || f.WebFramework):
		t = types.ProjectTypeWebUI
	case f.HTTPHandlers || f.WebFramework:
		t = types.ProjectTypeWebAPI
	case f.Main:
		t = types.ProjectTypeCommand
	default:
		t = types.ProjectTypeLibrary
	}
	if det.Dialect != types.DialectGopath {
		return t
	}
	switch t {
	case types.ProjectTypeWebUI:
		return types.ProjectTypeGopathWebUI
	case types.ProjectTypeMVC:
		return types.ProjectTypeGopathMVC
	default:
		return types.ProjectTypeGopathLibrary
	}
}
