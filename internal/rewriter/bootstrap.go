// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package rewriter

import (
	"bytes"
	"context"
	"fmt"
	goast "go/ast"
	"go/parser"
	"go/token"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/petar-djukic/go-porter/internal/action"
	"github.com/petar-djukic/go-porter/internal/ast"
	"github.com/petar-djukic/go-porter/internal/detect"
	"github.com/petar-djukic/go-porter/pkg/types"
)

// bootstrapRule names the bootstrap rewrite in the ledger.
const bootstrapRule = "rpc-bootstrap"

const (
	opListenAddress action.Op = "bootstrap.listen-address"
	opEntryComment  action.Op = "bootstrap.entry-comment"
	opBindings      action.Op = "bootstrap.bindings"
)

// listenFuncName is the helper the startup file reads its address from.
const listenFuncName = "listenAddress"

// listenArgs maps listener calls to the index of their address argument.
var listenArgs = map[string]int{
	"net.Listen":                    1,
	"net/http.ListenAndServe":       0,
	"net/http.ListenAndServeTLS":    0,
	"google.golang.org/grpc.Listen": 1,
}

const listenFuncSource = `// listenAddress returns the service address: $PORT if set, else the configured port.
func listenAddress() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":%d"
}
`

// rewriteBootstrap moves a service's listener onto an environment
// provided port, notes it on the entry point, and converts legacy
// address bindings in service.yaml.
func rewriteBootstrap(ctx context.Context, b *base, res *ProjectResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bs := b.det.Bootstrap
	port := inferPort(b.det)
	b.logger.Info("rewriting service bootstrap", "entry", bs.EntryPoint, "startup", bs.Startup, "port", port)

	if bs.Startup != "" {
		exec := bootstrapExecution(opListenAddress, types.Invocation, "net.Listen", strconv.Itoa(port), bs.Startup)
		err := b.rewriteGo(res, bs.Startup, exec, func(fset *token.FileSet, file *goast.File, r *ast.Resolver) (int, error) {
			return rewriteListener(fset, file, r, port)
		})
		if err != nil {
			return err
		}
	}

	if bs.EntryPoint != "" && bs.EntryPoint != bs.Startup {
		exec := bootstrapExecution(opEntryComment, types.MethodDecl, "main", "", bs.EntryPoint)
		err := b.rewriteGo(res, bs.EntryPoint, exec, func(_ *token.FileSet, file *goast.File, _ *ast.Resolver) (int, error) {
			return noteEntryPoint(file, port), nil
		})
		if err != nil {
			return err
		}
	}

	if cfg := b.det.Config; cfg != nil && b.det.ProjectType == types.ProjectTypeRPCServiceConfig {
		exec := bootstrapExecution(opBindings, types.CompilationUnit, cfg.File, "", cfg.File)
		src, err := b.current(res, cfg.File, cfg.Raw)
		if err != nil {
			return err
		}
		out, n, err := migrateBindings(src)
		if err != nil {
			return fmt.Errorf("%s: %w", cfg.File, err)
		}
		b.settle(res, exec, cfg.File, out, n)
	}
	return nil
}

func bootstrapExecution(op action.Op, kind types.NodeKind, key, value, file string) *action.Execution {
	a := action.Action{Name: string(op), Kind: kind, Key: key, Value: value, Op: op, RuleName: bootstrapRule}
	return action.NewExecution(a, file)
}

// inferPort picks the port the service listens on: the configured
// binding, the literal listener address, or the protocol default.
func inferPort(det detect.Detection) int {
	if p := det.Config.Port(); p > 0 {
		return p
	}
	protocol := "netrpc"
	if slices.ContainsFunc(det.Imports, func(p string) bool { return p == "google.golang.org/grpc" }) {
		protocol = "grpc"
	}
	return detect.Binding{Protocol: protocol, Address: det.Bootstrap.ListenAddr}.InferPort()
}

// current returns the content a bootstrap step starts from: the output of
// an earlier step when there is one.
func (b *base) current(res *ProjectResult, rel string, fallback []byte) ([]byte, error) {
	if out, ok := res.Outputs[rel]; ok {
		return out, nil
	}
	if fallback != nil {
		return fallback, nil
	}
	return b.source(rel, true)
}

// settle records the step in the ledger and keeps its output.
func (b *base) settle(res *ProjectResult, exec *action.Execution, rel string, out []byte, n int) {
	if n == 0 {
		exec.InvalidExecutions++
		b.logger.Info("bootstrap already migrated", "rule", bootstrapRule, "action", exec.Action.Op, "file", rel)
	} else {
		exec.TimesRun += n
		res.Outputs[rel] = out
	}
	res.Executed.Record(exec)
}

type goRewrite func(fset *token.FileSet, file *goast.File, r *ast.Resolver) (int, error)

func (b *base) rewriteGo(res *ProjectResult, rel string, exec *action.Execution, fn goRewrite) error {
	src, err := b.current(res, rel, nil)
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, rel, src, parser.ParseComments)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", rel, err)
	}
	n, err := fn(fset, file, ast.NewResolver(file, b.pkgPath(rel), rel))
	if err != nil {
		return fmt.Errorf("%s: %w", rel, err)
	}
	var out []byte
	if n > 0 {
		if out, err = ast.FormatFile(fset, file); err != nil {
			return fmt.Errorf("formatting %s: %w", rel, err)
		}
	}
	b.settle(res, exec, rel, out, n)
	return nil
}

// rewriteListener replaces literal listener addresses with a call to
// listenAddress and adds the helper.
func rewriteListener(fset *token.FileSet, file *goast.File, r *ast.Resolver, port int) (int, error) {
	n := 0
	var err error
	goast.Inspect(file, func(node goast.Node) bool {
		call, ok := node.(*goast.CallExpr)
		if !ok || err != nil {
			return err == nil
		}
		i, ok := listenArgs[r.CalleeKey(call.Fun)]
		if !ok || i >= len(call.Args) {
			return true
		}
		lit, ok := call.Args[i].(*goast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		var repl goast.Expr
		if repl, err = ast.ParseExpr(fset, listenFuncName+"()", lit.Pos()); err != nil {
			return false
		}
		call.Args[i] = repl
		n++
		return true
	})
	if err != nil || n == 0 {
		return 0, err
	}
	if _, err := ast.AddFunction(fset, file, fmt.Sprintf(listenFuncSource, port)); err != nil {
		return 0, err
	}
	ast.AddImport(fset, file, "os")
	return n, nil
}

// noteEntryPoint documents on func main where the listen address now
// comes from.
func noteEntryPoint(file *goast.File, port int) int {
	fd := ast.FindFunc(file, "main")
	if fd == nil || fd.Body == nil {
		return 0
	}
	if ast.HasComment(file, fd.Body.Lbrace, fd.Body.Rbrace, "$PORT") {
		return 0
	}
	text := fmt.Sprintf("The service listens on $PORT (default %d).", port)
	ast.AddComment(file, fd.Body.Lbrace+1, text, false)
	return 1
}

// migrateBindings rewrites legacy `address: tcp://host:port` bindings into
// explicit network and port keys. It returns the number of bindings
// converted; with none, data is returned as is.
func migrateBindings(data []byte) ([]byte, int, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("parsing bindings: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return data, 0, nil
	}
	seq := mappingValue(doc.Content[0], "bindings")
	if seq == nil || seq.Kind != yaml.SequenceNode {
		return data, 0, nil
	}

	n := 0
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		var bnd detect.Binding
		if err := item.Decode(&bnd); err != nil || !bnd.Legacy() {
			continue
		}
		var content []*yaml.Node
		for i := 0; i+1 < len(item.Content); i += 2 {
			switch item.Content[i].Value {
			case "address":
				content = append(content, scalar("!!str", "network"), scalar("!!str", bnd.InferNetwork()))
				if port := bnd.InferPort(); port > 0 {
					content = append(content, scalar("!!str", "port"), scalar("!!int", strconv.Itoa(port)))
				}
			case "network", "port":
			default:
				content = append(content, item.Content[i], item.Content[i+1])
			}
		}
		item.Content = content
		item.Style = 0
		n++
	}
	if n == 0 {
		return data, 0, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, 0, fmt.Errorf("encoding bindings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), n, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
