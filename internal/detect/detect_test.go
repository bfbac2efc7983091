// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package detect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petar-djukic/go-porter/pkg/types"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

const gomod = "module example.com/svc\n\ngo 1.15\n\nrequire google.golang.org/grpc v1.20.0\n"

func TestDetect_ProjectTypes(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  types.ProjectType
	}{
		{
			name: "library",
			files: map[string]string{
				"go.mod": "module example.com/lib\n\ngo 1.20\n",
				"lib.go": "package lib\n\nfunc Add(a, b int) int { return a + b }\n",
			},
			want: types.ProjectTypeLibrary,
		},
		{
			name: "command",
			files: map[string]string{
				"go.mod":  "module example.com/cmd\n\ngo 1.20\n",
				"main.go": "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hi\") }\n",
			},
			want: types.ProjectTypeCommand,
		},
		{
			name: "web api",
			files: map[string]string{
				"go.mod": "module example.com/api\n\ngo 1.20\n",
				"api.go": "package api\n\nimport \"net/http\"\n\nfunc Health(w http.ResponseWriter, r *http.Request) {}\n",
			},
			want: types.ProjectTypeWebAPI,
		},
		{
			name: "web ui",
			files: map[string]string{
				"go.mod": "module example.com/ui\n\ngo 1.20\n",
				"ui.go": "package ui\n\nimport (\n\t\"html/template\"\n\t\"net/http\"\n)\n\n" +
					"var page = template.Must(template.New(\"p\").Parse(\"\"))\n\n" +
					"func Index(w http.ResponseWriter, r *http.Request) { page.Execute(w, nil) }\n",
			},
			want: types.ProjectTypeWebUI,
		},
		{
			name: "mvc",
			files: map[string]string{
				"go.mod":  "module example.com/mvc\n\ngo 1.20\n",
				"ctrl.go": "package controllers\n\nimport \"github.com/astaxie/beego\"\n\ntype Main struct{ beego.Controller }\n",
			},
			want: types.ProjectTypeMVC,
		},
		{
			name: "rpc service",
			files: map[string]string{
				"go.mod": gomod,
				"main.go": "package main\n\nimport (\n\t\"net\"\n\n\t\"google.golang.org/grpc\"\n)\n\n" +
					"func main() {\n\tlis, _ := net.Listen(\"tcp\", \":9000\")\n\tgrpc.NewServer().Serve(lis)\n}\n",
			},
			want: types.ProjectTypeRPCService,
		},
		{
			name: "rpc service with config",
			files: map[string]string{
				"go.mod": gomod,
				"main.go": "package main\n\nimport \"net/rpc\"\n\nfunc main() { run() }\n\nvar _ = rpc.Register\n",
				"server.go": "package main\n\nimport \"net\"\n\n" +
					"func run() {\n\tl, _ := net.Listen(\"tcp\", \":1234\")\n\t_ = l\n}\n",
				"service.yaml": "name: orders\nbindings:\n  - name: orders\n    protocol: netrpc\n    address: tcp://0.0.0.0:1234\n",
			},
			want: types.ProjectTypeRPCServiceConfig,
		},
		{
			name: "gopath library",
			files: map[string]string{
				"lib.go": "package lib\n",
			},
			want: types.ProjectTypeGopathLibrary,
		},
		{
			name: "gopath web ui",
			files: map[string]string{
				"ui.go": "package ui\n\nimport (\n\t\"html/template\"\n\t\"net/http\"\n)\n\n" +
					"var _ = template.New\n\nfunc Index(w http.ResponseWriter, r *http.Request) {}\n",
			},
			want: types.ProjectTypeGopathWebUI,
		},
		{
			name: "gopath mvc",
			files: map[string]string{
				"app.go": "package app\n\nimport \"github.com/revel/revel\"\n\ntype App struct{ *revel.Controller }\n",
			},
			want: types.ProjectTypeGopathMVC,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeFiles(t, tc.files)
			det, err := (&Detector{}).Detect(context.Background(), dir)
			require.NoError(t, err)
			assert.Equal(t, tc.want, det.ProjectType)
			assert.Equal(t, tc.want.Dialect(), det.Dialect)
		})
	}
}

func TestDetect_Bootstrap(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"go.mod":                gomod,
		"cmd/svc/main.go":       "package main\n\nimport \"example.com/svc/server\"\n\nfunc main() { server.Run() }\n",
		"server/server.go":      "package server\n\nimport (\n\t\"net\"\n\n\t\"google.golang.org/grpc\"\n)\n\nfunc Run() {\n\tl, _ := net.Listen(\"tcp\", \":7000\")\n\tgrpc.NewServer().Serve(l)\n}\n",
		"server/server_test.go": "package server\n\nfunc main() {}\n",
	})
	det, err := (&Detector{}).Detect(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "example.com/svc", det.ModulePath)
	assert.Equal(t, "1.15", det.GoVersion)
	assert.Equal(t, []string{"google.golang.org/grpc"}, det.Requires)
	assert.Equal(t, 2, det.Files)
	assert.Equal(t, "cmd/svc/main.go", det.Bootstrap.EntryPoint)
	assert.Equal(t, "server/server.go", det.Bootstrap.Startup)
	assert.Equal(t, ":7000", det.Bootstrap.ListenAddr)
	assert.Contains(t, det.Imports, "google.golang.org/grpc")
	assert.True(t, det.Features.RPC)
	assert.Nil(t, det.Config)
}

func TestDetect_SharedConfigCache(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"go.mod":      gomod,
		"service.yml": "name: a\nbindings:\n  - {name: a, protocol: grpc, address: \":5000\"}\n",
		"lib/lib.go":  "package lib\n",
	})
	cache := NewConfigCache(nil)
	d := &Detector{Configs: cache}
	for range 3 {
		det, err := d.Detect(context.Background(), dir)
		require.NoError(t, err)
		require.NotNil(t, det.Config)
		assert.Equal(t, "service.yml", det.Config.File)
	}
	assert.Equal(t, int64(1), cache.Loads())
}

func TestDetect_Cancelled(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.go": "package a\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Detector{}).Detect(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBinding_Inference(t *testing.T) {
	tests := []struct {
		name    string
		b       Binding
		network string
		port    int
	}{
		{"url address", Binding{Protocol: "grpc", Address: "tcp://0.0.0.0:6000"}, "tcp", 6000},
		{"host port", Binding{Protocol: "grpc", Address: ":6001"}, "tcp", 6001},
		{"unix scheme", Binding{Protocol: "netrpc", Address: "unix://sock:1"}, "unix", 1},
		{"grpc default", Binding{Protocol: "grpc"}, "tcp", 50051},
		{"netrpc default", Binding{Protocol: "NetRPC"}, "tcp", 1234},
		{"explicit", Binding{Protocol: "http", Network: "tcp4", Port: 81}, "tcp4", 81},
		{"unknown", Binding{Protocol: "smtp"}, "tcp", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.network, tc.b.InferNetwork())
			assert.Equal(t, tc.port, tc.b.InferPort())
		})
	}
}

func TestLoadServiceConfig(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"service.yaml": "name: orders\nbindings:\n  - name: api\n    protocol: grpc\n    address: tcp://:7001\n",
	})
	cfg, err := LoadServiceConfig(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "orders", cfg.Name)
	assert.Equal(t, "service.yaml", cfg.File)
	assert.Equal(t, 7001, cfg.Port())
	assert.True(t, cfg.Bindings[0].Legacy())

	none, err := LoadServiceConfig(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.Equal(t, 0, none.Port())

	bad := writeFiles(t, map[string]string{"service.yaml": "bindings: [\n"})
	_, err = LoadServiceConfig(bad)
	assert.Error(t, err)
}

func TestConfigCache_ConcurrentFirstAccessLoadsOnce(t *testing.T) {
	release := make(chan struct{})
	cache := NewConfigCache(func(dir string) (*ServiceConfig, error) {
		<-release
		return &ServiceConfig{Name: filepath.Base(dir)}, nil
	})

	const workers = 16
	var wg sync.WaitGroup
	got := make([]*ServiceConfig, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := cache.Get("/projects/orders")
			assert.NoError(t, err)
			got[i] = cfg
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), cache.Loads())
	for _, cfg := range got {
		assert.Same(t, got[0], cfg)
	}
}

func TestConfigCache_CachesErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	cache := NewConfigCache(func(string) (*ServiceConfig, error) {
		calls++
		return nil, boom
	})
	for range 2 {
		_, err := cache.Get("/p")
		assert.ErrorIs(t, err, boom)
	}
	_, err := cache.Get("/p/")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
