package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const appINI = `; application settings
[Server]
host = localhost
port = 0x1F90
#if {DEBUG}
debug = yes
#endif

[Paths]
#include "paths.ini"
`

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("app.ini", appINI)
	write("paths.ini", "root = /srv\n")
	return filepath.Join(dir, "app.ini")
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestPrintTree(t *testing.T) {
	app := setup(t)
	code, out, errOut := runCLI(t, "", "-env", "-D", "DEBUG=1", app)
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	want := "[Server]\n    host = localhost\n    port = 0x1F90\n    debug = yes\n[Paths]\n    root = /srv\n"
	if out != want {
		t.Errorf("got: %q; want: %q", out, want)
	}

	code, out, _ = runCLI(t, "", "-env", "-D", "DEBUG=0", app)
	if code != exitOK || strings.Contains(out, "debug") {
		t.Errorf("exit %d, output %q", code, out)
	}
}

func TestQueryKey(t *testing.T) {
	app := setup(t)
	tests := []struct {
		args []string
		code int
		out  string
	}{
		{[]string{"-section", "Server", "-key", "host"}, exitOK, "localhost\n"},
		{[]string{"-section", "Server", "-key", "port", "-type", "uint16"}, exitOK, "8080\n"},
		{[]string{"-section", "Server", "-key", "port", "-type", "int16"}, exitOK, "8080\n"},
		{[]string{"-section", "server", "-key", "HOST", "-nocase"}, exitOK, "localhost\n"},
		{[]string{"-section", "Paths"}, exitOK, "root = /srv\n"},
		{[]string{"-section", "Server", "-key", "host", "-type", "bool"}, exitMissing, ""},
		{[]string{"-section", "Server", "-key", "missing"}, exitMissing, ""},
		{[]string{"-section", "Nope"}, exitMissing, ""},
	}
	for _, tt := range tests {
		code, out, errOut := runCLI(t, "", append(tt.args, app)...)
		if code != tt.code || out != tt.out {
			t.Errorf("%v: got exit %d output %q (stderr %q); want exit %d output %q",
				tt.args, code, out, errOut, tt.code, tt.out)
		}
	}
}

func TestFormats(t *testing.T) {
	app := setup(t)

	code, out, errOut := runCLI(t, "", "-format", "json", app)
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var doc struct {
		Files    []string `json:"files"`
		Sections []struct {
			Name string `json:"name"`
		} `json:"sections"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("%v: %s", err, out)
	}
	if len(doc.Files) != 2 || len(doc.Sections) != 2 || doc.Sections[1].Name != "Paths" {
		t.Errorf("unexpected document: %+v", doc)
	}

	code, out, _ = runCLI(t, "", "-format", "yaml", app)
	if code != exitOK || !strings.Contains(out, "name: Server") {
		t.Errorf("exit %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "-jq", ".sections[].name", app)
	if code != exitOK || out != "Server\nPaths\n" {
		t.Errorf("exit %d, output %q", code, out)
	}

	code, out, _ = runCLI(t, "", "-jq", "[.sections[].lines | length] | add", app)
	if code != exitOK || out != "3\n" {
		t.Errorf("exit %d, output %q", code, out)
	}

	if code, _, _ = runCLI(t, "", "-format", "xml", app); code != exitUsage {
		t.Errorf("unknown format: exit %d", code)
	}
}

func TestStdin(t *testing.T) {
	code, out, errOut := runCLI(t, "[S]\nk = v\n", "-section", "S", "-key", "k", "-")
	if code != exitOK || out != "v\n" {
		t.Errorf("exit %d, output %q, stderr %q", code, out, errOut)
	}
}

func TestOptionsFile(t *testing.T) {
	app := setup(t)
	optsFile := filepath.Join(filepath.Dir(app), "opts.yaml")
	if err := os.WriteFile(optsFile, []byte("expand_env: true\ndefines:\n  DEBUG: \"1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := runCLI(t, "", "-options", optsFile, "-section", "Server", "-key", "debug", "-type", "bool", app)
	if code != exitOK || out != "true\n" {
		t.Errorf("exit %d, output %q, stderr %q", code, out, errOut)
	}
}

func TestErrors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.ini")
	if err := os.WriteFile(broken, []byte("[A]\n#if 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dup := filepath.Join(dir, "dup.ini")
	if err := os.WriteFile(dup, []byte("[A]\n[A]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"no files", nil, exitUsage, "Usage: readini"},
		{"bad flag", []string{"-nope", broken}, exitUsage, "flag provided but not defined"},
		{"key without section", []string{"-key", "k", broken}, exitUsage, "-key requires -section"},
		{"bad options file", []string{"-options", filepath.Join(dir, "none.yaml"), broken}, exitUsage, "none.yaml"},
		{"missing file", []string{filepath.Join(dir, "none.ini")}, exitLoad, "none.ini"},
		{"unterminated if", []string{broken}, exitLoad, "unterminated #if"},
		{"duplicate warning", []string{"-dup-error", dup}, exitOK, "duplicate section [A]"},
		{"strict duplicate", []string{"-dup-error", "-strict", dup}, exitLoad, "duplicate section [A]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, "", tt.args...)
			if code != tt.code {
				t.Errorf("got exit %d; want %d (stderr %q)", code, tt.code, errOut)
			}
			if !strings.Contains(errOut, tt.stderr) {
				t.Errorf("stderr %q does not contain %q", errOut, tt.stderr)
			}
		})
	}
}
