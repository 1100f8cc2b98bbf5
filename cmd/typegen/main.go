// Command typegen parses Go struct definitions and generates the TypeScript
// types a UI needs to speak the control-plane protocol and edit
// settings.json. Run from the project root:
//
//	go run ./cmd/typegen -out ui/src/types/generated.ts
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const modulePath = "neurotome"

// structsToGenerate lists the structs to emit, as "dir:Name", in output
// order, with their TypeScript names.
var structsToGenerate = []struct{ key, tsName string }{
	// Wire protocol
	{"protocol:Envelope", "Envelope"},
	{"protocol:RegisterPayload", "RegisterPayload"},
	{"protocol:HeartbeatPayload", "HeartbeatPayload"},
	{"protocol:LogPayload", "LogPayload"},
	{"protocol:LogEntry", "LogEntry"},
	{"protocol:LogEndPayload", "LogEndPayload"},
	{"protocol:EventPayload", "EventPayload"},
	{"protocol:VoiceStatePayload", "VoiceStatePayload"},
	{"protocol:MessagePayload", "MessagePayload"},
	{"protocol:SessionStatePayload", "SessionStatePayload"},
	{"protocol:AvatarPayload", "AvatarPayload"},
	{"protocol:SelectMoodPayload", "SelectMoodPayload"},
	{"protocol:SendTextPayload", "SendTextPayload"},
	{"protocol:ShutdownPayload", "ShutdownPayload"},
	{"protocol:AckPayload", "AckPayload"},
	// Settings
	{"factories:SettingsConfig", "Settings"},
	{"factories:ControlPlaneConfig", "ControlPlaneConfig"},
	{"factories:SessionAPIConfig", "SessionApiConfig"},
	{"factories:SessionConfig", "SessionConfig"},
	{"factories:CompleterFactoryConfig", "CompleterConfig"},
	{"factories:SpeechFactoryConfig", "SpeechConfig"},
	{"services/httpllm:Config", "HttpCompleterConfig"},
	{"services/openai/llm:Config", "OpenAiCompleterConfig"},
	{"services/console:SynthesizerConfig", "ConsoleSpeechConfig"},
	{"handlers/voice:Config", "VoiceConfig"},
	{"handlers/chat:Config", "ChatConfig"},
	{"core:RecognitionConfig", "RecognitionConfig"},
	{"core:Voice", "SpeechVoice"},
}

// enumsToGenerate lists string types whose constants become named unions.
var enumsToGenerate = []struct{ key, tsName string }{
	{"protocol:MessageType", "MessageType"},
	{"core:Mood", "Mood"},
	{"core:MessageRole", "MessageRole"},
	{"runner:Expression", "AvatarExpression"},
}

// primitives maps Go types to TypeScript types.
var primitives = map[string]string{
	"string":                 "string",
	"int":                    "number",
	"int32":                  "number",
	"int64":                  "number",
	"uint":                   "number",
	"uint64":                 "number",
	"float32":                "number",
	"float64":                "number",
	"bool":                   "boolean",
	"any":                    "unknown",
	"interface{}":            "unknown",
	"json.RawMessage":        "unknown",
	"time.Time":              "string",
	"time.Duration":          "number", // nanoseconds
	"map[string]string":      "Record<string, string>",
	"map[string]interface{}": "Record<string, unknown>",
	"map[string]any":         "Record<string, unknown>",
}

// secretFields never reach generated types.
var secretFields = map[string]bool{
	"api_key": true,
}

type fieldInfo struct {
	jsonName string
	goType   string // primitive, "dir:Name", or composite of those
	optional bool
}

type structInfo struct {
	key    string
	fields []fieldInfo
}

// generator collects declarations from every package under a root.
type generator struct {
	structs map[string]*structInfo
	aliases map[string]string   // "dir:Name" -> underlying Go type
	enums   map[string][]string // "dir:Name" -> constant values
	tsNames map[string]string
}

func newGenerator() *generator {
	g := &generator{
		structs: map[string]*structInfo{},
		aliases: map[string]string{},
		enums:   map[string][]string{},
		tsNames: map[string]string{},
	}
	for _, s := range structsToGenerate {
		g.tsNames[s.key] = s.tsName
	}
	for _, e := range enumsToGenerate {
		g.tsNames[e.key] = e.tsName
	}
	return g
}

func main() {
	outPath := flag.String("out", "ui/src/types/generated.ts", "output TypeScript file path")
	flag.Parse()

	root, err := os.Getwd()
	if err != nil {
		fatal("getwd: %v", err)
	}

	g := newGenerator()
	if err := g.load(root); err != nil {
		fatal("load: %v", err)
	}
	out := g.render()

	absOut := *outPath
	if !filepath.IsAbs(absOut) {
		absOut = filepath.Join(root, absOut)
	}
	if err := os.MkdirAll(filepath.Dir(absOut), 0o755); err != nil {
		fatal("mkdir: %v", err)
	}
	if err := os.WriteFile(absOut, out, 0o644); err != nil {
		fatal("write: %v", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", absOut, len(out))
}

// load parses every package directory below root. Directories the go tool
// ignores (leading "_" or ".", testdata) are skipped, as is typegen itself.
func (g *generator) load(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		name := d.Name()
		if p != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata" || name == "typegen" || name == "node_modules") {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			rel = ""
		}
		if err := g.parseDir(p, filepath.ToSlash(rel)); err != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", rel, err)
		}
		return nil
	})
}

func (g *generator) parseDir(dir, rel string) error {
	fset := token.NewFileSet()
	notTest := func(fi fs.FileInfo) bool { return !strings.HasSuffix(fi.Name(), "_test.go") }
	pkgs, err := parser.ParseDir(fset, dir, notTest, 0)
	if err != nil {
		return err
	}
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			g.parseFile(file, rel)
		}
	}
	return nil
}

func (g *generator) parseFile(file *ast.File, rel string) {
	imports := importDirs(file)
	for _, decl := range file.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		switch gd.Tok {
		case token.TYPE:
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				key := rel + ":" + ts.Name.Name
				switch t := ts.Type.(type) {
				case *ast.Ident:
					g.aliases[key] = t.Name
				case *ast.StructType:
					g.structs[key] = parseStruct(key, t, rel, imports)
				}
			}
		case token.CONST:
			for _, spec := range gd.Specs {
				vs := spec.(*ast.ValueSpec)
				ident, ok := vs.Type.(*ast.Ident)
				if !ok {
					continue
				}
				key := rel + ":" + ident.Name
				for _, v := range vs.Values {
					lit, ok := v.(*ast.BasicLit)
					if !ok || lit.Kind != token.STRING {
						continue
					}
					if s, err := strconv.Unquote(lit.Value); err == nil {
						g.enums[key] = append(g.enums[key], s)
					}
				}
			}
		}
	}
}

// importDirs maps each in-module import name to its directory.
func importDirs(file *ast.File) map[string]string {
	dirs := map[string]string{}
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || !strings.HasPrefix(p, modulePath+"/") {
			continue
		}
		name := path.Base(p)
		if imp.Name != nil {
			name = imp.Name.Name
		}
		dirs[name] = strings.TrimPrefix(p, modulePath+"/")
	}
	return dirs
}

func parseStruct(key string, st *ast.StructType, rel string, imports map[string]string) *structInfo {
	si := &structInfo{key: key}
	for _, field := range st.Fields.List {
		if field.Tag == nil {
			continue
		}
		tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`"))
		name, opts, _ := strings.Cut(tag.Get("json"), ",")
		if name == "" || name == "-" || secretFields[name] {
			continue
		}
		_, isPointer := field.Type.(*ast.StarExpr)
		si.fields = append(si.fields, fieldInfo{
			jsonName: name,
			goType:   qualify(field.Type, rel, imports),
			optional: isPointer || strings.Contains(opts, "omitempty"),
		})
	}
	return si
}

// qualify renders a type expression, replacing in-module named types with
// their "dir:Name" key.
func qualify(expr ast.Expr, rel string, imports map[string]string) string {
	switch t := expr.(type) {
	case *ast.Ident:
		if _, ok := primitives[t.Name]; ok {
			return t.Name
		}
		return rel + ":" + t.Name
	case *ast.StarExpr:
		return qualify(t.X, rel, imports)
	case *ast.ArrayType:
		return "[]" + qualify(t.Elt, rel, imports)
	case *ast.MapType:
		return "map[" + qualify(t.Key, rel, imports) + "]" + qualify(t.Value, rel, imports)
	case *ast.SelectorExpr:
		pkg, _ := t.X.(*ast.Ident)
		if pkg != nil {
			if dir, ok := imports[pkg.Name]; ok {
				return dir + ":" + t.Sel.Name
			}
			return pkg.Name + "." + t.Sel.Name
		}
	case *ast.InterfaceType:
		return "interface{}"
	}
	return "unknown"
}

// tsType converts a qualified Go type to TypeScript.
func (g *generator) tsType(goType string) string {
	if ts, ok := primitives[goType]; ok {
		return ts
	}
	if strings.HasPrefix(goType, "[]") {
		return g.tsType(goType[2:]) + "[]"
	}
	if strings.HasPrefix(goType, "map[") {
		return "Record<string, " + g.tsType(goType[strings.Index(goType, "]")+1:]) + ">"
	}
	if name, ok := g.tsNames[goType]; ok {
		return name
	}
	if vals := g.enums[goType]; len(vals) > 0 {
		return union(vals)
	}
	if underlying, ok := g.aliases[goType]; ok {
		return g.tsType(underlying)
	}
	return "unknown"
}

func union(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, " | ")
}

// render writes enums, then interfaces, in declaration-list order.
// Settings structs have every field optional since Go applies defaults and
// JSON only carries overrides; protocol fields follow omitempty.
func (g *generator) render() []byte {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by cmd/typegen; DO NOT EDIT.\n")
	buf.WriteString("//\n")
	buf.WriteString("// Regenerate: go run ./cmd/typegen -out ui/src/types/generated.ts\n\n")

	for _, e := range enumsToGenerate {
		vals := g.enums[e.key]
		if len(vals) == 0 {
			fmt.Fprintf(os.Stderr, "warning: enum %q not found, skipping\n", e.key)
			continue
		}
		fmt.Fprintf(&buf, "export type %s = %s\n\n", e.tsName, union(vals))
	}

	missing := []string{}
	for _, s := range structsToGenerate {
		si, ok := g.structs[s.key]
		if !ok {
			missing = append(missing, s.key)
			continue
		}
		partial := !strings.HasPrefix(s.key, "protocol:")
		fmt.Fprintf(&buf, "/** Generated from Go struct: %s */\n", s.key)
		fmt.Fprintf(&buf, "export interface %s {\n", s.tsName)
		for _, f := range si.fields {
			opt := ""
			if partial || f.optional {
				opt = "?"
			}
			fmt.Fprintf(&buf, "  %s%s: %s\n", f.jsonName, opt, g.tsType(f.goType))
		}
		buf.WriteString("}\n\n")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		fmt.Fprintf(os.Stderr, "warning: structs not found: %s\n", strings.Join(missing, ", "))
	}
	return buf.Bytes()
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "typegen: "+format+"\n", args...)
	os.Exit(1)
}
