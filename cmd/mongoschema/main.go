package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	mongoschema "github.com/reoring/mongoschema"
	"github.com/reoring/mongoschema/shapedef"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "derive":
		deriveCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "mongoschema CLI\n\nUsage:\n  mongoschema derive -f shapes.yaml [-type TypeName] [-collection name] [-pretty]\n\nNotes:\n  - Reads a YAML (or .json) shape definition file and prints the derived schema.\n  - With -collection the output is the create-collection command document\n    carrying the $jsonSchema validator.")
}

func deriveCmd(args []string) {
	fs := flag.NewFlagSet("derive", flag.ExitOnError)
	var file string
	var typeName string
	var collection string
	var pretty bool
	fs.StringVar(&file, "f", "", "shape definition file (.yaml, .yml or .json)")
	fs.StringVar(&typeName, "type", "", "named type to derive (defaults to the file's root)")
	fs.StringVar(&collection, "collection", "", "emit a create-collection command for this collection name")
	fs.BoolVar(&pretty, "pretty", false, "indent the JSON output")
	_ = fs.Parse(args)
	if file == "" {
		fs.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		fatalf("read: %v", err)
	}
	var def *shapedef.File
	if strings.EqualFold(filepath.Ext(file), ".json") {
		def, err = shapedef.ParseJSON(data)
	} else {
		def, err = shapedef.Parse(data)
	}
	if err != nil {
		fatalf("parse: %v", err)
	}

	root := def.Root
	if typeName != "" {
		s, ok := def.Types[typeName]
		if !ok {
			fatalf("unknown type %q", typeName)
		}
		root = s
	}
	if root == nil {
		fatalf("no root shape; pass -type or add a root entry to the definition")
	}

	schema, err := mongoschema.Derive(root)
	if err != nil {
		fatalf("derive: %v", err)
	}
	out := schema
	if collection != "" {
		out = mongoschema.CreateCollection(collection, schema)
	}

	var encoded []byte
	if pretty {
		encoded, err = json.MarshalIndent(out, "", "  ")
	} else {
		encoded, err = json.Marshal(out)
	}
	if err != nil {
		fatalf("encode: %v", err)
	}
	fmt.Println(string(encoded))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "mongoschema: "+format+"\n", args...)
	os.Exit(1)
}
