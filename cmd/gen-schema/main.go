// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Command gen-schema generates the configuration JSON Schema file. With
// --check it only verifies that the committed file is current.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/bazaarcore/identity/internal/config"
)

func main() {
	out := pflag.StringP("out", "o", filepath.Join("schemas", "identity.schema.json"), "schema file to write")
	check := pflag.Bool("check", false, "fail if the schema file differs from the generated schema")
	pflag.Parse()

	if err := run(*out, *check, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string, check bool, w io.Writer) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return oops.In("gen-schema").Wrapf(err, "generate schema")
	}
	schema = append(schema, '\n')

	if check {
		current, err := os.ReadFile(outPath)
		if err != nil {
			return oops.In("gen-schema").With("path", outPath).Wrapf(err, "read schema")
		}
		if !bytes.Equal(current, schema) {
			return oops.In("gen-schema").With("path", outPath).
				Errorf("%s is stale; run gen-schema to regenerate it", outPath)
		}
		fmt.Fprintf(w, "%s is up to date\n", outPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return oops.In("gen-schema").With("path", outPath).Wrapf(err, "create directory")
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return oops.In("gen-schema").With("path", outPath).Wrapf(err, "write schema")
	}
	fmt.Fprintf(w, "Generated %s\n", outPath)
	return nil
}
