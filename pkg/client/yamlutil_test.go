/*
Copyright 2019 The MayaData Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package client

import (
	"strings"
	"testing"

	goyaml "gopkg.in/yaml.v2"
)

type fixtureDoc struct {
	Metadata struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
}

// fixtureNames decodes the name each document in a multi-document YAML
// fixture carries, using goyaml directly rather than
// YAMLToUnstructuredSlice, so the expectation in a table test doesn't
// depend on the same splitting logic it's checking. Mirrors
// third_party/kubernetes/yaml_test.go's use of goyaml as the reference
// decoder for fixture expectations.
func fixtureNames(t *testing.T, raw string) []string {
	t.Helper()
	dec := goyaml.NewDecoder(strings.NewReader(raw))
	var names []string
	for {
		var doc fixtureDoc
		if err := dec.Decode(&doc); err != nil {
			break
		}
		names = append(names, doc.Metadata.Name)
	}
	return names
}

func TestYAMLToUnstructured(t *testing.T) {
	u, err := YAMLToUnstructured([]byte(`
kind: ConfigMap
metadata:
  name: cm-a
  namespace: default
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.GetName() != "cm-a" || u.GetNamespace() != "default" {
		t.Fatalf("got name=%q namespace=%q, want cm-a/default", u.GetName(), u.GetNamespace())
	}
}

func TestYAMLToUnstructuredSliceMultiDoc(t *testing.T) {
	fixture := `
kind: ConfigMap
metadata:
  name: cm-a
---
kind: ConfigMap
metadata:
  name: cm-b
`
	docs, err := YAMLToUnstructuredSlice([]byte(fixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].GetName() != "cm-a" || docs[1].GetName() != "cm-b" {
		t.Fatalf("unexpected document order: %q, %q", docs[0].GetName(), docs[1].GetName())
	}

	want := fixtureNames(t, fixture)
	for i, name := range want {
		if docs[i].GetName() != name {
			t.Fatalf("document %d name = %q, want %q (per independent goyaml decode)", i, docs[i].GetName(), name)
		}
	}
}

func TestYAMLToUnstructuredSliceEmptyDocsDropped(t *testing.T) {
	docs, err := YAMLToUnstructuredSlice([]byte(`
kind: ConfigMap
metadata:
  name: cm-a
---
---
kind: ConfigMap
metadata:
  name: cm-b
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2 (empty doc should be dropped)", len(docs))
	}
}
