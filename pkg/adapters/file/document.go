package file

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/cvflow/pkg/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	"gopkg.in/yaml.v3"
)

// Format names a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// extensions lists the recognised file extensions in lookup order.
var extensions = []string{".json", ".yaml", ".yml", ".hcl"}

// FormatOf infers the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("unsupported document extension %q", filepath.Ext(path))
	}
}

// LoadDocument reads a pipeline document from disk. The format follows
// the file extension. A document without a name takes the file's base name.
func LoadDocument(path string) (*domain.GraphDocument, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := Decode(path, data, format)
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		base := filepath.Base(path)
		doc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return doc, nil
}

// Decode parses data in the given format. filename is used for diagnostics.
func Decode(filename string, data []byte, format Format) (*domain.GraphDocument, error) {
	var doc domain.GraphDocument
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
		}
	case FormatHCL:
		return decodeHCL(filename, data)
	default:
		return nil, fmt.Errorf("unsupported document format %q", format)
	}
	return &doc, nil
}

// Encode renders a document. HCL is read-only.
func Encode(doc *domain.GraphDocument, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("cannot encode documents as %q", format)
	}
}

// hclFile is the top-level structure of a pipeline written in HCL:
//
//	name = "blur"
//
//	node "k" {
//	  type       = "GausKernel"
//	  properties = { sigma = 1.5 }
//	}
//
//	connection {
//	  source = "k"
//	  target = "sum"
//	}
type hclFile struct {
	Name        string          `hcl:"name,optional"`
	Nodes       []hclNode       `hcl:"node,block"`
	Connections []hclConnection `hcl:"connection,block"`
}

type hclNode struct {
	ID         string         `hcl:"id,label"`
	Type       string         `hcl:"type"`
	Category   string         `hcl:"category,optional"`
	Properties hcl.Expression `hcl:"properties,optional"`
}

type hclConnection struct {
	Source     string `hcl:"source"`
	SourcePort int    `hcl:"source_port,optional"`
	Target     string `hcl:"target"`
	TargetPort int    `hcl:"target_port,optional"`
}

func decodeHCL(filename string, data []byte) (*domain.GraphDocument, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	doc := &domain.GraphDocument{Name: parsed.Name}
	for _, n := range parsed.Nodes {
		spec := domain.NodeSpec{ID: n.ID, Type: n.Type, Category: n.Category}
		if n.Properties != nil {
			val, diags := n.Properties.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("node %q: %w", n.ID, diags)
			}
			props, err := ctyToNative(val)
			if err != nil {
				return nil, fmt.Errorf("node %q properties: %w", n.ID, err)
			}
			if props != nil {
				m, ok := props.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("node %q: properties must be an object", n.ID)
				}
				spec.Properties = m
			}
		}
		doc.Nodes = append(doc.Nodes, spec)
	}
	for _, c := range parsed.Connections {
		doc.Connections = append(doc.Connections, domain.Connection{
			Source:     c.Source,
			SourcePort: c.SourcePort,
			Target:     c.Target,
			TargetPort: c.TargetPort,
		})
	}
	return doc, nil
}

// ctyToNative converts a cty value to plain Go values. Numbers become
// float64, tuples and lists []any, objects and maps map[string]any.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, err
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}
