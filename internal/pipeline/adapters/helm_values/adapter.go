// Package helmvalues rewrites the image section of Helm values documents.
package helmvalues

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nathantilsley/release-pilot/internal/pipeline/domain"
)

// Adapter implements ports.ValuesRewriterPort by editing the YAML node tree
// in place, so comments and unrelated keys survive the rewrite.
type Adapter struct{}

// New creates a new values rewriter.
func New() *Adapter {
	return &Adapter{}
}

// Rewrite sets image.repository and image.tag in the values document. It
// returns the original bytes and changed=false when both fields already hold
// the requested values. A document without a top-level image mapping fails
// with domain.ErrNoImageConfig.
func (a *Adapter) Rewrite(doc []byte, repository, tag string) ([]byte, bool, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(doc, &root); err != nil {
		return nil, false, fmt.Errorf("parsing values document: %w", err)
	}

	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, false, fmt.Errorf("%w: empty values document", domain.ErrNoImageConfig)
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, false, fmt.Errorf("%w: values document is not a mapping", domain.ErrNoImageConfig)
	}

	image := childValue(mapping, "image")
	if image == nil || image.Kind != yaml.MappingNode {
		return nil, false, fmt.Errorf("%w: no image mapping", domain.ErrNoImageConfig)
	}

	repoChanged := setScalar(image, "repository", repository, 0)
	tagChanged := setScalar(image, "tag", tag, yaml.DoubleQuotedStyle)

	if !repoChanged && !tagChanged {
		return doc, false, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return nil, false, fmt.Errorf("encoding values document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, false, fmt.Errorf("closing encoder: %w", err)
	}

	return buf.Bytes(), true, nil
}

// childValue returns the value node for a key in a mapping, or nil.
func childValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// setScalar sets key to value in a mapping, appending the pair when the key
// is absent. Reports whether the mapping was modified.
func setScalar(m *yaml.Node, key, value string, style yaml.Style) bool {
	if existing := childValue(m, key); existing != nil {
		if existing.Value == value {
			return false
		}
		existing.SetString(value)
		existing.Style = style
		return true
	}

	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
	valNode := &yaml.Node{Kind: yaml.ScalarNode}
	valNode.SetString(value)
	valNode.Style = style
	m.Content = append(m.Content, keyNode, valNode)
	return true
}
