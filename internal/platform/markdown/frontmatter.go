// Package markdown reads and writes notes that open with a YAML frontmatter
// block delimited by "---" lines.
package markdown

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	separator = "---\n"
	closing   = "\n---\n"
)

type Field struct {
	Key   string
	Value any
}

// Frontmatter keeps its keys in the order they were set.
type Frontmatter []Field

// Set replaces the value of key, or appends it.
func (f *Frontmatter) Set(key string, value any) {
	for i := range *f {
		if (*f)[i].Key == key {
			(*f)[i].Value = value
			return
		}
	}
	*f = append(*f, Field{Key: key, Value: value})
}

func (f Frontmatter) node() (*yaml.Node, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, field := range f {
		value := &yaml.Node{}
		if err := value.Encode(field.Value); err != nil {
			return nil, fmt.Errorf("encode frontmatter %s: %w", field.Key, err)
		}
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: field.Key},
			value,
		)
	}
	return mapping, nil
}

// Render writes meta as frontmatter followed by body. A blank line always
// separates the two.
func Render(meta Frontmatter, body string) (string, error) {
	node, err := meta.node()
	if err != nil {
		return "", err
	}
	raw, err := yaml.Marshal(node)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString(separator)
	b.Write(raw)
	b.WriteString(separator)
	if !strings.HasPrefix(body, "\n") {
		b.WriteString("\n")
	}
	b.WriteString(body)
	return b.String(), nil
}

// Parse splits content into its decoded frontmatter and the body after the
// closing separator. Content without frontmatter is returned whole.
func Parse(content string) (map[string]any, string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, separator) {
		return map[string]any{}, content, nil
	}
	rest := content[len(separator):]
	idx := strings.Index(rest, closing)
	if idx < 0 {
		return nil, "", fmt.Errorf("frontmatter is not closed")
	}
	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(rest[:idx]), &meta); err != nil {
		return nil, "", fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	return meta, rest[idx+len(closing):], nil
}
