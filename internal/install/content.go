package install

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"
)

const fence = "---"

// splitFrontmatter separates a leading YAML frontmatter block from the body.
// ok is false when content has no frontmatter.
func splitFrontmatter(content []byte) (front, body []byte, ok bool) {
	s := string(content)
	nl := "\n"
	if strings.HasPrefix(s, fence+"\r\n") {
		nl = "\r\n"
	} else if !strings.HasPrefix(s, fence+"\n") {
		return nil, content, false
	}
	rest := s[len(fence)+len(nl):]
	if strings.HasPrefix(rest, fence+nl) || rest == fence {
		return nil, []byte(strings.TrimPrefix(strings.TrimPrefix(rest, fence), nl)), true
	}
	end := strings.Index(rest, nl+fence+nl)
	if end < 0 {
		if strings.HasSuffix(rest, nl+fence) {
			return []byte(rest[:len(rest)-len(nl+fence)] + nl), nil, true
		}
		return nil, content, false
	}
	return []byte(rest[:end+len(nl)]), []byte(rest[end+len(nl+fence+nl):]), true
}

// mergePlatformFrontmatter applies the platforms.<id> block of markdown
// frontmatter over the top-level keys and drops the platforms key. Content
// without a platforms key is returned unchanged.
func mergePlatformFrontmatter(content []byte, platformID string) ([]byte, error) {
	front, body, ok := splitFrontmatter(content)
	if !ok || len(front) == 0 {
		return content, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(front, &doc); err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return content, nil
	}
	root := doc.Content[0]

	platformsIdx := -1
	for i := 0; i < len(root.Content); i += 2 {
		if root.Content[i].Value == "platforms" {
			platformsIdx = i
			break
		}
	}
	if platformsIdx < 0 {
		return content, nil
	}

	var override *yaml.Node
	if pm := root.Content[platformsIdx+1]; pm.Kind == yaml.MappingNode {
		for i := 0; i < len(pm.Content); i += 2 {
			if pm.Content[i].Value == platformID && pm.Content[i+1].Kind == yaml.MappingNode {
				override = pm.Content[i+1]
			}
		}
	}

	merged := &yaml.Node{Kind: yaml.MappingNode, Tag: root.Tag, Style: root.Style}
	for i := 0; i < len(root.Content); i += 2 {
		if i == platformsIdx {
			continue
		}
		merged.Content = append(merged.Content, root.Content[i], root.Content[i+1])
	}
	if override != nil {
		for i := 0; i < len(override.Content); i += 2 {
			k, v := override.Content[i], override.Content[i+1]
			replaced := false
			for j := 0; j < len(merged.Content); j += 2 {
				if merged.Content[j].Value == k.Value {
					merged.Content[j+1] = v
					replaced = true
					break
				}
			}
			if !replaced {
				merged.Content = append(merged.Content, k, v)
			}
		}
	}

	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	if len(merged.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(merged); err != nil {
			return nil, fmt.Errorf("encoding frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding frontmatter: %w", err)
		}
	}
	buf.WriteString(fence + "\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

// tomlCommand is the command file layout of TOML-based platforms.
type tomlCommand struct {
	Description string `toml:"description,omitempty"`
	Prompt      string `toml:"prompt,multiline"`
}

// markdownToTOML converts a markdown command into a TOML command: the
// frontmatter description becomes description and the body becomes prompt.
func markdownToTOML(content []byte) ([]byte, error) {
	cmd := tomlCommand{Prompt: string(content)}
	if front, body, ok := splitFrontmatter(content); ok {
		var meta struct {
			Description string `yaml:"description"`
		}
		if len(front) > 0 {
			if err := yaml.Unmarshal(front, &meta); err != nil {
				return nil, fmt.Errorf("parsing frontmatter: %w", err)
			}
		}
		cmd.Description = meta.Description
		cmd.Prompt = strings.TrimLeft(string(body), "\r\n")
	}
	out, err := toml.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encoding toml: %w", err)
	}
	return out, nil
}

// render produces the bytes written for t.
func render(t *target) ([]byte, error) {
	content := t.Content
	src := path.Ext(t.Source)
	if src != ".md" && src != ".mdc" {
		return content, nil
	}
	if t.Platform != "" {
		var err error
		content, err = mergePlatformFrontmatter(content, t.Platform)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Source, err)
		}
	}
	if path.Ext(t.Path) == ".toml" {
		out, err := markdownToTOML(content)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Source, err)
		}
		return out, nil
	}
	return content, nil
}
