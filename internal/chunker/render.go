package chunker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/specwise/specchat/internal/openapi"
)

// Rendering turns tree nodes into the natural-language text that gets
// embedded. The output deliberately reads like prose rather than raw JSON:
// embedding models rank descriptive sentences far better than punctuation.

func renderInfo(info map[string]any) string {
	var b strings.Builder

	title := str(info["title"])
	version := str(info["version"])
	switch {
	case title != "" && version != "":
		fmt.Fprintf(&b, "API: %s (version %s).", title, version)
	case title != "":
		fmt.Fprintf(&b, "API: %s.", title)
	default:
		b.WriteString("API specification.")
	}

	if desc := str(info["description"]); desc != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(desc))
	}

	if contact, ok := openapi.AsMap(info["contact"]); ok {
		var parts []string
		for _, key := range []string{"name", "email", "url"} {
			if v := str(contact[key]); v != "" {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, "\nContact: %s.", strings.Join(parts, ", "))
		}
	}

	if license, ok := openapi.AsMap(info["license"]); ok {
		if name := str(license["name"]); name != "" {
			fmt.Fprintf(&b, "\nLicense: %s.", name)
		}
	}

	return b.String()
}

// renderOperation returns the operation text as sections: a header section,
// a parameters section, and one section per response code. Sections are the
// natural split boundaries when the rendered text exceeds the size cap.
func renderOperation(path, method string, op, pathEntry map[string]any) []string {
	var sections []string

	var head strings.Builder
	fmt.Fprintf(&head, "%s %s", strings.ToUpper(method), path)
	if summary := str(op["summary"]); summary != "" {
		fmt.Fprintf(&head, "\nSummary: %s", strings.TrimSpace(summary))
	}
	if desc := str(op["description"]); desc != "" {
		fmt.Fprintf(&head, "\nDescription: %s", strings.TrimSpace(desc))
	}
	if opID := str(op["operationId"]); opID != "" {
		fmt.Fprintf(&head, "\nOperation ID: %s", opID)
	}
	if deprecated, _ := op["deprecated"].(bool); deprecated {
		head.WriteString("\nThis operation is deprecated.")
	}
	sections = append(sections, head.String())

	// Path-level parameters apply to every method under the entry.
	params := listOfMaps(pathEntry["parameters"])
	params = append(params, listOfMaps(op["parameters"])...)
	if len(params) > 0 {
		var b strings.Builder
		b.WriteString("Parameters:")
		for _, p := range params {
			b.WriteString("\n- ")
			b.WriteString(renderParameter(p))
		}
		sections = append(sections, b.String())
	}

	if body, ok := openapi.AsMap(op["requestBody"]); ok {
		sections = append(sections, renderRequestBody(body))
	}

	if responses, ok := openapi.AsMap(op["responses"]); ok {
		for _, code := range sortedKeys(responses) {
			var b strings.Builder
			fmt.Fprintf(&b, "Response %s", code)
			if resp, ok := openapi.AsMap(responses[code]); ok {
				if desc := str(resp["description"]); desc != "" {
					fmt.Fprintf(&b, ": %s", strings.TrimSpace(desc))
				}
				if ref := refName(resp["$ref"]); ref != "" {
					fmt.Fprintf(&b, " (see %s)", ref)
				}
			}
			sections = append(sections, b.String())
		}
	}

	return sections
}

func renderParameter(p map[string]any) string {
	name := str(p["name"])
	if name == "" {
		if ref := refName(p["$ref"]); ref != "" {
			return fmt.Sprintf("reference to parameter %s", ref)
		}
		name = "(unnamed)"
	}

	var attrs []string
	if in := str(p["in"]); in != "" {
		attrs = append(attrs, "in "+in)
	}
	if required, _ := p["required"].(bool); required {
		attrs = append(attrs, "required")
	} else {
		attrs = append(attrs, "optional")
	}
	if schema, ok := openapi.AsMap(p["schema"]); ok {
		if t := str(schema["type"]); t != "" {
			attrs = append(attrs, t)
		}
	} else if t := str(p["type"]); t != "" {
		// Swagger 2.0 keeps the type on the parameter itself.
		attrs = append(attrs, t)
	}

	out := fmt.Sprintf("%s (%s)", name, strings.Join(attrs, ", "))
	if desc := str(p["description"]); desc != "" {
		out += ": " + strings.TrimSpace(desc)
	}
	return out
}

func renderRequestBody(body map[string]any) string {
	var b strings.Builder
	b.WriteString("Request body")
	if required, _ := body["required"].(bool); required {
		b.WriteString(" (required)")
	}
	if desc := str(body["description"]); desc != "" {
		fmt.Fprintf(&b, ": %s", strings.TrimSpace(desc))
	}
	if content, ok := openapi.AsMap(body["content"]); ok {
		types := sortedKeys(content)
		if len(types) > 0 {
			fmt.Fprintf(&b, ". Content types: %s.", strings.Join(types, ", "))
		}
	}
	return b.String()
}

// renderComponent returns the component text as sections: a header and, for
// schemas, one section per property group.
func renderComponent(kind, name string, node map[string]any) []string {
	var sections []string

	var head strings.Builder
	fmt.Fprintf(&head, "Component %s: %s.", kind, name)
	if t := str(node["type"]); t != "" {
		fmt.Fprintf(&head, " Type: %s.", t)
	}
	if desc := str(node["description"]); desc != "" {
		fmt.Fprintf(&head, "\n%s", strings.TrimSpace(desc))
	}
	if in := str(node["in"]); in != "" {
		fmt.Fprintf(&head, "\nLocation: %s.", in)
	}
	if scheme := str(node["scheme"]); scheme != "" {
		fmt.Fprintf(&head, "\nScheme: %s.", scheme)
	}
	sections = append(sections, head.String())

	if properties, ok := openapi.AsMap(node["properties"]); ok {
		required := requiredSet(node["required"])
		for _, prop := range sortedKeys(properties) {
			var b strings.Builder
			fmt.Fprintf(&b, "Property %s", prop)
			var attrs []string
			if spec, ok := openapi.AsMap(properties[prop]); ok {
				if t := str(spec["type"]); t != "" {
					attrs = append(attrs, t)
				}
				if format := str(spec["format"]); format != "" {
					attrs = append(attrs, format)
				}
				if ref := refName(spec["$ref"]); ref != "" {
					attrs = append(attrs, "references "+ref)
				}
			}
			if required[prop] {
				attrs = append(attrs, "required")
			}
			if len(attrs) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(attrs, ", "))
			}
			if spec, ok := openapi.AsMap(properties[prop]); ok {
				if desc := str(spec["description"]); desc != "" {
					fmt.Fprintf(&b, ": %s", strings.TrimSpace(desc))
				}
			}
			sections = append(sections, b.String())
		}
	}

	return sections
}

// collectRefs gathers the immediate $ref target names anywhere under node.
// The walk covers the node's own subtree only; targets are not resolved.
func collectRefs(node map[string]any) []string {
	seen := make(map[string]bool)
	walkRefs(node, seen)
	if len(seen) == 0 {
		return nil
	}
	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

func walkRefs(v any, seen map[string]bool) {
	switch node := v.(type) {
	case map[string]any:
		if ref := refName(node["$ref"]); ref != "" {
			seen[ref] = true
		}
		for _, child := range node {
			walkRefs(child, seen)
		}
	case map[any]any:
		if m, ok := openapi.AsMap(node); ok {
			walkRefs(m, seen)
		}
	case []any:
		for _, child := range node {
			walkRefs(child, seen)
		}
	}
}

func refName(v any) string {
	ref := str(v)
	if ref == "" {
		return ""
	}
	if idx := strings.LastIndex(ref, "/"); idx >= 0 {
		return ref[idx+1:]
	}
	return ref
}

func requiredSet(v any) map[string]bool {
	set := make(map[string]bool)
	if list, ok := v.([]any); ok {
		for _, item := range list {
			if name := str(item); name != "" {
				set[name] = true
			}
		}
	}
	return set
}

func listOfMaps(v any) []map[string]any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range list {
		if m, ok := openapi.AsMap(item); ok {
			out = append(out, m)
		}
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
