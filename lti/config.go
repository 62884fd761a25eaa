// Package lti supports LTI 1.0 (provider) and 1.0 - 1.2 (consumer) launches.
//
// LTI is an open standard for re-using online education tools; the standards
// are available at http://www.imsglobal.org/lti/. A course can act as an LTI
// consumer (embedding content from other systems), as an LTI provider (making
// its content available to other systems), or both.
//
// Consumer configuration is a YAML list of tool definitions, each with a
// unique name, a description, the tool's launch URL, a security key and
// secret, and the LTI version the tool speaks. Provider configuration is a
// YAML list of key/secret pairs, one per consumer allowed to launch into the
// course; keys and secrets must each be unique within a course, and they are
// extremely sensitive values.
//
// Providers additionally require two custom fields on incoming launches:
// custom_cb_resource names the slug-relative resource to render after
// validation, and custom_cb_force_login optionally forces authentication for
// users who have no session yet.
package lti

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported LTI versions.
const (
	Version1p0 = "1.0"
	Version1p1 = "1.1"
	Version1p2 = "1.2"
)

var versions = map[string]bool{
	Version1p0: true,
	Version1p1: true,
	Version1p2: true,
}

const (
	errParseToolsYAML    = "Cannot parse tools config yaml"
	errParseSecurityYAML = "Cannot parse settings config yaml"
)

// ToolConfig describes one LTI tool available to the consumer side of a course.
type ToolConfig struct {
	Description string
	Key         string
	Name        string
	Secret      string
	URL         string
	Version     string
}

func (c ToolConfig) String() string {
	return fmt.Sprintf("LTI Tool Config(%s, LTI %s)", c.Name, c.Version)
}

// SecurityConfig is one consumer credential pair accepted by the provider side
// of a course.
type SecurityConfig struct {
	Key    string
	Secret string
}

// String omits the secret to prevent e.g. logging it in a bad place.
func (c SecurityConfig) String() string {
	return fmt.Sprintf("LTI Security Config(%s)", c.Key)
}

// ParseTools parses the tools YAML into a map of tool name to config. The
// input is a list of entries with description, key, name, secret, url, and
// version keys; names must be unique and versions must be supported. Empty
// input yields an empty map.
func ParseTools(raw string) (map[string]ToolConfig, error) {
	entries, err := loadYAMLList(raw, errParseToolsYAML)
	if err != nil {
		return nil, err
	}

	nameToConfig := make(map[string]ToolConfig)
	for _, entry := range entries {
		pairs, err := mappingPairs(entry)
		if err != nil {
			return nil, errors.New(errParseToolsYAML)
		}
		config := ToolConfig{}
		present := map[string]bool{}
		for key, value := range pairs {
			present[key] = true
			switch key {
			case "description":
				config.Description = value
			case "key":
				config.Key = value
			case "name":
				config.Name = value
			case "secret":
				config.Secret = value
			case "url":
				config.URL = value
			case "version":
				config.Version = value
			}
		}
		for _, required := range []string{"description", "key", "name", "secret", "url", "version"} {
			if !present[required] {
				return nil, errors.New(errParseToolsYAML)
			}
		}
		if !versions[config.Version] {
			choices := make([]string, 0, len(versions))
			for v := range versions {
				choices = append(choices, v)
			}
			sort.Strings(choices)
			return nil, fmt.Errorf("Unsupported version: %s; choices are %s",
				config.Version, strings.Join(choices, ", "))
		}
		if _, dup := nameToConfig[config.Name]; dup {
			return nil, fmt.Errorf("Name is not unique: %s", config.Name)
		}
		nameToConfig[config.Name] = config
	}
	return nameToConfig, nil
}

// ParseSecurity parses the security YAML into a map of consumer key to config.
// The input is a list of single-pair maps of key to secret; keys and secrets
// must each be unique. Empty input yields an empty map.
func ParseSecurity(raw string) (map[string]SecurityConfig, error) {
	entries, err := loadYAMLList(raw, errParseSecurityYAML)
	if err != nil {
		return nil, err
	}

	keyToConfig := make(map[string]SecurityConfig)
	seenSecrets := make(map[string]bool)
	for _, entry := range entries {
		pairs, err := mappingPairs(entry)
		if err != nil || len(pairs) != 1 {
			return nil, errors.New(errParseSecurityYAML)
		}
		for key, secret := range pairs {
			if _, dup := keyToConfig[key]; dup {
				return nil, fmt.Errorf("Key is not unique: %s", key)
			}
			if seenSecrets[secret] {
				return nil, fmt.Errorf("Secret is not unique: %s", secret)
			}
			keyToConfig[key] = SecurityConfig{Key: key, Secret: secret}
			seenSecrets[secret] = true
		}
	}
	return keyToConfig, nil
}

func loadYAMLList(raw, parseError string) ([]*yaml.Node, error) {
	if raw == "" {
		return nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, errors.New(parseError)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.SequenceNode {
		return nil, errors.New(parseError)
	}
	return root.Content, nil
}

// mappingPairs flattens a YAML mapping node into scalar key/value text. Using
// the node text instead of decoded values keeps numeric-looking keys, secrets,
// and versions (e.g. 1.0) in their original spelling.
func mappingPairs(node *yaml.Node) (map[string]string, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("not a mapping")
	}
	pairs := make(map[string]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return nil, errors.New("not a scalar pair")
		}
		pairs[key.Value] = value.Value
	}
	return pairs, nil
}
