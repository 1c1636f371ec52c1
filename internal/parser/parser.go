// Package parser extracts display metadata from an application bundle's Info.plist.
package parser

import (
	"fmt"
	"strings"

	"howett.net/plist"
)

// Result holds the bundle fields the launcher cares about.
type Result struct {
	Name        string
	DisplayName string
	Identifier  string
	IconFile    string
	// Format is the detected encoding: "XML", "Binary", "OpenStep" or "GNUStep".
	Format string
}

// Title returns the best display name: CFBundleDisplayName, then CFBundleName.
func (r *Result) Title() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Name
}

// Parse decodes an Info.plist in any encoding. Keys whose values are not
// strings are ignored.
func Parse(data []byte) (*Result, error) {
	var values map[string]any
	format, err := plist.Unmarshal(data, &values)
	if err != nil {
		return nil, fmt.Errorf("parser: decode plist: %w", err)
	}

	str := func(key string) string {
		s, _ := values[key].(string)
		return strings.TrimSpace(s)
	}

	icon := str("CFBundleIconFile")
	if icon == "" {
		icon = str("CFBundleIconName")
	}
	if icon != "" && !strings.Contains(icon, ".") {
		icon += ".icns"
	}

	return &Result{
		Name:        str("CFBundleName"),
		DisplayName: str("CFBundleDisplayName"),
		Identifier:  str("CFBundleIdentifier"),
		IconFile:    icon,
		Format:      plist.FormatNames[format],
	}, nil
}
