package parser

import (
	"testing"

	"howett.net/plist"
)

const safariPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleName</key>
	<string>Safari</string>
	<key>CFBundleIdentifier</key>
	<string>com.apple.Safari</string>
	<key>CFBundleIconFile</key>
	<string>AppIcon</string>
	<key>LSRequiresNativeExecution</key>
	<true/>
	<key>CFBundleURLTypes</key>
	<array>
		<dict>
			<key>CFBundleURLName</key>
			<string>Web site URL</string>
		</dict>
	</array>
</dict>
</plist>
`

func TestParse_TopLevelStrings(t *testing.T) {
	r, err := Parse([]byte(safariPlist))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "Safari" {
		t.Errorf("name = %q, want Safari", r.Name)
	}
	if r.Identifier != "com.apple.Safari" {
		t.Errorf("identifier = %q", r.Identifier)
	}
	if r.IconFile != "AppIcon.icns" {
		t.Errorf("icon = %q, want AppIcon.icns", r.IconFile)
	}
	if r.Format != "XML" {
		t.Errorf("format = %q, want XML", r.Format)
	}
}

func TestParse_DisplayNamePreferred(t *testing.T) {
	data := []byte(`<plist><dict>
<key>CFBundleName</key><string>Code</string>
<key>CFBundleDisplayName</key><string>Visual Studio Code</string>
</dict></plist>`)
	r, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title() != "Visual Studio Code" {
		t.Errorf("title = %q", r.Title())
	}
}

func TestParse_KeyWithoutStringValue(t *testing.T) {
	data := []byte(`<plist><dict>
<key>CFBundleName</key><integer>3</integer>
<key>CFBundleIconFile</key><string>icon.png</string>
</dict></plist>`)
	r, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "" {
		t.Errorf("name = %q, want empty", r.Name)
	}
	if r.IconFile != "icon.png" {
		t.Errorf("icon = %q, want icon.png", r.IconFile)
	}
}

func TestParse_Binary(t *testing.T) {
	data, err := plist.Marshal(map[string]any{
		"CFBundleName":        "Xcode",
		"CFBundleDisplayName": "Xcode Beta",
		"CFBundleIconName":    "AppIcon",
		"CFBundleVersion":     uint64(22),
		"LSUIElement":         false,
	}, plist.BinaryFormat)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:8]) != "bplist00" {
		t.Fatalf("fixture is not a binary plist: %q", data[:8])
	}

	r, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Format != "Binary" {
		t.Errorf("format = %q, want Binary", r.Format)
	}
	if r.Title() != "Xcode Beta" || r.Name != "Xcode" {
		t.Errorf("title = %q, name = %q", r.Title(), r.Name)
	}
	if r.IconFile != "AppIcon.icns" {
		t.Errorf("icon = %q, want AppIcon.icns", r.IconFile)
	}
}

func TestParse_CorruptBinary(t *testing.T) {
	if _, err := Parse([]byte("bplist00\x00\x01")); err == nil {
		t.Error("expected error for truncated binary plist")
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse([]byte(`<plist><dict><key>a</key>`)); err == nil {
		t.Error("expected error for truncated plist")
	}
}
