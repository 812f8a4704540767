package manifest

import "strings"

// ToPascalCase turns a dependency name into a constant segment:
// "my-app" -> "MyApp", "models" -> "Models", "myApp" -> "MyApp".
func ToPascalCase(s string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' }) {
		for _, w := range splitCamel(part) {
			b.WriteString(strings.ToUpper(w[:1]))
			b.WriteString(strings.ToLower(w[1:]))
		}
	}
	return b.String()
}

// splitCamel splits s at every lowercase-to-uppercase boundary.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i := 1; i < len(s); i++ {
		if s[i-1] >= 'a' && s[i-1] <= 'z' && s[i] >= 'A' && s[i] <= 'Z' {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// coreClasses and coreModules are the constants every runtime installs
// at boot.
var coreClasses = map[string]bool{
	"BasicObject": true,
	"Object":      true,
	"Module":      true,
	"Class":       true,
	"NilClass":    true,
	"TrueClass":   true,
	"FalseClass":  true,
	"Numeric":     true,
	"Integer":     true,
	"Float":       true,
	"String":      true,
	"Symbol":      true,
}

var coreModules = map[string]bool{
	"Kernel":     true,
	"Comparable": true,
}

// IsCoreClass reports whether name is a class installed at boot.
func IsCoreClass(name string) bool { return coreClasses[name] }

// IsCoreModule reports whether name is a module installed at boot.
func IsCoreModule(name string) bool { return coreModules[name] }

// IsReservedNamespace reports whether name is a core constant that
// must not be used as the root segment of a dependency namespace.
// Only the root segment is checked: "ThirdParty::String" is fine
// because the root is "ThirdParty".
func IsReservedNamespace(name string) bool {
	root := name
	if idx := strings.Index(name, "::"); idx >= 0 {
		root = name[:idx]
	}
	return coreClasses[root] || coreModules[root]
}
