// Package registry is a read-only, keyed store of parameterized
// message templates grouped by namespace (database help, security
// warnings, error messages). It never returns an error: unknown keys
// and formatting failures degrade to a documented fallback string.
package registry

import (
	"embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templatesFS embed.FS

const missingFallback = "[no template for key %q]"

// Registry loads and caches the three template namespaces the spec
// names: per-database-type help, security warnings, and error
// messages. Zero value is not usable; construct with New.
type Registry struct {
	help     map[string]map[string]string
	security map[string]string
	errors   map[string]string
}

// New loads all three namespaces from the embedded templates and
// returns a ready-to-use Registry. A load failure is fatal (these are
// build-time assets, not runtime input), matching the teacher's own
// treatment of embedded migrations.
func New() (*Registry, error) {
	helpByType, err := loadHelpNamespace()
	if err != nil {
		return nil, fmt.Errorf("registry: load help templates: %w", err)
	}
	security, err := loadFlatNamespace("templates/security.yaml")
	if err != nil {
		return nil, fmt.Errorf("registry: load security templates: %w", err)
	}
	errs, err := loadFlatNamespace("templates/errors.yaml")
	if err != nil {
		return nil, fmt.Errorf("registry: load error templates: %w", err)
	}

	return &Registry{
		help:     helpByType,
		security: security,
		errors:   errs,
	}, nil
}

func loadHelpNamespace() (map[string]map[string]string, error) {
	data, err := templatesFS.ReadFile("templates/help.yaml")
	if err != nil {
		return nil, err
	}
	var parsed map[string]map[string]string
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

func loadFlatNamespace(path string) (map[string]string, error) {
	data, err := templatesFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed map[string]string
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return parsed, nil
}

// DatabaseHelp returns the help snippet for dbType/helpKey. An empty
// or unknown dbType or helpKey returns a fallback string naming the
// missing key; this never throws.
func (r *Registry) DatabaseHelp(dbType, helpKey string) string {
	if dbType == "" || helpKey == "" {
		return fmt.Sprintf(missingFallback, dbType+"/"+helpKey)
	}
	keys, ok := r.help[dbType]
	if !ok {
		return fmt.Sprintf(missingFallback, dbType+"/"+helpKey)
	}
	tmpl, ok := keys[helpKey]
	if !ok {
		return fmt.Sprintf(missingFallback, dbType+"/"+helpKey)
	}
	return tmpl
}

// SecurityWarning formats the security namespace template named
// warningKey with params substituted for {0}, {1}, …. Unknown keys
// return a fallback string; too few params return the unformatted
// template and log a WARN, per the never-throws contract.
func (r *Registry) SecurityWarning(warningKey string, params ...any) string {
	return formatNamespace(r.security, "security", warningKey, params...)
}

// ErrorMessage formats the errors namespace template named errorKey
// with params substituted for {0}, {1}, …, with the same fallback and
// under-formatting behavior as SecurityWarning.
func (r *Registry) ErrorMessage(errorKey string, params ...any) string {
	return formatNamespace(r.errors, "errors", errorKey, params...)
}

func formatNamespace(ns map[string]string, nsName, key string, params ...any) string {
	if key == "" {
		return fmt.Sprintf(missingFallback, nsName+"/"+key)
	}
	tmpl, ok := ns[key]
	if !ok {
		return fmt.Sprintf(missingFallback, nsName+"/"+key)
	}
	out, ok := substitutePositional(tmpl, params)
	if !ok {
		slog.Warn("registry: too few arguments for template",
			"namespace", nsName, "key", key, "template", tmpl, "params", len(params))
		return tmpl
	}
	return out
}

// substitutePositional replaces every {N} placeholder present in tmpl
// with params[N]. Returns ok=false if any placeholder it finds
// references an index beyond len(params), in which case the template
// is returned unsubstituted by the caller.
func substitutePositional(tmpl string, params []any) (string, bool) {
	var b strings.Builder
	ok := true
	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' {
			if end := strings.IndexByte(tmpl[i:], '}'); end > 0 {
				idxStr := tmpl[i+1 : i+end]
				if n, err := strconv.Atoi(idxStr); err == nil {
					if n >= 0 && n < len(params) {
						fmt.Fprintf(&b, "%v", params[n])
					} else {
						ok = false
						b.WriteString(tmpl[i : i+end+1])
					}
					i += end + 1
					continue
				}
			}
		}
		b.WriteByte(tmpl[i])
		i++
	}
	if !ok {
		return tmpl, false
	}
	return b.String(), true
}
