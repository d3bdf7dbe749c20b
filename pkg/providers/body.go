package providers

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MergeDefaults sets each per-model default on body unless the body already
// carries that path. Keys use gjson/sjson dot paths so nested vendor fields
// ("generationConfig.temperature") can be defaulted.
func MergeDefaults(body []byte, defaults map[string]any) []byte {
	if len(defaults) == 0 {
		return body
	}

	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if gjson.GetBytes(body, key).Exists() {
			continue
		}
		out, err := sjson.SetBytes(body, key, defaults[key])
		if err != nil {
			slog.Debug("skipping model default", "key", key, "error", err)
			continue
		}
		body = out
	}
	return body
}

// JoinURL joins a base URL and path with exactly one slash between them.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
