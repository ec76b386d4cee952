package util

import "strings"

// MaskSecret enmascara una credencial para logs: conserva el prefijo
// reconocible del tipo y los últimos 2 caracteres.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "***"
	}
	for _, p := range []string{"whsec_", "sk_", "sk-"} {
		if strings.HasPrefix(s, p) {
			return p + "…" + s[len(s)-2:]
		}
	}
	return s[:2] + "…" + s[len(s)-2:]
}
