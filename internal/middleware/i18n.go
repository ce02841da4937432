// internal/middleware/i18n.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nyasabox/nyasabox-api/internal/i18n"
)

func I18nMiddleware(defaultLang string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("lang", resolveLanguage(c.GetHeader("Accept-Language"), defaultLang))
		c.Next()
	}
}

// resolveLanguage picks the first Accept-Language entry we have a locale for,
// e.g. "ny-MW,ny;q=0.9,en;q=0.8".
func resolveLanguage(header, defaultLang string) string {
	supported := make(map[string]bool)
	for _, lang := range i18n.GetSupportedLanguages() {
		supported[lang] = true
	}

	for _, entry := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.Split(entry, ";")[0])
		if tag == "" {
			continue
		}
		base := strings.ToLower(strings.SplitN(strings.ReplaceAll(tag, "_", "-"), "-", 2)[0])
		if supported[base] {
			return base
		}
	}
	return defaultLang
}
