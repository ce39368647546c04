// Package mailing composes and dispatches outreach emails: Liquid
// personalization, click-link rewriting, open-pixel injection, and delivery
// through SES or an SMTP relay.
package mailing

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// TemplateService renders Liquid templates with caching. Rendering is lax:
// a template that fails to parse or render comes back unchanged, so a bad
// merge field never blocks a send.
type TemplateService struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates a template service with custom filters.
func NewTemplateService() *TemplateService {
	ts := &TemplateService{
		engine: liquid.NewEngine(),
	}
	ts.registerCustomFilters()
	return ts
}

// registerCustomFilters adds filters used in outreach templates
func (ts *TemplateService) registerCustomFilters() {
	// Default value filter: {{ role | default: "your team" }}
	ts.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// Capitalize first letter: {{ company | capitalize }}
	ts.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	// URL encode: {{ email | urlencode }}
	ts.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// Extract domain from email: {{ email | email_domain }}
	ts.engine.RegisterFilter("email_domain", func(email string) string {
		parts := strings.Split(email, "@")
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	})
}

// Render processes a template with the given context. The parsed template is
// cached under cacheKey when one is provided. On any parse or render error
// the original text is returned.
func (ts *TemplateService) Render(cacheKey string, templateStr string, ctx map[string]interface{}) string {
	if cacheKey != "" {
		if cached, ok := ts.cache.Load(cacheKey); ok {
			tpl := cached.(*liquid.Template)
			out, err := tpl.RenderString(ctx)
			if err != nil {
				log.Printf("TemplateService: render error: %v", err)
				return templateStr
			}
			return out
		}
	}

	tpl, err := ts.engine.ParseString(templateStr)
	if err != nil {
		log.Printf("TemplateService: parse error: %v", err)
		return templateStr
	}

	if cacheKey != "" {
		ts.cache.Store(cacheKey, tpl)
	}

	out, err := tpl.RenderString(ctx)
	if err != nil {
		log.Printf("TemplateService: render error: %v", err)
		return templateStr
	}
	return out
}
