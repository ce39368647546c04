package mailing

import (
	"testing"
)

func TestTemplateRender(t *testing.T) {
	ts := NewTemplateService()

	tests := []struct {
		name     string
		template string
		ctx      map[string]interface{}
		want     string
	}{
		{
			name:     "simple substitution",
			template: "Hi, I saw the {{ role }} opening at {{ company }}.",
			ctx:      map[string]interface{}{"role": "Backend Engineer", "company": "Acme"},
			want:     "Hi, I saw the Backend Engineer opening at Acme.",
		},
		{
			name:     "default filter",
			template: `Hello {{ name | default: "there" }}!`,
			ctx:      map[string]interface{}{},
			want:     "Hello there!",
		},
		{
			name:     "capitalize filter",
			template: "{{ company | capitalize }}",
			ctx:      map[string]interface{}{"company": "acme corp"},
			want:     "Acme corp",
		},
		{
			name:     "email_domain filter",
			template: "{{ to | email_domain }}",
			ctx:      map[string]interface{}{"to": "jane@acme.example"},
			want:     "acme.example",
		},
		{
			name:     "no template syntax passes through",
			template: "<p>Plain body, no merge fields.</p>",
			ctx:      map[string]interface{}{},
			want:     "<p>Plain body, no merge fields.</p>",
		},
		{
			name:     "broken template returns original",
			template: "Hello {{ unclosed",
			ctx:      map[string]interface{}{},
			want:     "Hello {{ unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ts.Render("", tt.template, tt.ctx)
			if got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTemplateRenderCached(t *testing.T) {
	ts := NewTemplateService()
	tpl := "Hi {{ role }}"

	first := ts.Render("greeting", tpl, map[string]interface{}{"role": "SRE"})
	if first != "Hi SRE" {
		t.Fatalf("first render = %q", first)
	}

	// Second render hits the cache and must still apply the new context.
	second := ts.Render("greeting", tpl, map[string]interface{}{"role": "Platform Engineer"})
	if second != "Hi Platform Engineer" {
		t.Errorf("cached render = %q, want fresh context applied", second)
	}
}
