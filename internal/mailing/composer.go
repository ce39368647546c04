package mailing

// ComposeInput carries the caller-supplied pieces of an outreach email.
type ComposeInput struct {
	TrackingID string
	To         string
	Subject    string
	Body       string
	Role       string
	Company    string
}

// Composer turns raw outreach content into a dispatch-ready envelope:
// Liquid personalization first, then click-link rewriting, then the open
// pixel. Rewriting runs after personalization so links produced by merge
// fields are tracked too.
type Composer struct {
	templates *TemplateService
	rewriter  *Rewriter
}

// NewComposer creates a composer.
func NewComposer(templates *TemplateService, rewriter *Rewriter) *Composer {
	return &Composer{templates: templates, rewriter: rewriter}
}

// Compose builds the envelope for one send. Bodies are one-off per
// recipient, so renders are not cached.
func (c *Composer) Compose(in ComposeInput) *Envelope {
	mergeCtx := map[string]interface{}{
		"to":          in.To,
		"role":        in.Role,
		"company":     in.Company,
		"tracking_id": in.TrackingID,
	}

	subject := c.templates.Render("", in.Subject, mergeCtx)
	body := c.templates.Render("", in.Body, mergeCtx)
	body = c.rewriter.Instrument(body, in.TrackingID)

	return &Envelope{
		To:      in.To,
		Subject: subject,
		HTML:    body,
	}
}
