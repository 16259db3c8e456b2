package web

import (
	"fmt"

	"github.com/microcosm-cc/bluemonday"
)

const picoCSS = "https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css"

// policy sanitises distilled snapshots before they reach an operator's
// browser. UGC as a base, plus the form machinery snapshots carry:
// everything else a hostile page could smuggle through a template gets
// stripped.
var policy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("form", "fieldset", "legend", "label", "input", "select", "option", "optgroup", "textarea", "button")
	p.AllowAttrs("type", "name", "id", "value", "placeholder", "checked", "selected", "for", "rows", "cols").Globally()
	return p
}()

// Sanitize strips everything from snapshot HTML that the render policy
// does not allow.
func Sanitize(html string) string {
	return policy.Sanitize(html)
}

// Shell wraps body in a minimal page with default styling.
func Shell(title, body string) string {
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<link rel="stylesheet" href="%s">
</head>
<body>
<main class="container">
%s
</main>
</body>
</html>
`, title, picoCSS, body)
}

// Form wraps sanitised snapshot content in a form posting back to the
// session link.
func Form(sessionID, inner string) string {
	return Shell("middleman session "+sessionID, fmt.Sprintf(
		`<form method="post" action="/link/%s">
%s
<button type="submit">Continue</button>
</form>`, sessionID, inner))
}

// Trampoline is the page returned by /start: it POSTs to the session
// link as soon as it loads, so the first round runs with no field
// values and the real form comes back.
func Trampoline(sessionID string) string {
	return Shell("starting", fmt.Sprintf(
		`<p>Session <code>%s</code> starting&hellip;</p>
<form id="go" method="post" action="/link/%s"></form>
<script>document.getElementById("go").submit();</script>`,
		sessionID, sessionID))
}
