package pages

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelofallars/htmx-go"
	"github.com/jackielii/ctxkey"
)

var componentCtx = ctxkey.New[string]("pages.component", "")

// Component returns the name of the component chosen to render the
// request. Props methods see it; it is "" outside component pages.
func Component(ctx context.Context) string {
	return componentCtx.Value(ctx)
}

// RendersPage reports whether the whole document is rendered, either for
// a plain request or as the fallback for an unknown htmx target.
func RendersPage(ctx context.Context) bool {
	return Component(ctx) == "Page"
}

// HTMXTarget picks the component named after the HX-Target header of an
// htmx request:
//   - HX-Target: "content" -> Content()
//   - HX-Target: "section-panel" -> SectionPanel()
//   - no HX-Target or a plain request -> Page()
func HTMXTarget(r *http.Request) (string, error) {
	if htmx.IsHTMX(r) {
		if target, ok := htmx.GetTarget(r); ok && target != "" {
			return mixedCase(target), nil
		}
	}
	return "Page", nil
}

// mixedCase turns a kebab-case element id into a method name. Ids that
// contain spaces cannot be method names and yield "".
func mixedCase(s string) string {
	if s == "" || strings.Contains(s, " ") {
		return ""
	}
	parts := strings.Split(s, "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, "")
}
