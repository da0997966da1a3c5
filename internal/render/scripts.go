package render

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// cssPixelsPerInch is the CSS reference resolution Chrome prints at.
const cssPixelsPerInch = 96.0

// brandingScript appends the call-to-action link to the first <nav>.
// It evaluates to false when the page has no <nav>.
func brandingScript(b Branding) string {
	return fmt.Sprintf(`(() => {
  const nav = document.querySelector('nav');
  if (!nav) return false;
  if (nav.querySelector('[data-brochure-cta]')) return true;
  const link = document.createElement('a');
  link.setAttribute('data-brochure-cta', '');
  link.href = %s || window.location.origin;
  link.textContent = %s;
  link.style.cssText = 'margin-left:auto;padding:8px 16px;font-weight:600;text-decoration:none;white-space:nowrap;';
  nav.appendChild(link);
  return true;
})()`, jsString(b.URL), jsString(b.Text))
}

// styleSheet renders the export overrides.
func styleSheet(s Style) string {
	var b strings.Builder
	selectors := make([]string, 0, len(s.HideSelectors))
	for _, sel := range s.HideSelectors {
		if sel = strings.TrimSpace(sel); sel != "" {
			selectors = append(selectors, sel)
		}
	}
	if len(selectors) > 0 {
		b.WriteString(strings.Join(selectors, ",\n"))
		b.WriteString(" { display: none !important; }\n")
	}
	b.WriteString("nav, footer { display: revert !important; visibility: visible !important; opacity: 1 !important; }\n")
	if hero := strings.TrimSpace(s.HeroSelector); hero != "" {
		if s.HeroHeight != "" {
			fmt.Fprintf(&b, "%[1]s { height: %[2]s !important; min-height: %[2]s !important; }\n", hero, s.HeroHeight)
		}
		if s.HeroBrightness > 0 {
			fmt.Fprintf(&b, "%[1]s img, %[1]s picture { filter: brightness(%.2[2]f) !important; }\n", hero, s.HeroBrightness)
			fmt.Fprintf(&b, "%[1]s [class*='overlay'] { opacity: 0.35 !important; }\n", hero)
		}
	}
	return b.String()
}

// styleScript installs the style sheet once per document.
func styleScript(s Style) string {
	return fmt.Sprintf(`(() => {
  let el = document.querySelector('style[data-brochure-export]');
  if (!el) {
    el = document.createElement('style');
    el.setAttribute('data-brochure-export', '');
    (document.head || document.documentElement).appendChild(el);
  }
  el.textContent = %s;
  return true;
})()`, jsString(styleSheet(s)))
}

// heightScript measures the rendered page: the footer's bottom edge in
// document coordinates, or the scroll height without a footer.
const heightScript = `(() => {
  const footer = document.querySelector('footer');
  if (footer) {
    const rect = footer.getBoundingClientRect();
    return rect.bottom + window.scrollY;
  }
  return Math.max(document.body ? document.body.scrollHeight : 0, document.documentElement.scrollHeight);
})()`

// paperSize converts CSS pixels to the inch dimensions PrintToPDF expects.
// Height is rounded up so nothing is cut off and never below one pixel.
func paperSize(width int, height float64) (float64, float64) {
	h := math.Ceil(height)
	if h < 1 || math.IsNaN(h) {
		h = 1
	}
	return float64(width) / cssPixelsPerInch, h / cssPixelsPerInch
}

func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
