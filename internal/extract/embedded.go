package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
)

// scriptBudget bounds the time spent evaluating inline scripts per page.
const scriptBudget = 500 * time.Millisecond

// embeddedMarkers select the inline scripts worth evaluating.
var embeddedMarkers = []string{"_sharedData", "__additionalDataLoaded"}

// embeddedState is the page state the platform ships in inline scripts.
type embeddedState struct {
	shared     map[string]interface{}
	additional map[string]interface{}
}

// state evaluates the page's inline state scripts once and caches the
// result. It never fails; a page without state yields an empty value.
func (d *Doc) state() *embeddedState {
	d.embeddedOnce.Do(func() {
		d.embedded = evalEmbedded(d.Document, d.URL)
	})
	return d.embedded
}

func evalEmbedded(doc *goquery.Document, pageURL string) *embeddedState {
	state := &embeddedState{}

	var scripts []string
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, external := sel.Attr("src"); external {
			return
		}
		body := sel.Text()
		for _, m := range embeddedMarkers {
			if strings.Contains(body, m) {
				scripts = append(scripts, body)
				return
			}
		}
	})
	if len(scripts) == 0 {
		return state
	}

	vm := goja.New()
	timer := time.AfterFunc(scriptBudget, func() {
		vm.Interrupt("script budget exceeded")
	})
	defer timer.Stop()

	// Just enough of a browser for assignments to land on the global object
	vm.Set("window", vm.GlobalObject())
	vm.Set("self", vm.GlobalObject())
	vm.Set("location", map[string]interface{}{"href": pageURL})
	vm.Set("document", map[string]interface{}{
		"location": map[string]interface{}{"href": pageURL},
	})
	vm.Set("__additionalDataLoaded", func(call goja.FunctionCall) goja.Value {
		if m, ok := call.Argument(1).Export().(map[string]interface{}); ok {
			state.additional = m
		}
		return goja.Undefined()
	})

	for _, src := range scripts {
		if _, err := vm.RunString(src); err != nil {
			// Most inline scripts reference DOM APIs the sandbox lacks
			log.Debug().Err(err).Msg("Inline script evaluation failed")
		}
	}

	if v := vm.Get("_sharedData"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		if m, ok := v.Export().(map[string]interface{}); ok {
			state.shared = m
		}
	}
	return state
}

// profileUser returns entry_data.ProfilePage[0].graphql.user.
func (s *embeddedState) profileUser() map[string]interface{} {
	if s == nil {
		return nil
	}
	return asMap(lookup(s.shared, "entry_data", "ProfilePage", 0, "graphql", "user"))
}

// media returns the shortcode_media of a post page from either source.
func (s *embeddedState) media() map[string]interface{} {
	if s == nil {
		return nil
	}
	if m := asMap(lookup(s.shared, "entry_data", "PostPage", 0, "graphql", "shortcode_media")); m != nil {
		return m
	}
	return asMap(lookup(s.additional, "graphql", "shortcode_media"))
}

// lookup walks nested maps and slices. Keys are strings or ints.
func lookup(v interface{}, path ...interface{}) interface{} {
	cur := v
	for _, p := range path {
		switch k := p.(type) {
		case string:
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil
			}
			cur = m[k]
		case int:
			s, ok := cur.([]interface{})
			if !ok || k >= len(s) {
				return nil
			}
			cur = s[k]
		}
	}
	return cur
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// display renders a scalar from embedded state as a display string.
func display(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return ""
}

// embeddedOf yields a display string picked out of the embedded state.
func embeddedOf(name string, pick func(s *embeddedState) interface{}) Strategy[string] {
	return Strategy[string]{
		Name: "embedded:" + name,
		Extract: func(d *Doc) (string, bool) {
			v := display(pick(d.state()))
			return v, v != ""
		},
	}
}

// jsonLD returns the parsed application/ld+json blocks of the page.
func (d *Doc) jsonLD() []map[string]interface{} {
	d.ldOnce.Do(func() {
		d.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
			raw := strings.TrimSpace(s.Text())
			var one map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &one); err == nil {
				d.ld = append(d.ld, one)
				return
			}
			var many []map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &many); err == nil {
				d.ld = append(d.ld, many...)
			}
		})
	})
	return d.ld
}

// jsonLDOf yields the first non-empty value of any of keys in the page's
// structured data.
func jsonLDOf(keys ...string) Strategy[string] {
	return Strategy[string]{
		Name: "jsonld:" + strings.Join(keys, "|"),
		Extract: func(d *Doc) (string, bool) {
			for _, block := range d.jsonLD() {
				for _, k := range keys {
					if v := display(block[k]); v != "" {
						return v, true
					}
				}
			}
			return "", false
		},
	}
}
