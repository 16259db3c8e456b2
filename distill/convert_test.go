package distill

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFrom(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

const convertable = `<html><body>
<script type="application/json">
{"rows": "ul.books li",
 "columns": [
   {"name": "title", "selector": "span.title"},
   {"name": "links", "selector": "a", "attribute": "href", "kind": "list"}
 ]}
</script>
<ul class="books">
  <li><span class="title">First</span><a href="/1a">a</a><a href="/1b">b</a></li>
  <li><span class="title">Second</span><a href="/2">x</a></li>
  <li><span class="title">Third</span></li>
  <li><em>no populated columns here</em></li>
</ul>
</body></html>`

func TestConvert_ScalarAndList(t *testing.T) {
	records := Convert(docFrom(t, convertable), discard())
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 (empty row dropped)", len(records))
	}

	if records[0]["title"] != "First" {
		t.Errorf("title = %v", records[0]["title"])
	}
	links, ok := records[0]["links"].([]string)
	if !ok {
		t.Fatalf("links is %T, want []string", records[0]["links"])
	}
	if len(links) != 2 || links[0] != "/1a" || links[1] != "/1b" {
		t.Errorf("links = %v", links)
	}

	// A list column with no matches still populates with an empty list.
	third, ok := records[2]["links"].([]string)
	if !ok || len(third) != 0 {
		t.Errorf("third row links = %v", records[2]["links"])
	}
}

func TestConvert_NoIsland(t *testing.T) {
	doc := docFrom(t, `<html><body><p>nothing here</p></body></html>`)
	if records := Convert(doc, discard()); records != nil {
		t.Errorf("expected nil, got %v", records)
	}
}

func TestConvert_MalformedSchema(t *testing.T) {
	doc := docFrom(t, `<html><body>
<script type="application/json">{not json</script>
</body></html>`)
	if records := Convert(doc, discard()); records != nil {
		t.Errorf("malformed schema must yield nil, got %v", records)
	}
}

func TestConvert_BadSelector(t *testing.T) {
	doc := docFrom(t, `<html><body>
<script type="application/json">{"rows": "li:::(", "columns": [{"name": "x", "selector": "a"}]}</script>
<ul><li><a href="/x">x</a></li></ul>
</body></html>`)
	if records := Convert(doc, discard()); records != nil {
		t.Errorf("bad selector must be contained and yield nil, got %v", records)
	}
}

func TestConvert_MultiValuedAttribute(t *testing.T) {
	doc := docFrom(t, `<html><body>
<script type="application/json">
{"rows": "ul li", "columns": [{"name": "tone", "selector": "span", "attribute": "class"}]}
</script>
<ul><li><span class="urgent breaking">x</span></li></ul>
</body></html>`)
	records := Convert(doc, discard())
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0]["tone"] != "urgent" {
		t.Errorf("tone = %v, want first value of the multi-valued attribute", records[0]["tone"])
	}
}
