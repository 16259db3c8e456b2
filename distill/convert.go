package distill

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Schema is the extraction schema embedded in a template as a JSON data
// island: a rows selector plus per-column extraction rules.
type Schema struct {
	Rows    string   `json:"rows"`
	Columns []Column `json:"columns"`
}

// Column describes one extracted field. Kind "list" collects every
// matching descendant; anything else takes the first.
type Column struct {
	Name      string `json:"name"`
	Selector  string `json:"selector"`
	Attribute string `json:"attribute,omitempty"`
	Kind      string `json:"kind,omitempty"`
}

// Record is one converted row.
type Record map[string]any

// Convert maps the snapshot's embedded extraction schema over the
// document and returns structured records. A missing island yields nil.
// A malformed schema or a bad selector is logged and yields nil: the
// surrounding tick already succeeded and must not fail here.
func Convert(doc *goquery.Document, logger *slog.Logger) (records []Record) {
	if logger == nil {
		logger = slog.Default()
	}

	island := doc.Find(`script[type="application/json"]`).First()
	if island.Length() == 0 {
		return nil
	}

	// goquery panics on invalid selectors; schema content is authored by
	// hand, so contain it here.
	defer func() {
		if r := recover(); r != nil {
			logger.Error("convert: bad selector in schema", "panic", r)
			records = nil
		}
	}()

	var schema Schema
	if err := json.Unmarshal([]byte(island.Text()), &schema); err != nil {
		logger.Error("convert: malformed schema", "error", err)
		return nil
	}
	if schema.Rows == "" {
		logger.Warn("convert: schema has no rows selector")
		return nil
	}

	rows := doc.Find(schema.Rows)
	logger.Debug("convert: rows selected", "selector", schema.Rows, "count", rows.Length())

	rows.Each(func(_ int, row *goquery.Selection) {
		rec := Record{}
		for _, col := range schema.Columns {
			if col.Name == "" || col.Selector == "" {
				continue
			}
			if col.Kind == "list" {
				items := []string{}
				row.Find(col.Selector).Each(func(_ int, item *goquery.Selection) {
					items = append(items, extractValue(item, col.Attribute))
				})
				rec[col.Name] = items
				continue
			}
			item := row.Find(col.Selector).First()
			if item.Length() > 0 {
				rec[col.Name] = extractValue(item, col.Attribute)
			}
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	})

	logger.Info("convert: done", "records", len(records))
	return records
}

// extractValue pulls either the trimmed text content or the trimmed value
// of a named attribute. Multi-valued attributes (class, rel) yield their
// first value.
func extractValue(s *goquery.Selection, attribute string) string {
	if attribute == "" {
		return strings.TrimSpace(s.Text())
	}
	v := s.AttrOr(attribute, "")
	switch attribute {
	case "class", "rel":
		if fields := strings.Fields(v); len(fields) > 0 {
			return fields[0]
		}
		return ""
	}
	return strings.TrimSpace(v)
}
