package distill

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/middleman/pattern"
)

// Terminated reports whether the distilled snapshot carries a stop marker.
// Pure predicate, no side effects.
func Terminated(doc *goquery.Document) bool {
	return doc.Find("["+pattern.AttrStop+"]").Length() > 0
}
