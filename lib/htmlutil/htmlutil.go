package htmlutil

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText concatenates the text nodes under node. Unlike Selection.Text, the contents of
// <script> and <style> elements are skipped.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		if node.Data == "script" || node.Data == "style" {
			return
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getTextRecursive(child, buffer)
	}
}

// CleanText drops non-printable characters and collapses runs of whitespace into a single
// space.
func CleanText(s string) string {
	printable := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(printable), " ")
}

// FirstText returns the cleaned text of the first element matching selector under sel,
// or "" when nothing matches.
func FirstText(sel *goquery.Selection, selector string) string {
	match := sel.Find(selector)
	if match.Length() == 0 {
		return ""
	}
	return CleanText(GetText(match.Nodes[0]))
}
