package htmlutil

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// NormalizeText removes non-printable characters, trims the text and collapses inner whitespace.
func NormalizeText(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

// SelectionText is NormalizeText applied to the text of every node in the selection.
func SelectionText(sel *goquery.Selection) string {
	return NormalizeText(sel.Text())
}

var integerRegex = regexp.MustCompile(`[-+]?\d[\d,]*`)

// FirstInt returns the first integer found in `s` ("1,234 problems" -> 1234),
// ok is false if there is none.
func FirstInt(s string) (value int, ok bool) {
	match := integerRegex.FindString(s)
	if match == "" {
		return 0, false
	}
	match = strings.ReplaceAll(match, ",", "")
	match = strings.TrimPrefix(match, "+")
	value, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return value, true
}

// IntOr is FirstInt with a fallback value.
func IntOr(s string, fallback int) int {
	value, ok := FirstInt(s)
	if !ok {
		return fallback
	}
	return value
}

// FindInScripts runs `pattern` over the contents of every <script> in the
// document and returns the submatches of the first script that matches.
func FindInScripts(doc *goquery.Document, pattern *regexp.Regexp) []string {
	for _, script := range doc.Find("script").Nodes {
		groups := pattern.FindStringSubmatch(GetText(script))
		if len(groups) > 0 {
			return groups
		}
	}
	return nil
}
