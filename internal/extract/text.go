package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// abbreviations that end with a period but do not end a sentence
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "co": true,
	"inc": true, "ltd": true, "jr": true, "sr": true, "no": true, "ca": true,
	"c": true, "fig": true, "vol": true, "mme": true, "mlle": true, "ste": true,
}

// PlainText strips markup from catalogue text. Museum APIs deliver provenance
// with <br>, <p> and <i> tags; block-level breaks become sentence separators.
func PlainText(markup string) string {
	if !strings.ContainsAny(markup, "<&") {
		return markup
	}

	var buf strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))
	skip := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed remainder; either way keep what was read
			return strings.Trim(whitespacePattern.ReplaceAllString(buf.String(), " "), " ;")
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
			case "br":
				buf.WriteString("; ")
			case "p", "li", "div":
				if tt == html.EndTagToken {
					buf.WriteString("; ")
				}
			}
		case html.TextToken:
			if skip == 0 {
				buf.Write(z.Text())
			}
		}
	}
}

// SplitProvenance splits a provenance paragraph into sentences. Catalogue
// entries separate owners with semicolons, so both ";" and sentence-ending
// punctuation followed by a space end a sentence.
func SplitProvenance(text string) []string {
	text = strings.ReplaceAll(PlainText(text), "\n", " ")

	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.Trim(strings.TrimSpace(current.String()), ";")
		sentence = strings.TrimSpace(sentence)
		if len(sentence) >= 3 {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ';' {
			flush()
			continue
		}

		current.WriteByte(c)

		if c == '.' || c == '!' || c == '?' {
			// Look ahead to avoid splitting on abbreviations and initials
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\t') && !endsWithAbbreviation(current.String()) {
				flush()
			}
		}
	}
	flush()

	return sentences
}

// endsWithAbbreviation reports whether s ends in an abbreviation or initial
func endsWithAbbreviation(s string) bool {
	s = strings.TrimSuffix(s, ".")
	i := strings.LastIndexAny(s, " (")
	word := s[i+1:]
	if len(word) == 1 && word[0] >= 'A' && word[0] <= 'Z' {
		return true
	}
	return abbreviations[strings.ToLower(word)]
}
