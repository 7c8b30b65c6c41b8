package topics

import (
	"bufio"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/ltr-relevance-pipeline/pkg/errors"
)

var (
	trecTag   = regexp.MustCompile(`^<(num|title|desc|narr)>\s*(.*)$`)
	closeTags = regexp.MustCompile(`</?\w+>`)
)

// trecReader parses the classic <top><num><title><desc><narr></top> SGML
// blocks. Fields may span several lines.
type trecReader struct{}

func (trecReader) Read(r io.Reader) ([]Topic, error) {
	var (
		out     []Topic
		cur     *Topic
		field   string
		buf     []string
		scanner = bufio.NewScanner(r)
	)
	flush := func() {
		if cur == nil || field == "" {
			return
		}
		text := strings.TrimSpace(closeTags.ReplaceAllString(strings.Join(buf, " "), ""))
		switch field {
		case "num":
			cur.ID = strings.TrimSpace(strings.TrimPrefix(text, "Number:"))
		case "title":
			cur.Title = strings.TrimSpace(strings.TrimPrefix(text, "Topic:"))
		case "desc":
			cur.Description = strings.TrimSpace(strings.TrimPrefix(text, "Description:"))
		case "narr":
			cur.Narrative = strings.TrimSpace(strings.TrimPrefix(text, "Narrative:"))
		}
		field, buf = "", nil
	}

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "<top>":
			cur = &Topic{}
		case line == "</top>":
			flush()
			if cur == nil || cur.ID == "" {
				return nil, apperrors.Parsef("line %d: topic without <num>", lineNo)
			}
			out = append(out, *cur)
			cur = nil
		case cur == nil:
		default:
			if m := trecTag.FindStringSubmatch(line); m != nil {
				flush()
				field = m[1]
				buf = []string{m[2]}
				continue
			}
			if field != "" {
				buf = append(buf, line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IOf("reading trec topics: %v", err)
	}
	if cur != nil {
		return nil, apperrors.Parsef("unterminated <top> block")
	}
	return out, nil
}

// webXMLReader parses Web-track topics:
// <topic number="1"><query>..</query><description>..</description></topic>.
type webXMLReader struct{}

type webXMLTopic struct {
	Number      string `xml:"number,attr"`
	Query       string `xml:"query"`
	Description string `xml:"description"`
}

func (webXMLReader) Read(r io.Reader) ([]Topic, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	var out []Topic
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Parsef("webxml topics: %v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "topic" {
			continue
		}
		var t webXMLTopic
		if err := dec.DecodeElement(&t, &start); err != nil {
			return nil, apperrors.Parsef("webxml topic: %v", err)
		}
		if strings.TrimSpace(t.Number) == "" {
			return nil, apperrors.Parsef("webxml topic without number attribute")
		}
		out = append(out, Topic{
			ID:          strings.TrimSpace(t.Number),
			Title:       strings.TrimSpace(t.Query),
			Description: strings.TrimSpace(t.Description),
		})
	}
	return out, nil
}

// webReader parses efficiency-track topics, one "<id>:<title>" per line.
type webReader struct{}

func (webReader) Read(r io.Reader) ([]Topic, error) {
	return readDelimited(r, ":", "web")
}

// tsvReader parses "<id>\t<title>" lines.
type tsvReader struct{}

func (tsvReader) Read(r io.Reader) ([]Topic, error) {
	return readDelimited(r, "\t", "tsv")
}

func readDelimited(r io.Reader, sep, format string) ([]Topic, error) {
	var out []Topic
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, title, ok := strings.Cut(line, sep)
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, apperrors.Parsef("%s topics line %d: expected <id>%q<title>", format, lineNo, sep)
		}
		out = append(out, Topic{ID: id, Title: strings.TrimSpace(title)})
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.IOf("reading %s topics: %v", format, err)
	}
	return out, nil
}
