package extract

import "time"

// AuthorRule locates the username of a message. An empty Selector means the
// message node itself; an empty Attr means the element text.
type AuthorRule struct {
	Selector string
	Attr     string
}

// DateRule locates and parses the post timestamp. Layouts are tried in order.
// Location applies to layouts without a zone offset.
type DateRule struct {
	Selector string
	Attr     string
	Layouts  []string
	Location *time.Location
}

// Rules describe one forum layout. They are plain data so a new site only
// needs a new value, not new code.
type Rules struct {
	Site            string
	MessageSelector string
	TextSelector    string
	QuoteSelector   string
	StripChars      string
	Author          AuthorRule
	Date            DateRule
}

// BHF matches XenForo 2 thread pages (bhf.io).
var BHF = Rules{
	Site:            "bhf",
	MessageSelector: "article.message",
	TextSelector:    "div.bbWrapper",
	QuoteSelector:   "blockquote",
	Author: AuthorRule{
		Selector: `h4.message-name [class^="username"]`,
	},
	Date: DateRule{
		Selector: "time",
		Attr:     "datetime",
		Layouts:  []string{"2006-01-02T15:04:05-0700", time.RFC3339},
	},
}

// Lolz matches XenForo 1 thread pages (lolz.guru), including profile comments.
var Lolz = Rules{
	Site:            "lolz",
	MessageSelector: "li.message, li.comment",
	TextSelector:    "blockquote.messageText",
	QuoteSelector:   "div.bbCodeQuote",
	StripChars:      `"`,
	Author: AuthorRule{
		Attr: "data-author",
	},
	Date: DateRule{
		Selector: "span.DateTime",
		Attr:     "title",
		// Aug 22, 2020 at 10:30 PM
		Layouts: []string{"Jan 2, 2006 at 3:04 PM"},
	},
}

var presets = map[string]Rules{
	BHF.Site:  BHF,
	Lolz.Site: Lolz,
}

// Lookup returns the preset rules registered under name.
func Lookup(name string) (Rules, bool) {
	r, ok := presets[name]
	return r, ok
}
