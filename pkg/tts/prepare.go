package tts

import (
	"context"
	"regexp"
	"strings"
)

var acronyms = []struct {
	re     *regexp.Regexp
	spoken string
}{
	{regexp.MustCompile(`\bAPI\b`), "A P I"},
	{regexp.MustCompile(`\bUI\b`), "U I"},
	{regexp.MustCompile(`\bURL\b`), "U R L"},
	{regexp.MustCompile(`\bHTTP\b`), "H T T P"},
	{regexp.MustCompile(`\bGPT\b`), "G P T"},
	{regexp.MustCompile(`\bLLM\b`), "L L M"},
	{regexp.MustCompile(`\bAI\b`), "A I"},
	{regexp.MustCompile(`\bML\b`), "M L"},
	{regexp.MustCompile(`\bNLP\b`), "N L P"},
	{regexp.MustCompile(`\bRAG\b`), "R A G"},
	{regexp.MustCompile(`\bCI/CD\b`), "C I C D"},
	{regexp.MustCompile(`\bJSON\b`), "J SON"},
	{regexp.MustCompile(`\bCSS\b`), "C S S"},
	{regexp.MustCompile(`\bHTML\b`), "H T M L"},
	{regexp.MustCompile(`\bSQL\b`), "S Q L"},
	{regexp.MustCompile(`\bJWT\b`), "J W T"},
}

var abbreviations = []struct {
	re     *regexp.Regexp
	spoken string
}{
	{regexp.MustCompile(`\bvs\b\.?`), "versus"},
	{regexp.MustCompile(`\betc\b\.?`), "etcetera"},
	{regexp.MustCompile(`\bi\.e\.?`), "that is"},
	{regexp.MustCompile(`\be\.g\.?`), "for example"},
}

var symbols = strings.NewReplacer(
	"_", " underscore ",
	"-", " dash ",
	"*", " star ",
	"@", " at ",
	"#", " hash ",
	"&", " and ",
)

var (
	camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)
	decimalPoint  = regexp.MustCompile(`(\d+)\.(\d+)`)
	pausePoint    = regexp.MustCompile(`([.:;])(\.*)(\s|$)`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// PrepareText rewrites text so a synthesizer reads it naturally.
// Camel-case words are split, symbols become words, technical acronyms are
// spelled out letter by letter, decimals and Latin abbreviations are expanded,
// and sentence or clause punctuation gains a "..." pause.
// The result is trimmed with single spaces. PrepareText(PrepareText(s)) equals PrepareText(s).
func PrepareText(text string) string {
	text = camelBoundary.ReplaceAllString(text, "$1 $2")
	text = symbols.Replace(text)

	for _, a := range acronyms {
		text = a.re.ReplaceAllString(text, a.spoken)
	}

	// "1.2.3" needs a second pass because matches cannot overlap.
	for decimalPoint.MatchString(text) {
		text = decimalPoint.ReplaceAllString(text, "$1 point $2")
	}

	for _, a := range abbreviations {
		text = a.re.ReplaceAllString(text, a.spoken)
	}

	text = pausePoint.ReplaceAllStringFunc(text, addPause)

	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// addPause turns "." into "..." and appends "..." to ":" and ";".
// Punctuation already followed by dots is left alone.
func addPause(match string) string {
	m := pausePoint.FindStringSubmatch(match)
	if m == nil || m[2] != "" {
		return match
	}
	if m[1] == "." {
		return "..." + m[3]
	}
	return m[1] + "..." + m[3]
}

// Prepared wraps p so every request text goes through PrepareText first.
// Text that prepares to nothing fails with ErrEmptyText without calling p.
func Prepared(p Provider) Provider {
	if pp, ok := p.(*prepared); ok {
		return pp
	}
	return &prepared{Provider: p}
}

type prepared struct {
	Provider
}

func (p *prepared) Synthesize(ctx context.Context, req *Request) (*AudioResult, error) {
	if req == nil {
		return nil, WrapError("prepare", ErrEmptyText)
	}
	text := PrepareText(req.Text)
	if text == "" {
		return nil, WrapError("prepare", ErrEmptyText)
	}
	r := *req
	r.Text = text
	return p.Provider.Synthesize(ctx, &r)
}

// Verify prepared implements Provider at compile time.
var _ Provider = (*prepared)(nil)
