package callgrind

// scanMode selects how the remainder of a line after a keyword is scanned.
type scanMode int

const (
	modeGeneric scanMode = iota
	// modeRest takes the rest of the line as one Rest token.
	modeRest
	// modePosition takes an optional "(id)" marker and then the rest.
	modePosition
)

type keyword struct {
	name     string
	literal  string
	mode     scanMode
	position PositionKind
	isPos    bool
}

// keywords are recognized only at the start of a line. Order does not
// matter: every literal ends in ':' or '=' so none is a prefix of another.
var keywords = []keyword{
	{name: "version", literal: "version:", mode: modeRest},
	{name: "creator", literal: "creator:", mode: modeRest},
	{name: "cmd", literal: "cmd:", mode: modeRest},
	{name: "pid", literal: "pid:"},
	{name: "thread", literal: "thread:"},
	{name: "part", literal: "part:"},
	{name: "desc", literal: "desc:", mode: modeRest},
	{name: "event", literal: "event:", mode: modeRest},
	{name: "events", literal: "events:"},
	{name: "positions", literal: "positions:"},
	{name: "summary", literal: "summary:"},
	{name: "totals", literal: "totals:"},
	{name: "calls", literal: "calls="},
	{name: "jump", literal: "jump="},
	{name: "jcnd", literal: "jcnd="},
	{name: "ob", literal: "ob=", mode: modePosition, position: Object, isPos: true},
	{name: "fl", literal: "fl=", mode: modePosition, position: SourceFile, isPos: true},
	{name: "fi", literal: "fi=", mode: modePosition, position: SourceFile, isPos: true},
	{name: "fe", literal: "fe=", mode: modePosition, position: SourceFile, isPos: true},
	{name: "fn", literal: "fn=", mode: modePosition, position: Function, isPos: true},
	{name: "cob", literal: "cob=", mode: modePosition, position: CalledObject, isPos: true},
	{name: "cfi", literal: "cfi=", mode: modePosition, position: CalledSourceFile, isPos: true},
	{name: "cfl", literal: "cfl=", mode: modePosition, position: CalledSourceFile, isPos: true},
	{name: "cfn", literal: "cfn=", mode: modePosition, position: CalledFunction, isPos: true},
}

var keywordByName = func() map[string]keyword {
	m := make(map[string]keyword, len(keywords))
	for _, kw := range keywords {
		m[kw.name] = kw
	}
	return m
}()

// lookupKeyword returns the keyword a Keyword token was scanned from.
func lookupKeyword(name string) (keyword, bool) {
	kw, ok := keywordByName[name]
	return kw, ok
}
