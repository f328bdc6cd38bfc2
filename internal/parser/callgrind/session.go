package callgrind

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/callgrind-analysis/internal/costtree"
	apperrors "github.com/callgrind-analysis/pkg/errors"
	"github.com/callgrind-analysis/pkg/model"
)

// positionContext is the "current position" the body lines are
// interpreted against.
type positionContext struct {
	object string
	file   string

	current     model.FunctionID
	hasFunction bool

	objectBad   bool
	fileBad     bool
	functionBad bool
}

// calledContext holds cob=, cfi=/cfl= and cfn= for the next calls= line.
// A field redeclared before calls= replaces the earlier value, including
// whether it resolved.
type calledContext struct {
	object    string
	file      string
	fn        string
	hasObject bool
	hasFile   bool
	hasFn     bool
	objectBad bool
	fileBad   bool
	fnBad     bool
}

func (c calledContext) bad() bool { return c.objectBad || c.fileBad || c.fnBad }

// pendingCall is a calls= line waiting for its cost line.
type pendingCall struct {
	line   int
	caller model.FunctionID
	callee model.FunctionID
	count  uint64
	drop   bool
}

// Session parses one dump record by record. Each call to Next consumes a
// single input line; Snapshot exposes what has been aggregated so far.
// A Session is not safe for concurrent use.
type Session struct {
	scanner *Scanner
	opts    *ParserOptions
	names   *NameTable
	agg     *costtree.Aggregator

	header model.ProfileHeader
	seen   map[string]int

	events            []string
	schemaDeclared    bool
	schemaLine        int
	positions         []string
	positionsDeclared bool
	bodyStarted       bool

	pos     positionContext
	called  calledContext
	pending *pendingCall

	declared     model.CostVector
	declaredLine int

	diags      model.Diagnostics
	suppressed int
	fatal      error

	dropped int
	jumps   int

	done   bool
	tokens []Token

	result    *model.ParseResult
	finishErr error
}

// NewSession creates a session reading from r.
func NewSession(r io.Reader, opts *ParserOptions) *Session {
	if opts == nil {
		opts = DefaultParserOptions()
	}
	return &Session{
		scanner:   NewScanner(r),
		opts:      opts,
		names:     NewNameTable(),
		seen:      make(map[string]int),
		positions: append([]string(nil), opts.DefaultPositions...),
		tokens:    make([]Token, 0, 16),
	}
}

// Next consumes one input line. It returns false once the input is
// exhausted or a fatal diagnostic was raised.
func (s *Session) Next() bool {
	if s.done || s.fatal != nil || s.result != nil {
		return false
	}

	s.tokens = s.tokens[:0]
	consumed := false
	for {
		tok := s.scanner.Next()
		if tok.Kind == KindEOF {
			s.done = true
			break
		}
		if tok.Kind == KindNewline {
			consumed = true
			break
		}
		s.tokens = append(s.tokens, tok)
	}

	if len(s.tokens) > 0 {
		consumed = true
		s.processLine(s.tokens)
	}
	return consumed && s.fatal == nil
}

// Lines returns the number of input lines read so far.
func (s *Session) Lines() int { return s.scanner.Line() }

// Diagnostics returns a copy of the diagnostics collected so far.
func (s *Session) Diagnostics() model.Diagnostics {
	return append(model.Diagnostics(nil), s.diags...)
}

// Dropped returns how many records were skipped because they depended on
// an unresolved name.
func (s *Session) Dropped() int { return s.dropped }

// Suppressed returns how many non-fatal diagnostics were discarded after
// MaxDiagnostics was reached.
func (s *Session) Suppressed() int { return s.suppressed }

// Jumps returns the number of jump= and jcnd= records seen.
func (s *Session) Jumps() int { return s.jumps }

// Snapshot returns an immutable summary of everything aggregated so far.
// The session keeps accepting records afterwards.
func (s *Session) Snapshot() *model.ProfileSummary {
	agg := s.aggregator()
	return model.NewProfileSummary(s.currentHeader(), s.events, agg.Snapshot(), agg.Totals(), s.declaredTotals())
}

// Finish ends the session and returns the final result. Calling Finish
// before the input is exhausted yields a summary of the lines consumed so
// far. Subsequent calls return the same result.
func (s *Session) Finish() (*model.ParseResult, error) {
	if s.result != nil {
		return s.result, s.finishErr
	}

	if s.fatal == nil && s.done {
		if s.pending != nil {
			s.unterminatedCall()
		}
		s.checkTotals()
	}

	agg := s.aggregator()
	summary := agg.Finalize(s.currentHeader(), s.events, s.declaredTotals())
	s.result = &model.ParseResult{
		Summary:     summary,
		Diagnostics: s.Diagnostics(),
		Suppressed:  s.suppressed,
		Lines:       s.scanner.Line(),
	}

	switch {
	case s.fatal != nil:
		s.finishErr = s.fatal
	case s.scanner.Err() != nil:
		s.finishErr = apperrors.Wrap(apperrors.CodeParseError, "failed to read profile", s.scanner.Err())
	case s.opts.StrictMode && s.diags.HasErrors():
		s.finishErr = apperrors.Wrap(apperrors.CodeParseError,
			fmt.Sprintf("%d error diagnostics in strict mode", s.diags.Count(model.SeverityError)),
			s.firstError())
	}
	return s.result, s.finishErr
}

func (s *Session) processLine(toks []Token) {
	line := toks[0].Line

	bad := false
	for _, t := range toks {
		if t.Kind == KindError {
			s.report(model.DiagLexicalError, line, "unrecognized character %q", t.Text)
			bad = true
		}
	}
	if bad {
		// The line may have been the cost line of a pending call.
		s.pending = nil
		return
	}

	for _, t := range toks {
		if t.Overflow {
			s.report(model.DiagNumericOverflow, line, "value %s does not fit in 64 bits, clamped to %d", t.Text, t.Value)
		}
	}

	first := toks[0]
	switch {
	case first.Kind == KindKeyword:
		if s.pending != nil {
			s.unterminatedCall()
		}
		s.keywordLine(first.Text, toks[1:], line)
	case first.IsPosition():
		s.costLine(toks, line)
	default:
		if s.pending != nil {
			s.unterminatedCall()
		}
		s.report(model.DiagSyntaxError, line, "unexpected %s at start of line", first)
	}
}

func (s *Session) keywordLine(name string, args []Token, line int) {
	kw, _ := lookupKeyword(name)
	if kw.isPos {
		s.positionLine(kw, args, line)
		return
	}

	switch name {
	case "version", "creator", "cmd", "pid", "thread", "part", "desc", "event", "positions":
		if s.bodyStarted {
			s.report(model.DiagMisplacedHeaderField, line, "%s: after the first body record, ignored", name)
			return
		}
	}

	switch name {
	case "version":
		text := restText(args)
		if text == "" {
			s.report(model.DiagSyntaxError, line, "version: without a value")
			return
		}
		s.setHeader(name, name, line, func() { s.header.Version = text })
	case "creator":
		text := restText(args)
		s.setHeader(name, name, line, func() { s.header.Creator = text })
	case "cmd":
		text := restText(args)
		s.setHeader(name, name, line, func() { s.header.Command = text })
	case "pid", "thread", "part":
		s.targetLine(name, args, line)
	case "desc":
		s.descLine(args, line)
	case "event":
		s.eventLine(args, line)
	case "events":
		s.eventsLine(args, line)
	case "positions":
		s.positionsLine(args, line)
	case "summary", "totals":
		s.totalsLine(name, args, line)
	case "calls":
		s.callLine(args, line)
	case "jump", "jcnd":
		s.jumpLine(name, args, line)
	}
}

func (s *Session) setHeader(field, label string, line int, apply func()) {
	if prev, ok := s.seen[field]; ok {
		s.report(model.DiagDuplicateHeaderField, line, "%s: already declared at line %d, overwriting", label, prev)
	}
	s.seen[field] = line
	apply()
}

func (s *Session) targetLine(name string, args []Token, line int) {
	if len(args) != 1 || !args[0].IsNumber() {
		s.report(model.DiagSyntaxError, line, "%s: expects a single number", name)
		return
	}
	value := args[0].Value
	s.setHeader(name, name, line, func() {
		switch name {
		case "pid":
			s.header.Targets.PID = value
		case "thread":
			s.header.Targets.Thread = value
		case "part":
			s.header.Targets.Part = value
		}
	})
}

func (s *Session) descLine(args []Token, line int) {
	label, value, ok := strings.Cut(restText(args), ":")
	label = strings.TrimSpace(label)
	if !ok || label == "" {
		s.report(model.DiagSyntaxError, line, "desc: expects \"label: value\"")
		return
	}
	value = strings.TrimSpace(value)
	s.setHeader("desc:"+label, "desc "+label, line, func() {
		if s.header.Descriptions == nil {
			s.header.Descriptions = make(map[string]string)
		}
		s.header.Descriptions[label] = value
	})
}

// eventLine parses "event: name[=inherited][:long name]".
func (s *Session) eventLine(args []Token, line int) {
	text := restText(args)
	head, long, _ := strings.Cut(text, ":")
	name, inherited, _ := strings.Cut(head, "=")
	name = strings.TrimSpace(name)
	if !isEventName(name) {
		s.report(model.DiagSyntaxError, line, "event: invalid event name %q", name)
		return
	}
	spec := model.EventSpec{
		Name:      name,
		LongName:  strings.TrimSpace(long),
		Inherited: strings.TrimSpace(inherited),
	}
	s.setHeader("event:"+name, "event "+name, line, func() {
		for i := range s.header.EventSpecs {
			if s.header.EventSpecs[i].Name == name {
				s.header.EventSpecs[i] = spec
				return
			}
		}
		s.header.EventSpecs = append(s.header.EventSpecs, spec)
	})
}

func (s *Session) eventsLine(args []Token, line int) {
	if s.schemaDeclared {
		s.fail(model.DiagSchemaRedeclared, line, "events: already declared at line %d", s.schemaLine)
		return
	}
	if len(args) == 0 {
		s.report(model.DiagSyntaxError, line, "events: without event names")
		return
	}
	names := make([]string, 0, len(args))
	for _, a := range args {
		if a.Kind != KindName {
			s.report(model.DiagSyntaxError, line, "events: expected an event name, got %s", a)
			return
		}
		names = append(names, a.Text)
	}

	s.events = names
	s.schemaDeclared = true
	s.schemaLine = line
	s.agg = costtree.New(len(names))
	s.seen["events"] = line
}

func (s *Session) positionsLine(args []Token, line int) {
	if len(args) == 0 {
		s.report(model.DiagSyntaxError, line, "positions: without position names")
		return
	}
	positions := make([]string, 0, len(args))
	for _, a := range args {
		if a.Kind != KindName || (a.Text != PositionInstr && a.Text != PositionLine) {
			s.report(model.DiagSyntaxError, line, "positions: unknown position %s", a)
			return
		}
		for _, p := range positions {
			if p == a.Text {
				s.report(model.DiagSyntaxError, line, "positions: %q listed twice", a.Text)
				return
			}
		}
		positions = append(positions, a.Text)
	}
	s.setHeader("positions", "positions", line, func() {
		s.positions = positions
		s.positionsDeclared = true
	})
}

// totalsLine handles summary: and totals:. Both may appear anywhere and
// are checked against the recorded self costs once the input ends.
func (s *Session) totalsLine(name string, args []Token, line int) {
	values := make(model.CostVector, 0, len(args))
	for _, a := range args {
		if !a.IsNumber() {
			s.report(model.DiagSyntaxError, line, "%s: expected a number, got %s", name, a)
			return
		}
		values = append(values, a.Value)
	}
	if s.schemaDeclared && len(values) > len(s.events) {
		s.report(model.DiagSyntaxError, line, "%s: %d values for %d events", name, len(values), len(s.events))
		return
	}
	s.setHeader(name, name, line, func() {
		s.declared = values
		s.declaredLine = line
	})
}

func (s *Session) positionLine(kw keyword, args []Token, line int) {
	s.bodyStarted = true
	name, ok := s.positionName(kw, args, line)

	switch kw.position {
	case Object:
		s.pos.object, s.pos.objectBad = name, !ok
	case SourceFile:
		// fi= and fe= switch the inlined source file only; the function
		// identity keeps the fl= file.
		if kw.name == "fl" {
			s.pos.file, s.pos.fileBad = name, !ok
		}
	case Function:
		s.pos.current = model.FunctionID{Object: s.pos.object, File: s.pos.file, Name: name}
		s.pos.hasFunction = true
		s.pos.functionBad = !ok || s.pos.objectBad || s.pos.fileBad
	case CalledObject:
		s.called.object, s.called.hasObject, s.called.objectBad = name, true, !ok
	case CalledSourceFile:
		s.called.file, s.called.hasFile, s.called.fileBad = name, true, !ok
	case CalledFunction:
		s.called.fn, s.called.hasFn, s.called.fnBad = name, true, !ok
	}
}

// positionName resolves "(id) name", "(id)" or "name". ok is false when
// the name is unknown; the failure has been reported.
func (s *Session) positionName(kw keyword, args []Token, line int) (string, bool) {
	var marker *Token
	rest := ""
	for i := range args {
		switch args[i].Kind {
		case KindPositionMarker:
			marker = &args[i]
		case KindRest:
			rest = args[i].Text
		}
	}

	switch {
	case marker != nil && rest != "":
		s.names.Define(kw.position, marker.Value, rest)
		return rest, true
	case marker != nil:
		name, err := s.names.Resolve(kw.position, marker.Value)
		if err != nil {
			s.report(model.DiagDanglingReference, line, "%s=(%d) used before it was defined", kw.name, marker.Value)
			return "", false
		}
		return name, true
	case rest != "":
		return rest, true
	default:
		s.report(model.DiagSyntaxError, line, "%s= without a name", kw.name)
		return "", false
	}
}

func (s *Session) callLine(args []Token, line int) {
	if !s.requireSchema(line, "calls=") {
		return
	}
	s.bodyStarted = true

	called := s.called
	s.called = calledContext{}
	// A rejected calls= line still owns the cost line that follows it.
	s.pending = &pendingCall{line: line, drop: true}

	if len(args) == 0 || !args[0].IsNumber() {
		s.report(model.DiagSyntaxError, line, "calls= needs a call count")
		return
	}
	if !s.checkPositions(args[1:], line, "calls=") {
		return
	}
	if !called.hasFn {
		s.report(model.DiagSyntaxError, line, "calls= without a preceding cfn=")
		return
	}
	if !s.pos.hasFunction {
		s.report(model.DiagSyntaxError, line, "calls= before any fn=")
		return
	}
	if called.bad() || s.pos.functionBad {
		return
	}

	callee := model.FunctionID{Object: s.pos.object, File: s.pos.file, Name: called.fn}
	if called.hasObject {
		callee.Object = called.object
	}
	if called.hasFile {
		callee.File = called.file
	}
	s.pending = &pendingCall{
		line:   line,
		caller: s.pos.current,
		callee: callee,
		count:  args[0].Value,
	}
}

func (s *Session) jumpLine(name string, args []Token, line int) {
	if !s.requireSchema(line, name+"=") {
		return
	}
	s.bodyStarted = true

	counts := 1
	if name == "jcnd" {
		counts = 2
	}
	if len(args) < counts {
		s.report(model.DiagSyntaxError, line, "%s= expects %d counts", name, counts)
		return
	}
	for _, a := range args[:counts] {
		if !a.IsNumber() {
			s.report(model.DiagSyntaxError, line, "%s= expected a count, got %s", name, a)
			return
		}
	}
	if !s.checkPositions(args[counts:], line, name+"=") {
		return
	}
	s.jumps++
}

// checkPositions validates the target sub-positions of calls= and jumps.
func (s *Session) checkPositions(args []Token, line int, what string) bool {
	if len(args) > len(s.positions) {
		s.report(model.DiagSyntaxError, line, "%s has %d target positions, %d declared", what, len(args), len(s.positions))
		return false
	}
	for _, a := range args {
		if !a.IsPosition() {
			s.report(model.DiagSyntaxError, line, "%s expected a position, got %s", what, a)
			return false
		}
	}
	return true
}

func (s *Session) costLine(toks []Token, line int) {
	if !s.requireSchema(line, "cost line") {
		return
	}
	s.bodyStarted = true

	pending := s.pending
	s.pending = nil

	p := len(s.positions)
	if len(toks) < p {
		s.report(model.DiagSyntaxError, line, "cost line has %d values, %d position columns declared", len(toks), p)
		return
	}
	for _, t := range toks[:p] {
		if !t.IsPosition() {
			s.report(model.DiagSyntaxError, line, "expected a position, got %s", t)
			return
		}
	}

	costs := toks[p:]
	width := len(s.events)
	if len(costs) > width {
		s.report(model.DiagSyntaxError, line, "cost line has %d costs, %d events declared", len(costs), width)
		return
	}
	vec := model.NewCostVector(width)
	for i, t := range costs {
		if !t.IsNumber() {
			s.report(model.DiagSyntaxError, line, "expected a cost, got %s", t)
			return
		}
		vec[i] = t.Value
	}

	if pending != nil {
		if pending.drop {
			s.dropped++
			return
		}
		saturated := s.agg.Saturated()
		if err := s.agg.RecordCall(pending.caller, pending.callee, pending.count, vec); err != nil {
			s.report(model.DiagSyntaxError, line, "call record rejected: %v", err)
		}
		s.checkSaturation(saturated, line)
		return
	}

	if !s.pos.hasFunction {
		s.report(model.DiagSyntaxError, line, "cost line before any fn=")
		return
	}
	if s.pos.functionBad {
		s.dropped++
		return
	}
	saturated := s.agg.Saturated()
	if err := s.agg.RecordCost(s.pos.current, vec); err != nil {
		s.report(model.DiagSyntaxError, line, "cost record rejected: %v", err)
	}
	s.checkSaturation(saturated, line)
}

// checkSaturation warns once, on the record that first pushed a sum past
// 64 bits.
func (s *Session) checkSaturation(before bool, line int) {
	if !before && s.agg.Saturated() {
		s.report(model.DiagNumericOverflow, line, "aggregated value exceeds 64 bits, clamped to %d", uint64(math.MaxUint64))
	}
}

func (s *Session) requireSchema(line int, what string) bool {
	if s.schemaDeclared {
		return true
	}
	s.fail(model.DiagSchemaMissing, line, "%s before the events: line", what)
	return false
}

func (s *Session) unterminatedCall() {
	if !s.pending.drop {
		s.report(model.DiagSyntaxError, s.pending.line, "calls= not followed by a cost line")
	}
	s.pending = nil
}

func (s *Session) checkTotals() {
	if s.declared == nil || !s.schemaDeclared {
		return
	}
	declared := s.declaredTotals()
	recorded := s.agg.Totals()
	if declared.Equal(recorded) {
		return
	}
	s.report(model.DiagTotalsMismatch, s.declaredLine,
		"declared totals %v differ from the recorded self costs %v", []uint64(declared), []uint64(recorded))
}

func (s *Session) report(kind model.DiagnosticKind, line int, format string, args ...interface{}) {
	if s.opts.MaxDiagnostics > 0 && len(s.diags) >= s.opts.MaxDiagnostics {
		s.suppressed++
		return
	}
	s.diags = append(s.diags, model.NewDiagnostic(kind, line, format, args...))
}

// fail records a fatal diagnostic and stops the session.
func (s *Session) fail(kind model.DiagnosticKind, line int, format string, args ...interface{}) {
	d := model.NewDiagnostic(kind, line, format, args...)
	s.diags = append(s.diags, d)
	s.fatal = d.Err()
}

func (s *Session) firstError() error {
	for _, d := range s.diags {
		if d.Severity >= model.SeverityError {
			return d.Err()
		}
	}
	return nil
}

func (s *Session) aggregator() *costtree.Aggregator {
	if s.agg == nil {
		return costtree.New(len(s.events))
	}
	return s.agg
}

func (s *Session) currentHeader() model.ProfileHeader {
	h := s.header.Clone()
	h.Positions = append([]string(nil), s.positions...)
	return h
}

// declaredTotals pads the declared totals to the schema width.
func (s *Session) declaredTotals() model.CostVector {
	if s.declared == nil {
		return nil
	}
	width := len(s.events)
	if len(s.declared) >= width {
		return s.declared.Clone()
	}
	v := model.NewCostVector(width)
	copy(v, s.declared)
	return v
}

func restText(args []Token) string {
	for _, a := range args {
		if a.Kind == KindRest {
			return a.Text
		}
	}
	return ""
}

func isEventName(name string) bool {
	if name == "" || !isAlpha(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isAlpha(name[i]) && !isDigit(name[i]) {
			return false
		}
	}
	return true
}
