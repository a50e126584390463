package chainrun

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// session holds what every command of a case shares.
type session struct {
	provider Provider
	log      logrus.FieldLogger
	cfg      Config
	poller   Poller
	fs       afero.Fs
}

// caseState is the mutable bookkeeping of one running case: the first
// failure and the query chains nothing has consumed yet.
type caseState struct {
	err     error
	pending []*link
}

// scope is a node pushed by Within. Scopes form an immutable list.
type scope struct {
	node   NodeID
	desc   string
	parent *scope
}

// Cy is the entry point of command chains for one case.
//
// A Cy never changes after it is created. Within hands its callback a
// derived Cy whose scope is the within element, so leaving the callback in
// any way leaves the outer Cy untouched.
//
// The first failing command records its error and every later command
// becomes a no-op. Err reports it.
type Cy struct {
	ctx   context.Context
	s     *session
	st    *caseState
	scope *scope
}

// CyOption is a Cy option.
type CyOption = func(*session)

// WithCyLogger sets the logger commands log to.
func WithCyLogger(l logrus.FieldLogger) CyOption {
	return func(s *session) {
		s.log = l
	}
}

// WithCyConfig sets the config commands read their defaults from.
func WithCyConfig(c Config) CyOption {
	return func(s *session) {
		s.cfg = DefaultConfig().Apply(c)
		s.poller = s.cfg.Poller()
	}
}

// WithCyFs sets the file system used for snapshots.
func WithCyFs(fs afero.Fs) CyOption {
	return func(s *session) {
		s.fs = fs
	}
}

// NewCy creates an entry point driving p. Runners create one per case;
// it is exported for driving a provider outside of a Runner.
func NewCy(ctx context.Context, p Provider, opts ...CyOption) *Cy {
	l := logrus.New()
	l.SetOutput(io.Discard)
	s := &session{
		provider: p,
		log:      l,
		cfg:      DefaultConfig(),
		poller:   DefaultPoller,
		fs:       afero.NewOsFs(),
	}
	for _, o := range opts {
		o(s)
	}
	return &Cy{ctx: ctx, s: s, st: &caseState{}}
}

// Err returns the first error recorded by a command.
func (cy *Cy) Err() error {
	return cy.st.err
}

// Context returns the context commands run with.
func (cy *Cy) Context() context.Context {
	return cy.ctx
}

// Provider returns the provider commands run against.
func (cy *Cy) Provider() Provider {
	return cy.s.provider
}

func (cy *Cy) failed() bool {
	return cy.st.err != nil
}

// fail records err, when it is the first failure, and returns a dead
// chain.
func (cy *Cy) fail(err error) Chain {
	if cy.st.err == nil {
		cy.st.err = err
		cy.s.log.WithError(err).Debug("command failed")
	}
	return Chain{cy: cy}
}

func (cy *Cy) logCommand(name, locator string) {
	cy.s.log.WithFields(logrus.Fields{
		"command": name,
		"locator": locator,
	}).Debug("running command")
}

// scopeNode returns the node root queries start from.
func (cy *Cy) scopeNode() NodeID {
	if cy.scope == nil {
		return DocumentNode
	}
	return cy.scope.node
}

func (cy *Cy) scopeDesc(desc string) string {
	if cy.scope == nil {
		return desc
	}
	return cy.scope.desc + " > " + desc
}

// chain registers a lazily resolved query chain.
func (cy *Cy) chain(desc string, timeout time.Duration, resolve func(context.Context) (Subject, error)) Chain {
	l := &link{desc: desc, timeout: timeout, resolve: resolve}
	cy.st.pending = append(cy.st.pending, l)
	return Chain{cy: cy, l: l}
}

// settled returns a chain over an already verified subject.
func (cy *Cy) settled(desc string, sub Subject) Chain {
	l := &link{
		desc:     desc,
		consumed: true,
		resolve: func(context.Context) (Subject, error) {
			return sub, nil
		},
	}
	return Chain{cy: cy, l: l}
}

// flush existence-checks every query chain nothing consumed.
func (cy *Cy) flush() error {
	for len(cy.st.pending) > 0 && cy.st.err == nil {
		l := cy.st.pending[0]
		cy.st.pending = cy.st.pending[1:]
		if l.consumed {
			continue
		}
		l.consumed = true
		if _, err := cy.resolveExisting(l, "", nil); err != nil {
			cy.fail(err)
		}
	}
	cy.st.pending = nil
	return cy.st.err
}

// Flush existence-checks the chains nobody consumed and returns the case
// error. Runners call it after each hook and body.
func (cy *Cy) Flush() error {
	return cy.flush()
}

// root prepares a root command: it flushes pending chains and reports
// whether the command may run.
func (cy *Cy) root() bool {
	if cy.failed() {
		return false
	}
	return cy.flush() == nil
}

// QueryOptions are the options of Get.
type QueryOptions struct {
	// Timeout overrides the default command timeout.
	Timeout time.Duration
}

// Get queries the elements matching sel within the current scope.
//
// A trailing :first, :last or :eq(n) selects from the matched set.
func (cy *Cy) Get(sel string) Chain {
	return cy.GetWith(sel, QueryOptions{})
}

// GetWith is Get with options.
func (cy *Cy) GetWith(sel string, opts QueryOptions) Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	desc := cy.scopeDesc(fmt.Sprintf("get(%q)", sel))
	cy.logCommand("get", desc)
	from := cy.scopeNode()
	base, positional := splitPositional(sel)
	return cy.chain(desc, opts.Timeout, func(ctx context.Context) (Subject, error) {
		nodes, err := cy.s.provider.QueryAll(ctx, from, Query{Relation: Descendants, Selector: base})
		if err != nil {
			return Subject{}, err
		}
		return NodeSubject(positional(nodes)...), nil
	})
}

// Root yields the scope element: the html element at top level, the
// within element inside Within.
func (cy *Cy) Root() Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	if cy.scope != nil {
		return cy.settled(cy.scope.desc, NodeSubject(cy.scope.node))
	}
	cy.logCommand("root", "root()")
	return cy.chain("root()", 0, func(ctx context.Context) (Subject, error) {
		nodes, err := cy.s.provider.QueryAll(ctx, DocumentNode, Query{Relation: Children})
		if err != nil {
			return Subject{}, err
		}
		return NodeSubject(pick(nodes, 0)...), nil
	})
}

// Contains yields the deepest element within the current scope whose text
// contains text. See Chain.Contains.
func (cy *Cy) Contains(text interface{}) Chain {
	return cy.ContainsIn("", text)
}

// ContainsIn yields the deepest element matching sel within the current
// scope whose text contains text.
func (cy *Cy) ContainsIn(sel string, text interface{}) Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	m, err := newTextMatcher(text)
	if err != nil {
		return cy.fail(&CommandError{Command: "contains", Err: err})
	}
	desc := cy.scopeDesc(containsDesc(sel, m))
	cy.logCommand("contains", desc)
	from := cy.scopeNode()
	return cy.chain(desc, 0, func(ctx context.Context) (Subject, error) {
		return cy.contains(ctx, []NodeID{from}, sel, m)
	})
}

// Wrap yields v as the subject.
func (cy *Cy) Wrap(v interface{}) Chain {
	if !cy.root() {
		return Chain{cy: cy}
	}
	return cy.settled(fmt.Sprintf("wrap(%s)", formatValue(v)), ValueSubject(v))
}

var positionalRE = regexp.MustCompile(`:(first|last|eq\((-?\d+)\))$`)

// splitPositional strips a trailing jQuery positional pseudo class from
// sel and returns the plain selector with the function applying it.
func splitPositional(sel string) (string, func([]NodeID) []NodeID) {
	m := positionalRE.FindStringSubmatch(sel)
	if m == nil {
		return sel, func(ids []NodeID) []NodeID { return ids }
	}
	base := sel[:len(sel)-len(m[0])]
	switch m[1] {
	case "first":
		return base, func(ids []NodeID) []NodeID { return pick(ids, 0) }
	case "last":
		return base, func(ids []NodeID) []NodeID { return pick(ids, -1) }
	}
	n, _ := strconv.Atoi(m[2])
	return base, func(ids []NodeID) []NodeID { return pick(ids, n) }
}

// pick returns the element at index i, counting from the end when i is
// negative, or nothing when out of range.
func pick(ids []NodeID, i int) []NodeID {
	if i < 0 {
		i += len(ids)
	}
	if i < 0 || i >= len(ids) {
		return nil
	}
	return []NodeID{ids[i]}
}
