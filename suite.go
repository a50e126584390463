package chainrun

import "strings"

// Suite is a named group of cases, hooks and nested suites.
type Suite struct {
	Name     string
	parent   *Suite
	hooks    []func(*Cy)
	cases    []*Case
	children []*Suite
}

// Case is a single test case.
type Case struct {
	Name  string
	Body  func(*Cy)
	Skip  bool
	suite *Suite
}

// Describe declares a top level suite. fn registers its contents.
func Describe(name string, fn func(s *Suite)) *Suite {
	s := &Suite{Name: name}
	if fn != nil {
		fn(s)
	}
	return s
}

// Describe declares a nested suite.
func (s *Suite) Describe(name string, fn func(s *Suite)) *Suite {
	child := Describe(name, nil)
	child.parent = s
	s.children = append(s.children, child)
	if fn != nil {
		fn(child)
	}
	return child
}

// Context is an alias of Describe.
func (s *Suite) Context(name string, fn func(s *Suite)) *Suite {
	return s.Describe(name, fn)
}

// It declares a case.
func (s *Suite) It(name string, body func(cy *Cy)) *Case {
	c := &Case{Name: name, Body: body, suite: s}
	s.cases = append(s.cases, c)
	return c
}

// Skip declares a case that is reported as skipped without running.
func (s *Suite) Skip(name string, body func(cy *Cy)) *Case {
	c := s.It(name, body)
	c.Skip = true
	return c
}

// BeforeEach registers a hook run before every case of the suite and its
// nested suites, after the hooks of enclosing suites.
func (s *Suite) BeforeEach(hook func(cy *Cy)) {
	s.hooks = append(s.hooks, hook)
}

// Path returns the names of the suite and its ancestors, outermost first.
func (s *Suite) Path() []string {
	var path []string
	for cur := s; cur != nil; cur = cur.parent {
		path = append([]string{cur.Name}, path...)
	}
	return path
}

// Suite returns the suite declaring c.
func (c *Case) Suite() *Suite {
	return c.suite
}

// FullName returns the suite path and the case name joined by spaces.
func (c *Case) FullName() string {
	return strings.Join(append(c.suite.Path(), c.Name), " ")
}

// hook is a beforeEach hook with the suite declaring it.
type hook struct {
	suite *Suite
	fn    func(*Cy)
}

// planned is a case with every hook that runs before it.
type planned struct {
	c     *Case
	hooks []hook
}

// plan flattens suites into cases in execution order: a suite's own cases
// run before its nested suites.
func plan(suites []*Suite) []planned {
	var out []planned
	var walk func(s *Suite, hooks []hook)
	walk = func(s *Suite, hooks []hook) {
		own := make([]hook, len(hooks), len(hooks)+len(s.hooks))
		copy(own, hooks)
		for _, fn := range s.hooks {
			own = append(own, hook{suite: s, fn: fn})
		}
		for _, c := range s.cases {
			out = append(out, planned{c: c, hooks: own})
		}
		for _, child := range s.children {
			walk(child, own)
		}
	}
	for _, s := range suites {
		walk(s, nil)
	}
	return out
}
