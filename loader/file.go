package loader

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// suiteFile is the YAML form of a suite.
type suiteFile struct {
	Describe   string      `yaml:"describe"`
	BeforeEach []stepFile  `yaml:"beforeEach"`
	It         []caseFile  `yaml:"it"`
	Context    []suiteFile `yaml:"context"`
}

// caseFile is the YAML form of a case.
type caseFile struct {
	Name  string     `yaml:"name"`
	Skip  bool       `yaml:"skip"`
	Steps []stepFile `yaml:"steps"`
	Line  int        `yaml:"-"`
}

// UnmarshalYAML satisfies yaml.Unmarshaler.
func (c *caseFile) UnmarshalYAML(n *yaml.Node) error {
	type plain caseFile
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = caseFile(p)
	c.Line = n.Line
	return nil
}

// stepFile is a chain of commands run left to right. A single command may
// be written without the enclosing list.
type stepFile struct {
	Commands []commandFile
	Line     int
}

// UnmarshalYAML satisfies yaml.Unmarshaler.
func (s *stepFile) UnmarshalYAML(n *yaml.Node) error {
	s.Line = n.Line
	switch n.Kind {
	case yaml.MappingNode, yaml.ScalarNode:
		var c commandFile
		if err := n.Decode(&c); err != nil {
			return err
		}
		s.Commands = []commandFile{c}
		return nil
	case yaml.SequenceNode:
		if len(n.Content) == 0 {
			return fmt.Errorf("line %d: empty step", n.Line)
		}
		return n.Decode(&s.Commands)
	}
	return fmt.Errorf("line %d: a step is a command or a list of commands", n.Line)
}

// commandFile is a single key map: the command name and its arguments. A
// scalar value is the only argument, a list holds the arguments, and a map
// as the value or as the last list item holds the options.
type commandFile struct {
	Name   string
	Args   []interface{}
	Opts   map[string]interface{}
	Within []stepFile
	Line   int
}

// UnmarshalYAML satisfies yaml.Unmarshaler.
func (c *commandFile) UnmarshalYAML(n *yaml.Node) error {
	c.Line = n.Line
	if n.Kind == yaml.ScalarNode {
		// A bare name is a command without arguments.
		c.Name = n.Value
		return nil
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return fmt.Errorf("line %d: a command is a map with a single key", n.Line)
	}
	c.Name = n.Content[0].Value
	val := n.Content[1]
	if c.Name == "within" {
		if val.Kind != yaml.SequenceNode {
			return fmt.Errorf("line %d: within takes a list of steps", val.Line)
		}
		return val.Decode(&c.Within)
	}
	switch val.Kind {
	case yaml.ScalarNode:
		if val.Tag == "!!null" {
			return nil
		}
		var v interface{}
		if err := val.Decode(&v); err != nil {
			return err
		}
		c.Args = []interface{}{v}
	case yaml.SequenceNode:
		if err := val.Decode(&c.Args); err != nil {
			return err
		}
		if len(c.Args) > 0 {
			if m, ok := c.Args[len(c.Args)-1].(map[string]interface{}); ok && len(val.Content) > 0 && val.Content[len(val.Content)-1].Kind == yaml.MappingNode {
				c.Opts = m
				c.Args = c.Args[:len(c.Args)-1]
			}
		}
	case yaml.MappingNode:
		if err := val.Decode(&c.Opts); err != nil {
			return err
		}
	default:
		return errors.New("unsupported command value")
	}
	return nil
}
