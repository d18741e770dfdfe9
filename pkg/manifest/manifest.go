// Package manifest builds ledger transaction manifests as a list of typed instructions and renders
// them to the textual wire format only when submitting.
package manifest

import (
	"fmt"
	"strings"
)

type Instruction interface {
	Render() string
}

type CallMethod struct {
	Address string
	Method  string
	Args    []Value
}

func (c *CallMethod) Render() string {
	var sb strings.Builder
	sb.WriteString("CALL_METHOD\n")
	sb.WriteString(fmt.Sprintf("    %s\n", Address(c.Address).Render()))
	sb.WriteString(fmt.Sprintf("    %s\n", quote(c.Method)))
	for _, arg := range c.Args {
		sb.WriteString(fmt.Sprintf("    %s\n", arg.Render()))
	}
	sb.WriteString(";")
	return sb.String()
}

type Manifest struct {
	Instructions []Instruction
}

func New(instructions ...Instruction) *Manifest {
	return &Manifest{Instructions: instructions}
}

func (m *Manifest) Append(i ...Instruction) *Manifest {
	m.Instructions = append(m.Instructions, i...)
	return m
}

// Prepend returns a copy of the manifest with the instructions placed first.
func (m *Manifest) Prepend(i ...Instruction) *Manifest {
	instructions := make([]Instruction, 0, len(i)+len(m.Instructions))
	instructions = append(instructions, i...)
	instructions = append(instructions, m.Instructions...)
	return &Manifest{Instructions: instructions}
}

func (m *Manifest) Render() string {
	rendered := make([]string, 0, len(m.Instructions))
	for _, i := range m.Instructions {
		rendered = append(rendered, i.Render())
	}
	return strings.Join(rendered, "\n")
}

func (m *Manifest) Methods() []string {
	methods := make([]string, 0, len(m.Instructions))
	for _, i := range m.Instructions {
		if c, ok := i.(*CallMethod); ok {
			methods = append(methods, c.Method)
		}
	}
	return methods
}
