package memnet

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

type dotNode struct {
	ID    string
	Title string
	Shape string
	Notes []string
}

// ToDot renders the hop structure of an initialized network: the query, the two memory
// representations, every hop and the projection. Use it with Graphviz.
func (n *Net) ToDot() (string, error) {
	if n.hops == nil {
		return "", errors.New("cannot render an uninitialized network")
	}
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	add := func(d dotNode) error {
		buf.Reset()
		if err := dotTmpl.Execute(&buf, d); err != nil {
			return err
		}
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    buf.String(),
		}
		return g.AddNode("G", d.ID, attrs)
	}
	edge := func(from, to string) error { return g.AddEdge(from, to, true, nil) }

	u0 := n.hops.states[0]
	nodes := []dotNode{
		{ID: "query", Title: "u0", Shape: fmt.Sprint(u0.Shape()), Notes: []string{fmt.Sprintf("embedded: %t", n.B != nil)}},
		{ID: "A", Title: "m", Shape: fmt.Sprintf("%v", []int{n.BatchSize, n.MemorySize, n.Dim}), Notes: []string{fmt.Sprintf("%T", n.A)}},
		{ID: "C", Title: "c", Shape: fmt.Sprintf("%v", []int{n.BatchSize, n.MemorySize, n.Dim}), Notes: []string{fmt.Sprintf("%T", n.C)}},
	}
	for k := 1; k < len(n.hops.states); k++ {
		notes := []string{fmt.Sprintf("H: %t", n.H != nil), fmt.Sprintf("reludim: %d", n.ReluDim)}
		if n.keep != nil {
			notes = append(notes, fmt.Sprintf("dropout: %v (variational: %t)", n.DropoutRate, n.Variational))
		}
		nodes = append(nodes, dotNode{ID: hopID(k), Title: fmt.Sprintf("u%d", k), Shape: fmt.Sprint(n.hops.states[k].Shape()), Notes: notes})
	}
	nodes = append(nodes, dotNode{ID: "logits", Title: "logits", Shape: fmt.Sprint(n.logits.Shape())})
	for _, d := range nodes {
		if err := add(d); err != nil {
			return "", err
		}
	}

	prev := "query"
	for k := 1; k < len(n.hops.states); k++ {
		for _, from := range []string{prev, "A", "C"} {
			if err := edge(from, hopID(k)); err != nil {
				return "", err
			}
		}
		prev = hopID(k)
	}
	if err := edge(prev, "logits"); err != nil {
		return "", err
	}
	return g.String(), nil
}

func hopID(k int) string { return fmt.Sprintf("hop%d", k) }

const dotTmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD COLSPAN="2">{{.Title}}</TD></TR>
<TR><TD>Shape</TD><TD>{{.Shape}}</TD></TR>
{{range .Notes}}<TR><TD COLSPAN="2">{{.}}</TD></TR>
{{end}}</TABLE>
>
`

var dotTmpl = template.Must(template.New("hop").Parse(dotTmplRaw))
