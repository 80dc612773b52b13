// Package vtable models the deployment version table inside a Confluence
// page's storage-format body. The expected layout is two header rows (a
// banner row, then one cell per component) followed by one row per
// environment whose first cell is the environment label.
package vtable

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrNoTable means the page body contains no table at all.
	ErrNoTable = errors.New("no table found in page body")

	// ErrComponentNotFound means no component header cell matched.
	ErrComponentNotFound = errors.New("component not found in version table")

	// ErrEnvironmentNotFound means no row's label cell matched.
	ErrEnvironmentNotFound = errors.New("environment not found in version table")
)

// Table is a parsed storage-format body holding one version table. The
// full fragment is kept so Render reproduces everything around the table
// untouched.
type Table struct {
	fragment []*html.Node
	table    *html.Node
}

// Parse parses storage-format markup and locates the first table. The
// markup is treated as a body fragment so Render does not grow a
// synthetic html/body wrapper.
func Parse(body string) (*Table, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(body), ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page body: %w", err)
	}

	var table *html.Node
	for _, n := range nodes {
		if table = findElement(n, atom.Table); table != nil {
			break
		}
	}
	if table == nil {
		return nil, ErrNoTable
	}

	return &Table{fragment: nodes, table: table}, nil
}

// SetVersion replaces the version text in the cell addressed by
// (component, environment). Only that cell changes; the version ends up
// inside the cell's <p>, inserting one if the cell has none.
func (t *Table) SetVersion(component, environment, version string) error {
	cell, err := t.locate(component, environment)
	if err != nil {
		return err
	}

	p := findElement(cell, atom.P)
	if p == nil {
		p = &html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P}
		removeChildren(cell)
		cell.AppendChild(p)
	}
	removeChildren(p)
	p.AppendChild(&html.Node{Type: html.TextNode, Data: version})

	return nil
}

// CellText returns the current text of the cell addressed by
// (component, environment).
func (t *Table) CellText(component, environment string) (string, error) {
	cell, err := t.locate(component, environment)
	if err != nil {
		return "", err
	}
	return nodeText(cell), nil
}

// Render serializes the fragment back to storage-format markup.
func (t *Table) Render() (string, error) {
	var sb strings.Builder
	for _, n := range t.fragment {
		if err := html.Render(&sb, n); err != nil {
			return "", fmt.Errorf("failed to render page body: %w", err)
		}
	}
	return sb.String(), nil
}

// locate resolves (component, environment) to the target version cell.
// Components live in the second header row; environments label the first
// cell of every later row. Both comparisons are trimmed and
// case-insensitive, and the first match wins.
func (t *Table) locate(component, environment string) (*html.Node, error) {
	rows := tableRows(t.table)
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: table has no component header row", ErrComponentNotFound)
	}

	colIdx := -1
	for i, cell := range rowCells(rows[1]) {
		if strings.EqualFold(nodeText(cell), strings.TrimSpace(component)) {
			colIdx = i
			break
		}
	}
	if colIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrComponentNotFound, component)
	}

	for _, row := range rows[2:] {
		cells := rowCells(row)
		if len(cells) == 0 {
			continue
		}
		if !strings.EqualFold(nodeText(cells[0]), strings.TrimSpace(environment)) {
			continue
		}

		// Version cells are everything after the environment label.
		verCells := cells[1:]
		if colIdx >= len(verCells) {
			return nil, fmt.Errorf("%w: row %q has %d version cells, component %q is column %d",
				ErrComponentNotFound, nodeText(cells[0]), len(verCells), component, colIdx+1)
		}
		return verCells[colIdx], nil
	}

	return nil, fmt.Errorf("%w: %q", ErrEnvironmentNotFound, environment)
}

// tableRows collects the tr elements of a table in document order,
// including rows nested under thead/tbody.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Tr {
				rows = append(rows, c)
				continue
			}
			walk(c)
		}
	}
	walk(table)
	return rows
}

// rowCells collects the th/td cells of a row.
func rowCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Th || c.DataAtom == atom.Td) {
			cells = append(cells, c)
		}
	}
	return cells
}

// findElement returns the first descendant with the given tag, or the node
// itself. Depth-first, document order.
func findElement(n *html.Node, tag atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// nodeText concatenates the trimmed text content of a node's subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// removeChildren detaches all children of a node.
func removeChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}
