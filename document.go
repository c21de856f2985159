package geoselect

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TableSource supplies the lookup table. *Loader implements it.
type TableSource interface {
	Load(ctx context.Context) LookupTable
}

// Document is a parsed HTML page whose <select> elements can be bound to
// the lookup table and rendered back out. It is not safe for concurrent use.
type Document struct {
	root    *html.Node
	selects []*Select
	nodes   map[*Select]*html.Node
	bound   map[*Select]bool
	pairs   map[*Select]*Pair // by country control
	logger  *zap.Logger
}

// DocumentOption configures a Document.
type DocumentOption func(*Document)

// WithDocumentLogger sets the logger used to report missing controls.
func WithDocumentLogger(logger *zap.Logger) DocumentOption {
	return func(d *Document) {
		d.logger = logger
	}
}

// ParseDocument parses an HTML page and indexes its <select> elements in
// document order.
func ParseDocument(r io.Reader, opts ...DocumentOption) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	d := &Document{
		root:   root,
		nodes:  make(map[*Select]*html.Node),
		bound:  make(map[*Select]bool),
		pairs:  make(map[*Select]*Pair),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.index(root)
	return d, nil
}

func (d *Document) index(n *html.Node) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Select {
		s := &Select{
			ID:       attr(n, "id"),
			Name:     attr(n, "name"),
			Initial:  attr(n, "data-initial"),
			Disabled: hasAttr(n, "disabled"),
			Options:  readOptions(n),
		}
		d.selects = append(d.selects, s)
		d.nodes[s] = n
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.index(c)
	}
}

// Selects returns the document's controls in document order.
func (d *Document) Selects() []*Select { return d.selects }

// Lookup returns the control whose id is field, else the first whose name
// is field, else nil.
func (d *Document) Lookup(field string) *Select {
	if field == "" {
		return nil
	}
	for _, s := range d.selects {
		if s.ID == field {
			return s
		}
	}
	for _, s := range d.selects {
		if s.Name == field {
			return s
		}
	}
	return nil
}

// Bind loads the table from src and binds each declared pair. With no
// pairs declared the pairs are discovered with DiscoverPairs. Pairs naming
// a control the document lacks are logged and skipped. The table is loaded
// only when there is something to bind. Binding a country control again
// reuses its pair, so repeated calls re-render without stacking listeners.
func (d *Document) Bind(ctx context.Context, src TableSource, pairs ...PairConfig) []*Pair {
	if len(pairs) == 0 {
		pairs = DiscoverPairs(d.selects)
	}
	if len(pairs) == 0 {
		return nil
	}

	table := src.Load(ctx)
	bound := make([]*Pair, 0, len(pairs))
	for _, pc := range pairs {
		country := d.Lookup(pc.CountryField)
		city := d.Lookup(pc.CityField)
		if country == nil || city == nil {
			d.logger.Warn("select not found",
				zap.String("country_field", pc.CountryField),
				zap.String("city_field", pc.CityField))
			continue
		}
		p, ok := d.pairs[country]
		if !ok {
			p = NewPair(country, city)
			d.pairs[country] = p
		}
		p.City = city
		p.Bind(table)
		d.bound[country] = true
		d.bound[city] = true
		bound = append(bound, p)
	}
	return bound
}

// Render writes the document with every bound control's options and
// disabled attribute replaced by its current state.
func (d *Document) Render(w io.Writer) error {
	for s, n := range d.nodes {
		if d.bound[s] {
			syncSelect(n, s)
		}
	}
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	return nil
}

func syncSelect(n *html.Node, s *Select) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	for _, o := range s.Options {
		opt := &html.Node{
			Type:     html.ElementNode,
			Data:     "option",
			DataAtom: atom.Option,
			Attr:     []html.Attribute{{Key: "value", Val: o.Value}},
		}
		if o.Selected {
			opt.Attr = append(opt.Attr, html.Attribute{Key: "selected"})
		}
		opt.AppendChild(&html.Node{Type: html.TextNode, Data: o.Label})
		n.AppendChild(opt)
	}
	setBoolAttr(n, "disabled", s.Disabled)
}

func readOptions(sel *html.Node) []SelectOption {
	var opts []SelectOption
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Option:
				label := strings.TrimSpace(textContent(c))
				value := label
				if v, ok := lookupAttr(c, "value"); ok {
					value = v
				}
				opts = append(opts, SelectOption{Value: value, Label: label, Selected: hasAttr(c, "selected")})
			case atom.Optgroup:
				walk(c)
			}
		}
	}
	walk(sel)
	return opts
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := lookupAttr(n, key)
	return ok
}

func setBoolAttr(n *html.Node, key string, on bool) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
	if on {
		n.Attr = append(n.Attr, html.Attribute{Key: key})
	}
}
