package pages

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// PrintRoutes writes one line per mounted page: method, full route, page
// name and title.
func (sp *StructPages) PrintRoutes(w io.Writer) error {
	sp.mu.Lock()
	roots := append([]*PageNode(nil), sp.mounted...)
	sp.mu.Unlock()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, root := range roots {
		for node := range root.All() {
			if len(node.Children) > 0 && len(node.Components) == 0 && !node.Value.Type().Implements(handlerType) {
				continue // route group only
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", node.Method, node.FullRoute(), node.Name, node.Title)
		}
	}
	return tw.Flush()
}
