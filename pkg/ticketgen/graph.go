package ticketgen

import (
	"fmt"
	"strings"

	"github.com/forgeworks/swarm/pkg/models"
)

// resolveDependencies maps each draft's depends_on titles to draft indices.
// Planner output references tickets by title because ids do not exist yet.
func resolveDependencies(drafts []models.TicketDraft) ([][]int, error) {
	byTitle := make(map[string]int, len(drafts))
	for i, d := range drafts {
		if prev, dup := byTitle[d.Title]; dup {
			return nil, fmt.Errorf("duplicate ticket title %q (tickets %d and %d)", d.Title, prev, i)
		}
		byTitle[d.Title] = i
	}

	deps := make([][]int, len(drafts))
	for i, d := range drafts {
		for _, title := range d.DependsOn {
			j, ok := byTitle[title]
			if !ok {
				return nil, fmt.Errorf("ticket %q depends on unknown ticket %q", d.Title, title)
			}
			if j == i {
				return nil, fmt.Errorf("ticket %q depends on itself", d.Title)
			}
			deps[i] = append(deps[i], j)
		}
	}
	return deps, nil
}

// validateAcyclic rejects dependency graphs with cycles. A cyclic graph would
// deadlock the cascade: every ticket on the cycle waits for another forever.
func validateAcyclic(drafts []models.TicketDraft, deps [][]int) error {
	const (
		unvisited = 0
		inStack   = 1
		finished  = 2
	)
	state := make([]int, len(drafts))

	var visit func(i int, path []int) error
	visit = func(i int, path []int) error {
		state[i] = inStack
		path = append(path, i)
		for _, j := range deps[i] {
			switch state[j] {
			case inStack:
				return fmt.Errorf("dependency cycle: %s", cyclePath(drafts, append(path, j)))
			case unvisited:
				if err := visit(j, path); err != nil {
					return err
				}
			}
		}
		state[i] = finished
		return nil
	}

	for i := range drafts {
		if state[i] == unvisited {
			if err := visit(i, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// cyclePath renders the closing portion of a cycle as title -> title -> title.
func cyclePath(drafts []models.TicketDraft, path []int) string {
	last := path[len(path)-1]
	start := 0
	for k, i := range path {
		if i == last {
			start = k
			break
		}
	}
	titles := make([]string, 0, len(path)-start)
	for _, i := range path[start:] {
		titles = append(titles, drafts[i].Title)
	}
	return strings.Join(titles, " -> ")
}
