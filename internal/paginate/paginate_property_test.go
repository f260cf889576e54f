//go:build property
// +build property

package paginate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSplit_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("concatenation reconstructs the input", prop.ForAll(
		func(items []int, perPage int) bool {
			var flat []int
			for _, p := range Split(items, perPage) {
				flat = append(flat, p...)
			}
			if len(flat) != len(items) {
				return false
			}
			for i := range items {
				if flat[i] != items[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int()),
		gen.IntRange(1, 20),
	))

	properties.Property("every page but the last is full", prop.ForAll(
		func(items []int, perPage int) bool {
			pages := Split(items, perPage)
			for i, p := range pages {
				if i < len(pages)-1 && len(p) != perPage {
					return false
				}
				if len(p) > perPage {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int()),
		gen.IntRange(1, 20),
	))

	properties.TestingRun(t)
}

func TestLinks_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("row brackets first and last page without duplicates", prop.ForAll(
		func(total, current int) bool {
			if current > total {
				current = total
			}
			links := Links("index", current, total, ".html")
			if total <= 1 {
				return len(links) == 0
			}
			if links[0].Number != 1 || links[len(links)-1].Number != total {
				return false
			}
			seen := map[int]bool{}
			currents := 0
			for _, l := range links {
				if l.Ellipsis {
					continue
				}
				if seen[l.Number] {
					return false
				}
				seen[l.Number] = true
				if l.Current {
					currents++
				}
			}
			return currents == 1 && seen[current]
		},
		gen.IntRange(0, 50),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
