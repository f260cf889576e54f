// Package paginate splits sorted listings into fixed-size pages and
// computes the truncated row of pagination links.
package paginate

import "fmt"

// PageLink is one element of a pagination row. Ellipsis entries carry
// no number or URL, they render as a gap marker.
type PageLink struct {
	Number   int
	URL      string
	Current  bool
	Ellipsis bool
}

// Split groups items into consecutive runs of perPage, the last run
// may be shorter. The caller supplies items already sorted. An empty
// input yields exactly one empty page so a listing page is still
// produced.
func Split[T any](items []T, perPage int) [][]T {
	if perPage < 1 {
		perPage = 1
	}
	if len(items) == 0 {
		return [][]T{{}}
	}

	pages := make([][]T, 0, (len(items)+perPage-1)/perPage)
	for start := 0; start < len(items); start += perPage {
		end := start + perPage
		if end > len(items) {
			end = len(items)
		}
		pages = append(pages, items[start:end])
	}
	return pages
}

// PageURL maps a listing page number to its artifact name: page 1 is
// the bare listing name, page N is name-N, both with the configured
// suffix.
func PageURL(name string, n int, suffix string) string {
	if n <= 1 {
		return name + suffix
	}
	return fmt.Sprintf("%s-%d%s", name, n, suffix)
}

// Links returns the pagination row for a listing. A single page needs
// no row. Up to seven pages are listed in full; beyond that the row
// keeps the first page, a window of two around the current page and
// the last page, with ellipsis markers for the gaps.
func Links(name string, current, total int, suffix string) []PageLink {
	if total <= 1 {
		return nil
	}

	page := func(n int) PageLink {
		return PageLink{Number: n, URL: PageURL(name, n, suffix), Current: n == current}
	}

	if total <= 7 {
		links := make([]PageLink, 0, total)
		for n := 1; n <= total; n++ {
			links = append(links, page(n))
		}
		return links
	}

	lo := current - 2
	if lo < 2 {
		lo = 2
	}
	hi := current + 2
	if hi > total-1 {
		hi = total - 1
	}

	links := []PageLink{page(1)}
	if lo > 2 {
		links = append(links, PageLink{Ellipsis: true})
	}
	for n := lo; n <= hi; n++ {
		links = append(links, page(n))
	}
	if hi < total-1 {
		links = append(links, PageLink{Ellipsis: true})
	}
	links = append(links, page(total))
	return links
}
