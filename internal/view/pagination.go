package view

// Pager is the offset/limit position of a paged table
type Pager struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewPager starts on the first page
func NewPager(limit int) Pager {
	return Pager{Limit: limit}
}

// TotalPages is ceil(count/limit)
func (p Pager) TotalPages(count int) int {
	if p.Limit <= 0 || count <= 0 {
		return 0
	}
	return (count + p.Limit - 1) / p.Limit
}

// CurrentPage is 1-based
func (p Pager) CurrentPage() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}

// Window returns the 0-based page indexes shown as direct links: up to three
// pages before the current one and one after, or the first five near the start
func (p Pager) Window(count int) []int {
	cur := p.CurrentPage()
	start, end := 0, 4
	if cur > 3 {
		start, end = cur-3, cur+1
	}
	if last := p.TotalPages(count) - 1; end > last {
		end = last
	}
	if end < start {
		return nil
	}

	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}

// CanPrev is false on the first page
func (p Pager) CanPrev() bool {
	return p.CurrentPage() > 1
}

// CanNext is false on the last page
func (p Pager) CanNext(count int) bool {
	return p.CurrentPage() < p.TotalPages(count)
}

// Next moves one page forward; it does nothing while the count is unknown
// or on the last page
func (p *Pager) Next(count int, known bool) {
	if !known || !p.CanNext(count) {
		return
	}
	p.Offset += p.Limit
}

// Prev moves one page back, stopping at the first page
func (p *Pager) Prev() {
	p.Offset -= p.Limit
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// JumpTo moves to the 0-based page i
func (p *Pager) JumpTo(i int) {
	if i < 0 {
		return
	}
	p.Offset = i * p.Limit
}

// Reset returns to the first page
func (p *Pager) Reset() {
	p.Offset = 0
}

// Clamp pulls the offset back onto the last page of count and realigns it
// to a multiple of limit; it reports whether the offset changed
func (p *Pager) Clamp(count int) bool {
	before := p.Offset
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit > 0 {
		p.Offset -= p.Offset % p.Limit
		if last := p.TotalPages(count) - 1; p.CurrentPage()-1 > last {
			if last < 0 {
				last = 0
			}
			p.Offset = last * p.Limit
		}
	}
	return p.Offset != before
}
