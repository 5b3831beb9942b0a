package client

import (
	"context"

	"recruit-pipeline/pagination"
)

// AuditLogBrowser pages through the operation log with page numbers while the
// server only speaks cursors.
type AuditLogBrowser struct {
	client  *Client
	index   *pagination.CursorIndex
	filters LogFilters
}

func NewAuditLogBrowser(c *Client, pageSize int) *AuditLogBrowser {
	return &AuditLogBrowser{client: c, index: pagination.NewCursorIndex(pageSize)}
}

// SetFilters replaces the filters. Cursors belong to one filter set, so every
// page except the first is forgotten.
func (b *AuditLogBrowser) SetFilters(f LogFilters) {
	b.filters = f
	b.index.Reset()
}

func (b *AuditLogBrowser) SetPageSize(n int) {
	b.index.SetPageSize(n)
}

func (b *AuditLogBrowser) KnownPages() []int { return b.index.KnownPages() }

// Page fetches page n. Only pages reached by paging forward or backward are
// reachable; anything else returns pagination.ErrPageUnknown without a request.
func (b *AuditLogBrowser) Page(ctx context.Context, n int) (*LogPage, error) {
	cursor, err := b.index.CursorFor(n)
	if err != nil {
		return nil, err
	}
	page, err := b.client.ListOperationLogs(ctx, b.filters, cursor, b.index.PageSize())
	if err != nil {
		return nil, err
	}
	b.index.Record(n, cursor, page.Next, page.Previous)
	return page, nil
}

// SeekPage walks forward from the highest known page until n is reachable or
// the listing ends.
func (b *AuditLogBrowser) SeekPage(ctx context.Context, n int) (*LogPage, error) {
	for !b.index.CanJump(n) {
		last := b.index.HighestKnown()
		if last >= n {
			return nil, pagination.ErrPageUnknown
		}
		if _, err := b.Page(ctx, last); err != nil {
			return nil, err
		}
		if b.index.HighestKnown() <= last {
			return nil, pagination.ErrPageUnknown
		}
	}
	return b.Page(ctx, n)
}
