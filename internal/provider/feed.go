package provider

import "context"

// Feed walks the provider's paginated transaction list and streams the
// rows into the import pipeline. Pages are fetched lazily on demand.
type Feed struct {
	ctx     context.Context
	client  *Client
	since   string
	page    int
	buffer  []Record
	offset  int
	row     int
	hasMore bool
	started bool
}

func NewFeed(ctx context.Context, client *Client, since string) *Feed {
	return &Feed{
		ctx:     ctx,
		client:  client,
		since:   since,
		page:    1,
		hasMore: true,
	}
}

func (f *Feed) Next() (map[string]string, int, bool, error) {
	for f.offset >= len(f.buffer) {
		if f.started && !f.hasMore {
			return nil, f.row, true, nil
		}

		result, err := f.client.FetchPage(f.ctx, f.since, f.page)
		if err != nil {
			return nil, f.row, false, err
		}
		f.started = true
		f.buffer = result.Transactions
		f.offset = 0
		f.hasMore = result.HasMore
		f.page++

		if len(f.buffer) == 0 && !f.hasMore {
			return nil, f.row, true, nil
		}
	}

	rec := f.buffer[f.offset]
	f.offset++
	f.row++

	return map[string]string{
		"date":              rec.Date,
		"amount":            rec.Amount,
		"currency":          rec.Currency,
		"description":       rec.Description,
		"payee_name":        rec.PayeeName,
		"merchant":          rec.Merchant,
		"payment_reference": rec.PaymentReference,
	}, f.row, false, nil
}
