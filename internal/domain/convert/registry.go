package convert

import (
	"context"

	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

// kaiServiceName labels scores pulled from Kai-style APIs.
const kaiServiceName = "Kai"

// ItemFunc converts one parsed item against the catalog.
type ItemFunc func(ctx context.Context) (*Result, error)

// Batch is a parsed payload: the shared batch context plus one conversion
// thunk per item, in payload order.
type Batch struct {
	Context BatchContext
	Items   []ItemFunc
}

// Parse dispatches a raw payload to the parser and converter registered for
// its import type. A structurally unparsable payload is a ParseError and
// fails the whole batch; per-item problems surface later, from the item's
// own thunk.
func (c *Converter) Parse(importType model.ImportType, payload []byte) (*Batch, error) {
	switch importType {
	case model.ImportTypeBatchManual, model.ImportTypeDirectManual:
		bctx, items, err := ParseBatchManual(payload)
		if err != nil {
			return nil, err
		}

		batch := &Batch{Context: bctx, Items: make([]ItemFunc, 0, len(items))}
		for _, item := range items {
			item := item
			batch.Items = append(batch.Items, func(ctx context.Context) (*Result, error) {
				return c.ConvertBatchManual(ctx, item, bctx, importType)
			})
		}
		return batch, nil

	case model.ImportTypeAPIKaiSDVX:
		items, err := ParseKaiSDVX(payload)
		if err != nil {
			return nil, err
		}

		bctx := BatchContext{Game: model.GameSDVX, Service: kaiServiceName}
		batch := &Batch{Context: bctx, Items: make([]ItemFunc, 0, len(items))}
		for _, item := range items {
			item := item
			batch.Items = append(batch.Items, func(ctx context.Context) (*Result, error) {
				return c.ConvertKaiSDVX(ctx, item, bctx, importType)
			})
		}
		return batch, nil
	}

	return nil, parseErrorf("unsupported import type %s", importType)
}
