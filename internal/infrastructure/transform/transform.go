package transform

import (
	"github.com/channelsync/backend/internal/domain/channel"
)

// FieldMap declares renames between provider payload keys and
// canonical keys, provider key to canonical key.
type FieldMap map[string]string

// FieldMapTransformer is the default Transformer implementation: it
// renames Data keys according to a per-channel field map, inbound
// provider-to-canonical and outbound canonical-to-provider. Keys
// without a mapping pass through unchanged.
//
// The transformer is pure; input items are never mutated.
type FieldMapTransformer struct {
	inbound  map[string]string
	outbound map[string]string
}

// NewFieldMapTransformer creates a transformer from a provider-to-
// canonical field map. The outbound direction applies the inverse.
func NewFieldMapTransformer(fields FieldMap) *FieldMapTransformer {
	t := &FieldMapTransformer{
		inbound:  make(map[string]string, len(fields)),
		outbound: make(map[string]string, len(fields)),
	}
	for provider, canonical := range fields {
		t.inbound[provider] = canonical
		t.outbound[canonical] = provider
	}
	return t
}

// Transform implements channel.Transformer
func (t *FieldMapTransformer) Transform(item channel.Item, direction channel.TransformDirection) (channel.Item, error) {
	mapping := t.inbound
	if direction == channel.TransformOutbound {
		mapping = t.outbound
	}
	if len(mapping) == 0 || len(item.Data) == 0 {
		return item, nil
	}

	out := item
	out.Data = make(map[string]any, len(item.Data))
	for key, value := range item.Data {
		if renamed, ok := mapping[key]; ok {
			key = renamed
		}
		out.Data[key] = value
	}
	return out, nil
}

// Chain composes transformers left to right for the inbound direction
// and right to left outbound, so a chained pair is symmetric.
func Chain(transformers ...channel.Transformer) channel.Transformer {
	return channel.TransformerFunc(func(item channel.Item, direction channel.TransformDirection) (channel.Item, error) {
		ordered := transformers
		if direction == channel.TransformOutbound {
			ordered = make([]channel.Transformer, len(transformers))
			for i, tr := range transformers {
				ordered[len(transformers)-1-i] = tr
			}
		}
		var err error
		for _, tr := range ordered {
			item, err = tr.Transform(item, direction)
			if err != nil {
				return channel.Item{}, err
			}
		}
		return item, nil
	})
}

// Ensure FieldMapTransformer implements the Transformer interface
var _ channel.Transformer = (*FieldMapTransformer)(nil)
